// Package server exposes region selection over a small JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"

	"github.com/elevated-systems/green-region-router/pkg/greenrouter/region"
	"github.com/elevated-systems/green-region-router/pkg/greenrouter/router"
	"github.com/elevated-systems/green-region-router/pkg/greenrouter/selector"
)

// maxBodyBytes bounds the size of request bodies
const maxBodyBytes = 1 << 16

// Decider runs selection cycles
type Decider interface {
	Decide(ctx context.Context, mode selector.TaskMode) (*router.Decision, error)
	Regions(ctx context.Context) ([]region.Region, error)
}

// Server serves the HTTP API
type Server struct {
	decider        Decider
	defaultMode    selector.TaskMode
	metricsEnabled bool
	accessLog      io.Writer
	requestTimeout time.Duration
}

// Option allows customizing the server
type Option func(*Server)

// WithMetrics toggles the /metrics endpoint
func WithMetrics(enabled bool) Option {
	return func(s *Server) {
		s.metricsEnabled = enabled
	}
}

// WithAccessLog sets where request logs are written
func WithAccessLog(w io.Writer) Option {
	return func(s *Server) {
		s.accessLog = w
	}
}

// WithRequestTimeout bounds how long a request may spend fetching and
// probing. Zero means no bound beyond the client's own context.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.requestTimeout = d
	}
}

// New creates a server. Requests that do not name a mode use defaultMode.
func New(decider Decider, defaultMode selector.TaskMode, opts ...Option) *Server {
	s := &Server{
		decider:        decider,
		defaultMode:    defaultMode,
		metricsEnabled: true,
		accessLog:      os.Stdout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type routeRequest struct {
	TaskType string `json:"taskType"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler returns the API wrapped with access logging and panic recovery
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	r.HandleFunc("/modes", s.modes).Methods(http.MethodGet)
	r.HandleFunc("/regions", s.regions).Methods(http.MethodGet)
	r.HandleFunc("/decision", s.decision).Methods(http.MethodGet)
	r.HandleFunc("/route", s.route).Methods(http.MethodPost)
	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}

	recovered := handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{}))(r)
	return handlers.LoggingHandler(s.accessLog, recovered)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) modes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, selector.ModeOptions)
}

func (s *Server) regions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	regions, err := s.decider.Regions(ctx)
	if err != nil {
		klog.ErrorS(err, "Failed to list regions")
		writeError(w, backendErrorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, regions)
}

func (s *Server) decision(w http.ResponseWriter, r *http.Request) {
	s.decide(w, r, r.URL.Query().Get("mode"))
}

func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.decide(w, r, req.TaskType)
}

func (s *Server) decide(w http.ResponseWriter, r *http.Request, rawMode string) {
	mode := s.defaultMode
	if rawMode != "" {
		var ok bool
		if mode, ok = selector.ParseTaskMode(rawMode); !ok {
			klog.V(2).InfoS("Unrecognized task mode in request, using green", "mode", rawMode)
		}
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	decision, err := s.decider.Decide(ctx, mode)
	if err != nil {
		klog.ErrorS(err, "Failed to decide region", "mode", mode)
		writeError(w, backendErrorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.requestTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), s.requestTimeout)
}

// backendErrorStatus maps a failed cycle to 504 when it ran out of time and
// 502 otherwise
func backendErrorStatus(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		klog.ErrorS(err, "Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// recoveryLogger routes recovered panics to klog
type recoveryLogger struct{}

func (recoveryLogger) Println(v ...interface{}) {
	klog.ErrorS(nil, "Recovered from panic in handler", "panic", v)
}
