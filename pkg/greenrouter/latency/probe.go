// Package latency measures best-effort round trip times to cloud regions.
package latency

import (
	"context"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/klog/v2"

	"github.com/elevated-systems/green-region-router/pkg/greenrouter/clock"
	"github.com/elevated-systems/green-region-router/pkg/greenrouter/metrics"
	"github.com/elevated-systems/green-region-router/pkg/greenrouter/region"
)

const (
	defaultTimeout     = 5 * time.Second
	defaultConcurrency = 4
)

// HTTPClient interface allows mocking http.Client in tests
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config controls how regions are probed
type Config struct {
	// Timeout bounds both requests of a single probe
	Timeout time.Duration

	// Concurrency is the maximum number of regions probed at once
	Concurrency int

	// URLTemplate is a fmt template with one %s for the region code
	URLTemplate string
}

// Prober measures latency with a warm-up request followed by a timed request.
// Failures never surface as errors; they produce an unknown latency.
type Prober struct {
	config     Config
	httpClient HTTPClient
	clock      clock.Clock
}

// ProberOption allows customizing the prober
type ProberOption func(*Prober)

// WithHTTPClient allows injecting a custom HTTP client
func WithHTTPClient(client HTTPClient) ProberOption {
	return func(p *Prober) {
		p.httpClient = client
	}
}

// WithClock allows injecting the clock used to time the measurement request
func WithClock(c clock.Clock) ProberOption {
	return func(p *Prober) {
		p.clock = c
	}
}

// NewProber creates a new prober
func NewProber(cfg Config, opts ...ProberOption) *Prober {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.URLTemplate == "" {
		cfg.URLTemplate = DefaultURLTemplate
	}

	p := &Prober{
		config:     cfg,
		httpClient: &http.Client{},
		clock:      clock.RealClock{},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// PingURL returns the probe target for a region code
func (p *Prober) PingURL(regionCode string) (string, bool) {
	return pingURL(p.config.URLTemplate, regionCode)
}

// Probe measures the round trip time to url in whole milliseconds. The first
// request only opens the connection and is not timed.
func (p *Prober) Probe(ctx context.Context, url string) region.Latency {
	if url == "" {
		return region.UnknownLatency()
	}
	url = cleanURL(url)

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	if err := p.head(ctx, url); err != nil {
		klog.V(3).InfoS("Warm-up request failed", "url", url, "error", err)
		return region.UnknownLatency()
	}

	start := p.clock.Now()
	if err := p.head(ctx, url); err != nil {
		klog.V(3).InfoS("Latency request failed", "url", url, "error", err)
		return region.UnknownLatency()
	}
	elapsed := p.clock.Since(start)

	millis := math.Round(float64(elapsed) / float64(time.Millisecond))
	return region.NewLatency(millis)
}

// ProbeRegion probes the endpoint of a single region code
func (p *Prober) ProbeRegion(ctx context.Context, regionCode string) region.Latency {
	url, ok := p.PingURL(regionCode)
	if !ok {
		return region.UnknownLatency()
	}

	latency := p.Probe(ctx, url)
	if ms, known := latency.Millis(); known {
		metrics.ProbeDuration.Observe(ms)
	} else {
		metrics.ProbeFailures.WithLabelValues(regionCode).Inc()
	}

	klog.V(4).InfoS("Probed region latency",
		"region", regionCode,
		"url", url,
		"latency", latency)

	return latency
}

// ProbeRegions probes every distinct region code concurrently. The result
// holds an entry for every code, unknown where the probe failed.
func (p *Prober) ProbeRegions(ctx context.Context, regionCodes []string) map[string]region.Latency {
	codes := sets.New(regionCodes...)
	results := make(map[string]region.Latency, codes.Len())

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(p.config.Concurrency)

	for code := range codes {
		g.Go(func() error {
			latency := p.ProbeRegion(ctx, code)

			mu.Lock()
			results[code] = latency
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	klog.V(3).InfoS("Probed region latencies", "regions", len(results))

	return results
}

func (p *Prober) head(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("Pragma", "no-cache")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused by the timed request
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
