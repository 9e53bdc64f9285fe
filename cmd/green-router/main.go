package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/common/version"
	"k8s.io/klog/v2"

	"github.com/elevated-systems/green-region-router/pkg/greenrouter/api"
	"github.com/elevated-systems/green-region-router/pkg/greenrouter/cache"
	"github.com/elevated-systems/green-region-router/pkg/greenrouter/config"
	"github.com/elevated-systems/green-region-router/pkg/greenrouter/latency"
	"github.com/elevated-systems/green-region-router/pkg/greenrouter/region"
	"github.com/elevated-systems/green-region-router/pkg/greenrouter/regionmapper"
	"github.com/elevated-systems/green-region-router/pkg/greenrouter/router"
	"github.com/elevated-systems/green-region-router/pkg/greenrouter/selector"
	"github.com/elevated-systems/green-region-router/pkg/greenrouter/server"
)

const programName = "green-router"

func main() {
	var (
		port        int
		mode        string
		once        bool
		showVersion bool
	)

	flag.IntVar(&port, "port", 0, "HTTP server port (overrides SERVER_PORT)")
	flag.StringVar(&mode, "mode", "", "Task mode: 'green', 'balanced' or 'performance' (overrides DEFAULT_TASK_MODE)")
	flag.BoolVar(&once, "once", false, "Run a single decision, print it as JSON and exit")
	flag.BoolVar(&showVersion, "version", false, "Print version information and exit")

	klog.InitFlags(nil)
	flag.Parse()

	if showVersion {
		fmt.Println(version.Print(programName))
		return
	}

	cfg, err := config.LoadFromEnv(config.WithServerPort(port), config.WithDefaultMode(mode))
	if err != nil {
		klog.ErrorS(err, "Failed to load configuration")
		os.Exit(1)
	}
	defaultMode, _ := selector.ParseTaskMode(cfg.Selection.DefaultMode)

	klog.InfoS("Starting green region router",
		"version", version.Info(),
		"apiBaseURL", cfg.API.BaseURL,
		"defaultMode", defaultMode,
		"probeEnabled", cfg.Probe.Enabled,
		"port", cfg.Server.Port,
		"once", once)

	measurementCache := cache.New(cfg.API.CacheTTL, cfg.API.MaxCacheAge)
	defer measurementCache.Close()

	client := api.NewClient(cfg.API, api.WithCache(measurementCache))
	defer client.Close()

	mapper := regionmapper.NewRegionMapperWithConfig(&cfg.Regions)
	opts := []router.Option{}
	if cfg.Probe.Enabled {
		opts = append(opts, router.WithProber(latency.NewProber(latency.Config{
			Timeout:     cfg.Probe.Timeout,
			Concurrency: cfg.Probe.Concurrency,
			URLTemplate: cfg.Probe.URLTemplate,
		})))
	}
	regionRouter := router.New(client, region.NewBuilder(mapper), opts...)

	// Setup context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		klog.InfoS("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	if once {
		if err := decideOnce(ctx, regionRouter, defaultMode); err != nil {
			klog.ErrorS(err, "Decision failed", "mode", defaultMode)
			os.Exit(1)
		}
		return
	}

	// A request may spend the whole retried fetch plus one round of probes
	requestTimeout := api.MaxFetchDuration(cfg.API)
	if cfg.Probe.Enabled {
		requestTimeout += cfg.Probe.Timeout
	}

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.New(regionRouter, defaultMode,
			server.WithMetrics(cfg.Observability.MetricsEnabled),
			server.WithRequestTimeout(requestTimeout)).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      requestTimeout + 10*time.Second,
	}

	klog.InfoS("Starting HTTP server", "port", cfg.Server.Port)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			klog.ErrorS(err, "HTTP server error")
			cancel()
		}
	}()

	// Wait for context cancellation
	<-ctx.Done()

	// Graceful shutdown
	klog.InfoS("Shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		klog.ErrorS(err, "Error shutting down HTTP server")
	}

	klog.InfoS("Green region router stopped")
}

func decideOnce(ctx context.Context, r *router.Router, mode selector.TaskMode) error {
	decision, err := r.Decide(ctx, mode)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(decision, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode decision: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
