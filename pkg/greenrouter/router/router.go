// Package router runs one selection cycle: fetch measurements, probe
// latency, build scored regions, then rank and select under a task mode.
package router

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"
	"k8s.io/utils/ptr"

	"github.com/elevated-systems/green-region-router/pkg/greenrouter/clock"
	"github.com/elevated-systems/green-region-router/pkg/greenrouter/metrics"
	"github.com/elevated-systems/green-region-router/pkg/greenrouter/region"
	"github.com/elevated-systems/green-region-router/pkg/greenrouter/selector"
)

const noRegionLabel = "none"

// Fetcher supplies raw per-region measurements
type Fetcher interface {
	FetchRegions(ctx context.Context) ([]region.RawMeasurement, error)
}

// LatencyProber measures latency to a set of regions
type LatencyProber interface {
	ProbeRegions(ctx context.Context, regionCodes []string) map[string]region.Latency
}

// Decision is the outcome of one routing cycle
type Decision struct {
	ID            uuid.UUID         `json:"id"`
	Mode          selector.TaskMode `json:"mode"`
	Selected      *region.Region    `json:"selectedRegion"`
	Ranking       []region.Region   `json:"ranking"`
	CarbonSavings int               `json:"carbonSavings"`
	DecidedAt     time.Time         `json:"decidedAt"`
}

// Router ties the fetch, probe and selection steps together
type Router struct {
	fetcher Fetcher
	prober  LatencyProber
	builder *region.Builder
	clock   clock.Clock
	newID   func() uuid.UUID
}

// Option allows customizing the router
type Option func(*Router)

// WithProber enables live latency probing. Without it the backend's
// estimated latency is used as is.
func WithProber(p LatencyProber) Option {
	return func(r *Router) {
		r.prober = p
	}
}

// WithClock sets the clock used to stamp decisions
func WithClock(c clock.Clock) Option {
	return func(r *Router) {
		r.clock = c
	}
}

// WithIDGenerator sets the decision ID source
func WithIDGenerator(fn func() uuid.UUID) Option {
	return func(r *Router) {
		r.newID = fn
	}
}

// New creates a router reading measurements from fetcher
func New(fetcher Fetcher, builder *region.Builder, opts ...Option) *Router {
	r := &Router{
		fetcher: fetcher,
		builder: builder,
		clock:   clock.RealClock{},
		newID:   uuid.New,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Decide runs a full cycle and selects a region under mode. An unrecognized
// mode is decided with the green rule. Only a failed fetch returns an error;
// an empty batch yields a decision without a selected region.
func (r *Router) Decide(ctx context.Context, mode selector.TaskMode) (*Decision, error) {
	if !mode.Valid() {
		klog.V(2).InfoS("Unrecognized task mode, using green", "mode", mode)
		mode = selector.ModeGreen
	}

	regions, err := r.collect(ctx)
	if err != nil {
		return nil, err
	}

	ranking := selector.Rank(regions, mode)
	decision := &Decision{
		ID:        r.newID(),
		Mode:      mode,
		Ranking:   ranking,
		DecidedAt: r.clock.Now(),
	}
	if len(ranking) > 0 {
		selected := ranking[0]
		decision.Selected = &selected
		decision.CarbonSavings = selector.CarbonSavings(decision.Selected, regions)
	}

	recordDecision(decision)

	if decision.Selected != nil {
		klog.V(2).InfoS("Selected region",
			"decision", decision.ID,
			"mode", mode,
			"region", decision.Selected.ID,
			"greenScore", decision.Selected.GreenScore,
			"latency", decision.Selected.EstimatedLatency,
			"carbonSavings", decision.CarbonSavings,
			"candidates", len(regions))
	} else {
		klog.V(2).InfoS("No candidate regions", "decision", decision.ID, "mode", mode)
	}

	return decision, nil
}

// Regions returns the current regions ordered by green score
func (r *Router) Regions(ctx context.Context) ([]region.Region, error) {
	regions, err := r.collect(ctx)
	if err != nil {
		return nil, err
	}
	return selector.Rank(regions, selector.ModeGreen), nil
}

func (r *Router) collect(ctx context.Context) ([]region.Region, error) {
	raws, err := r.fetcher.FetchRegions(ctx)
	if err != nil {
		metrics.FetchErrors.Inc()
		return nil, fmt.Errorf("failed to fetch region measurements: %w", err)
	}

	if r.prober != nil && len(raws) > 0 {
		raws = r.applyProbes(ctx, raws)
	}

	regions := r.builder.BuildAll(raws)
	for _, reg := range regions {
		metrics.RegionGreenScore.WithLabelValues(reg.ID).Set(reg.GreenScore)
		if ms, ok := reg.EstimatedLatency.Millis(); ok {
			metrics.RegionLatency.WithLabelValues(reg.ID).Set(ms)
		}
	}
	return regions, nil
}

// applyProbes returns a copy of raws in which every known probe sample
// replaces the backend estimate. Unknown samples keep the backend value.
func (r *Router) applyProbes(ctx context.Context, raws []region.RawMeasurement) []region.RawMeasurement {
	codes := make([]string, 0, len(raws))
	for _, raw := range raws {
		codes = append(codes, raw.RegionCode)
	}
	samples := r.prober.ProbeRegions(ctx, codes)

	out := make([]region.RawMeasurement, len(raws))
	copy(out, raws)
	for i := range out {
		if ms, ok := samples[out[i].RegionCode].Millis(); ok {
			out[i].EstimatedLatency = ptr.To(ms)
		}
	}
	return out
}

func recordDecision(d *Decision) {
	label := noRegionLabel
	if d.Selected != nil {
		label = d.Selected.ID
	}
	metrics.Decisions.WithLabelValues(string(d.Mode), label).Inc()
	metrics.CarbonSavings.WithLabelValues(string(d.Mode)).Set(float64(d.CarbonSavings))
}
