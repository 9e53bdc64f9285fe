package selector

import (
	"math"
	"sort"

	"k8s.io/klog/v2"

	"github.com/elevated-systems/green-region-router/pkg/greenrouter/region"
)

const (
	// unknownLatencyPenalty is the balanced score of a region without a latency
	// sample. Real balanced scores never exceed 1.
	unknownLatencyPenalty = 1000.0

	greenWeight   = 0.5
	latencyWeight = 0.5
)

// Select returns the best region for the mode, or nil when there are no candidates.
// Lower scores win in every mode; ties go to the earlier candidate.
func Select(regions []region.Region, mode TaskMode) *region.Region {
	ranked := Rank(regions, mode)
	if len(ranked) == 0 {
		return nil
	}

	best := ranked[0]
	klog.V(3).InfoS("Selected region",
		"mode", mode,
		"region", best.ID,
		"greenScore", best.GreenScore,
		"latency", best.EstimatedLatency,
		"candidates", len(regions))

	return &best
}

// Rank returns a copy of regions in ascending score order for the mode.
// The sort is stable, so equal scores keep their input order.
func Rank(regions []region.Region, mode TaskMode) []region.Region {
	scores := Scores(regions, mode)

	order := make([]int, len(regions))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] < scores[order[b]]
	})

	ranked := make([]region.Region, len(regions))
	for i, idx := range order {
		ranked[i] = regions[idx]
	}
	return ranked
}

// Scores returns the sort key of every region under the mode, in input order.
// In performance mode an unknown latency scores +Inf. Unrecognized modes use
// the green rule.
func Scores(regions []region.Region, mode TaskMode) []float64 {
	scores := make([]float64, len(regions))

	switch mode {
	case ModePerformance:
		for i, r := range regions {
			scores[i] = latencyKey(r.EstimatedLatency)
		}
	case ModeBalanced:
		maxGreen, maxLatency := normalizationBounds(regions)
		for i, r := range regions {
			scores[i] = balancedScore(r, maxGreen, maxLatency)
		}
	default:
		for i, r := range regions {
			scores[i] = r.GreenScore
		}
	}

	return scores
}

func latencyKey(l region.Latency) float64 {
	if ms, known := l.Millis(); known {
		return ms
	}
	return math.Inf(1)
}

// normalizationBounds returns the divisors of the balanced blend: the highest
// green score (1 when that is zero) and the highest known latency, at least 1.
func normalizationBounds(regions []region.Region) (float64, float64) {
	maxGreen := math.Inf(-1)
	maxLatency := 1.0

	for _, r := range regions {
		maxGreen = math.Max(maxGreen, r.GreenScore)
		if ms, known := r.EstimatedLatency.Millis(); known {
			maxLatency = math.Max(maxLatency, ms)
		}
	}

	if maxGreen == 0 || math.IsInf(maxGreen, -1) || math.IsNaN(maxGreen) {
		maxGreen = 1
	}

	return maxGreen, maxLatency
}

func balancedScore(r region.Region, maxGreen, maxLatency float64) float64 {
	ms, known := r.EstimatedLatency.Millis()
	if !known {
		return unknownLatencyPenalty
	}
	return greenWeight*(r.GreenScore/maxGreen) + latencyWeight*(ms/maxLatency)
}
