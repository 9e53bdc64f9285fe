package selector

import (
	"math"

	"github.com/elevated-systems/green-region-router/pkg/greenrouter/region"
)

// CarbonSavings returns how much lower, in whole percent, the selected region's
// green score is than the worst green score among regions. It returns 0 when
// there is nothing to compare against or the worst score is 0.
func CarbonSavings(selected *region.Region, regions []region.Region) int {
	if selected == nil || len(regions) == 0 {
		return 0
	}

	maxGreenScore := regions[0].GreenScore
	for _, r := range regions[1:] {
		maxGreenScore = math.Max(maxGreenScore, r.GreenScore)
	}
	if maxGreenScore == 0 {
		return 0
	}

	savings := (maxGreenScore - selected.GreenScore) / maxGreenScore * 100
	return int(math.Floor(savings + 0.5))
}
