// Package selector ranks scored regions under a task mode and computes the
// carbon savings of the chosen region.
package selector

import "strings"

// TaskMode is the optimization goal used to rank regions
type TaskMode string

const (
	// ModeGreen ranks by ascending green score
	ModeGreen TaskMode = "green"

	// ModeBalanced ranks by an equal blend of normalized green score and latency
	ModeBalanced TaskMode = "balanced"

	// ModePerformance ranks by ascending latency, unknown latency last
	ModePerformance TaskMode = "performance"
)

// ModeOption carries the display metadata of a task mode
type ModeOption struct {
	Value       TaskMode `json:"value"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
	Icon        string   `json:"icon"`
}

// ModeOptions lists the selectable task modes in display order
var ModeOptions = []ModeOption{
	{Value: ModeGreen, Label: "Green Optimized", Description: "Prioritize low carbon footprint", Icon: "🌱"},
	{Value: ModeBalanced, Label: "Balanced", Description: "Balance sustainability and performance", Icon: "⚖️"},
	{Value: ModePerformance, Label: "Performance Optimized", Description: "Prioritize low latency", Icon: "🚀"},
}

// Valid reports whether m is one of the enumerated modes
func (m TaskMode) Valid() bool {
	switch m {
	case ModeGreen, ModeBalanced, ModePerformance:
		return true
	}
	return false
}

// ParseTaskMode normalizes a mode key. Unrecognized keys return ModeGreen and false.
func ParseTaskMode(s string) (TaskMode, bool) {
	mode := TaskMode(strings.ToLower(strings.TrimSpace(s)))
	if !mode.Valid() {
		return ModeGreen, false
	}
	return mode, true
}
