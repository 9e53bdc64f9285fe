package region

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
	"k8s.io/klog/v2"
	"k8s.io/utils/ptr"

	"github.com/elevated-systems/green-region-router/pkg/greenrouter/regionmapper"
)

// MetadataLookup resolves a region code to its static metadata
type MetadataLookup interface {
	Lookup(regionCode string) regionmapper.RegionMetadata
}

// Builder combines raw measurements with region metadata
type Builder struct {
	lookup MetadataLookup
}

// NewBuilder creates a builder backed by the given metadata lookup
func NewBuilder(lookup MetadataLookup) *Builder {
	return &Builder{lookup: lookup}
}

// Build scores a single measurement. It has no side effects.
func (b *Builder) Build(raw RawMeasurement) Region {
	meta := b.lookup.Lookup(raw.RegionCode)

	return Region{
		ID:                  raw.RegionCode,
		Provider:            meta.Provider,
		RegionName:          meta.RegionName,
		Zone:                meta.Zone,
		CarbonIntensity:     raw.CarbonIntensity,
		PUE:                 meta.PUE,
		GreenScore:          GreenScore(raw.CarbonIntensity, meta.PUE),
		RenewablePercentage: renewablePercentage(raw.RegionCode, ptr.Deref(raw.RenewablePercent, 0)),
		EstimatedLatency:    NewLatency(ptr.Deref(raw.EstimatedLatency, 0)),
	}
}

// BuildAll scores a batch of measurements in input order. A nil batch
// yields an empty, non-nil slice.
func (b *Builder) BuildAll(raws []RawMeasurement) []Region {
	result := make([]Region, 0, len(raws))
	for _, raw := range raws {
		result = append(result, b.Build(raw))
	}
	return result
}

// exactDigits is enough fractional digits to hold the full binary expansion
// of any product that can be told apart from a one-decimal tie.
const exactDigits = 60

// GreenScore is carbonIntensity * pue rounded to one decimal place. Rounding
// works on the exact binary value of the product, not on its shortest decimal
// form, so 9*1.15 (10.3499999...) rounds to 10.3.
func GreenScore(carbonIntensity, pue float64) float64 {
	score := carbonIntensity * pue
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return score
	}
	exact := decimal.RequireFromString(strconv.FormatFloat(score, 'f', exactDigits, 64))
	return exact.Round(1).InexactFloat64()
}

func renewablePercentage(regionCode string, percent float64) int {
	if math.IsNaN(percent) {
		return 0
	}

	clamped := math.Min(math.Max(percent, 0), 100)
	if clamped != percent {
		klog.V(2).InfoS("Renewable percentage out of range, clamping",
			"region", regionCode,
			"value", percent,
			"clamped", clamped)
	}

	return int(math.Round(clamped))
}

// DecodeMeasurements parses a /regions payload. Anything that is not a JSON
// array decodes to an empty batch; null elements and elements that are not
// measurement objects are skipped.
func DecodeMeasurements(data []byte) []RawMeasurement {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		klog.V(2).InfoS("Region payload is not a JSON array, using empty batch", "error", err)
		return []RawMeasurement{}
	}

	result := make([]RawMeasurement, 0, len(items))
	for i, item := range items {
		if bytes.Equal(bytes.TrimSpace(item), []byte("null")) {
			klog.V(2).InfoS("Skipping null region measurement", "index", i)
			continue
		}
		var raw RawMeasurement
		if err := json.Unmarshal(item, &raw); err != nil {
			klog.V(2).InfoS("Skipping malformed region measurement", "index", i, "error", err)
			continue
		}
		result = append(result, raw)
	}

	return result
}
