// Package region turns raw per-region measurements into scored Region records.
package region

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Latency is an optional round-trip latency sample in milliseconds.
// The zero value is an unknown latency.
type Latency struct {
	millis float64
	known  bool
}

// NewLatency wraps a latency sample. Zero, negative and NaN samples are unknown.
func NewLatency(millis float64) Latency {
	if millis > 0 {
		return Latency{millis: millis, known: true}
	}
	return Latency{}
}

// UnknownLatency returns a latency with no usable sample
func UnknownLatency() Latency {
	return Latency{}
}

// Millis returns the sample and whether it is known
func (l Latency) Millis() (float64, bool) {
	return l.millis, l.known
}

// Known reports whether the latency holds a real sample
func (l Latency) Known() bool {
	return l.known
}

func (l Latency) String() string {
	if !l.known {
		return "unknown"
	}
	return strconv.FormatFloat(l.millis, 'f', -1, 64) + "ms"
}

// MarshalJSON renders an unknown latency as null
func (l Latency) MarshalJSON() ([]byte, error) {
	if !l.known {
		return []byte("null"), nil
	}
	return json.Marshal(l.millis)
}

// UnmarshalJSON accepts a number or null; 0 and null both decode to unknown
func (l *Latency) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*l = Latency{}
		return nil
	}
	var millis float64
	if err := json.Unmarshal(data, &millis); err != nil {
		return err
	}
	*l = NewLatency(millis)
	return nil
}

// RawMeasurement is one record of the backend's /regions payload
type RawMeasurement struct {
	// RegionCode is the cloud region identifier (e.g. "us-east-1")
	RegionCode string `json:"regionCode"`

	// CarbonIntensity of the region's grid in gCO2eq/kWh
	CarbonIntensity float64 `json:"carbonIntensity"`

	// RenewablePercent is the renewable share of the grid mix (0-100), if reported
	RenewablePercent *float64 `json:"renewablepercent"`

	// EstimatedLatency in milliseconds; nil or 0 means unknown
	EstimatedLatency *float64 `json:"estimatedLatency"`
}

// Region is a fully scored candidate region. It is a value object built
// fresh for every batch of measurements.
type Region struct {
	ID                  string  `json:"id"`
	Provider            string  `json:"provider"`
	RegionName          string  `json:"regionName"`
	Zone                string  `json:"zone"`
	CarbonIntensity     float64 `json:"carbonIntensity"`
	PUE                 float64 `json:"pue"`
	GreenScore          float64 `json:"greenScore"` // carbonIntensity * PUE, lower is better
	RenewablePercentage int     `json:"renewablePercentage"`
	EstimatedLatency    Latency `json:"estimatedLatency"`
}
