package regionmapper

import (
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/klog/v2"

	"github.com/elevated-systems/green-region-router/pkg/greenrouter/regionmapper/regions"
)

// RegionMapper resolves region codes to metadata. It is populated once at
// construction and read-only afterwards, so it is safe for concurrent use.
type RegionMapper struct {
	defaultPUE float64
	regionMap  map[string]RegionMetadata
}

// NewRegionMapper creates a new mapper with the built-in region table
func NewRegionMapper() *RegionMapper {
	return NewRegionMapperWithConfig(nil)
}

// NewRegionMapperWithConfig creates a new mapper and applies the overrides of the provided configuration
func NewRegionMapperWithConfig(config *Config) *RegionMapper {
	mapper := &RegionMapper{
		defaultPUE: DefaultFallbackPUE,
		regionMap:  convertRegionMap(regions.AWSRegionInfo),
	}

	if config != nil {
		if config.DefaultPUE > 0 {
			mapper.defaultPUE = config.DefaultPUE
		}
		mapper.applyRegionOverrides(config.RegionOverrides)
	}

	klog.V(2).InfoS("Region mapper initialized",
		"regions", len(mapper.regionMap),
		"defaultPUE", mapper.defaultPUE)

	return mapper
}

// convertRegionMap converts from the regions package format to our internal format
func convertRegionMap(sourceMap map[string]regions.RegionInfo) map[string]RegionMetadata {
	result := make(map[string]RegionMetadata, len(sourceMap))

	for k, v := range sourceMap {
		result[k] = RegionMetadata{
			Provider:   v.CloudProvider,
			RegionName: v.DisplayName,
			Zone:       v.Zone,
			PUE:        v.PUE,
		}
	}

	return result
}

// applyRegionOverrides applies custom region mappings from configuration
func (m *RegionMapper) applyRegionOverrides(overrides []RegionOverride) {
	for _, override := range overrides {
		if override.Region == "" {
			klog.V(2).InfoS("Skipping region override without region identifier")
			continue
		}

		meta := RegionMetadata{
			Provider:   override.Provider,
			RegionName: override.RegionName,
			Zone:       override.Zone,
			PUE:        override.PUE,
		}
		if meta.Provider == "" {
			meta.Provider = UnknownProvider
		}
		if meta.RegionName == "" {
			meta.RegionName = override.Region
		}
		if meta.Zone == "" {
			meta.Zone = UnknownZone
		}
		if meta.PUE <= 0 {
			meta.PUE = m.defaultPUE
		}

		m.regionMap[override.Region] = meta

		klog.V(2).InfoS("Applied region override",
			"region", override.Region,
			"provider", meta.Provider,
			"pue", meta.PUE)
	}
}

// GetRegionInfo returns the metadata for a region code, if the region is known
func (m *RegionMapper) GetRegionInfo(regionCode string) (*RegionMetadata, bool) {
	info, found := m.regionMap[regionCode]
	if !found {
		return nil, false
	}

	result := info // Make a copy to avoid modifying the map entry
	return &result, true
}

// Lookup returns the metadata for a region code, falling back to a
// placeholder entry carrying the default PUE for unknown codes.
func (m *RegionMapper) Lookup(regionCode string) RegionMetadata {
	if info, found := m.regionMap[regionCode]; found {
		return info
	}

	klog.V(4).InfoS("Unknown region, using fallback metadata",
		"region", regionCode,
		"pue", m.defaultPUE)

	return RegionMetadata{
		Provider:   UnknownProvider,
		RegionName: regionCode,
		Zone:       UnknownZone,
		PUE:        m.defaultPUE,
	}
}

// GetPUE returns the PUE for a region code, or the default PUE for unknown codes
func (m *RegionMapper) GetPUE(regionCode string) float64 {
	return m.Lookup(regionCode).PUE
}

// Regions returns the known region codes in sorted order
func (m *RegionMapper) Regions() []string {
	return sets.List(sets.KeySet(m.regionMap))
}
