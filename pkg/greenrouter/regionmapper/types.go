// Package regionmapper maps cloud region codes to the static metadata
// (provider, display name, zone and PUE) used to score them.
package regionmapper

const (
	// UnknownProvider is reported for region codes missing from the table
	UnknownProvider = "Unknown"

	// UnknownZone is reported for region codes missing from the table
	UnknownZone = "Unknown"

	// DefaultFallbackPUE is applied to unknown regions. It is deliberately worse
	// than any PUE in the built-in table.
	DefaultFallbackPUE = 1.2
)

// RegionMetadata contains the static description of a cloud region
type RegionMetadata struct {
	// Provider is the cloud provider display name (e.g. "AWS")
	Provider string `json:"provider"`

	// RegionName is the human readable region name
	RegionName string `json:"regionName"`

	// Zone is the broad geography the region belongs to
	Zone string `json:"zone"`

	// PUE is the Power Usage Effectiveness applied to the region's carbon intensity
	PUE float64 `json:"pue"`
}

// Config contains configuration for the region mapper
type Config struct {
	// RegionOverrides adds or replaces entries of the built-in table
	RegionOverrides []RegionOverride `yaml:"regionOverrides"`

	// DefaultPUE is the PUE used for regions that are not in the table
	DefaultPUE float64 `yaml:"defaultPUE"`
}

// RegionOverride defines a custom mapping for a specific cloud region
type RegionOverride struct {
	// Region is the cloud region identifier
	Region string `yaml:"region"`

	// Provider is the cloud provider display name
	Provider string `yaml:"provider"`

	// RegionName is the display name; defaults to the region identifier
	RegionName string `yaml:"regionName"`

	// Zone is the geography; defaults to "Unknown"
	Zone string `yaml:"zone"`

	// PUE is the Power Usage Effectiveness value for this region
	PUE float64 `yaml:"pue"`
}
