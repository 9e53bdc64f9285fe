package regions

// RegionInfo contains the static description of a cloud region
type RegionInfo struct {
	// CloudProvider is the display name of the provider (AWS, GCP, Azure)
	CloudProvider string

	// DisplayName is the human readable region name
	DisplayName string

	// Zone is the broad geography the region belongs to
	Zone string

	// PUE is the Power Usage Effectiveness of the provider's datacenters in this region
	PUE float64
}
