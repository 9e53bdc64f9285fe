package regions

// awsPUE is the fleet-wide PUE AWS reports for its datacenters
const awsPUE = 1.15

// AWSRegionInfo maps AWS region codes to their display metadata
var AWSRegionInfo = map[string]RegionInfo{
	// North America
	"us-east-1": {
		CloudProvider: "AWS",
		DisplayName:   "US East (Virginia)",
		Zone:          "North America",
		PUE:           awsPUE,
	},
	"us-east-2": {
		CloudProvider: "AWS",
		DisplayName:   "US East (Ohio)",
		Zone:          "North America",
		PUE:           awsPUE,
	},
	"us-west-1": {
		CloudProvider: "AWS",
		DisplayName:   "US West (N. California)",
		Zone:          "North America",
		PUE:           awsPUE,
	},
	"us-west-2": {
		CloudProvider: "AWS",
		DisplayName:   "Oregon",
		Zone:          "Western United States",
		PUE:           awsPUE,
	},

	// Canada
	"ca-central-1": {
		CloudProvider: "AWS",
		DisplayName:   "Canada Central",
		Zone:          "Canada",
		PUE:           awsPUE,
	},
	"ca-west-1": {
		CloudProvider: "AWS",
		DisplayName:   "Canada West",
		Zone:          "Canada",
		PUE:           awsPUE,
	},

	// Europe
	"eu-west-1": {
		CloudProvider: "AWS",
		DisplayName:   "Ireland",
		Zone:          "Europe",
		PUE:           awsPUE,
	},
	"eu-west-2": {
		CloudProvider: "AWS",
		DisplayName:   "London",
		Zone:          "Europe",
		PUE:           awsPUE,
	},
	"eu-west-3": {
		CloudProvider: "AWS",
		DisplayName:   "Paris",
		Zone:          "Europe",
		PUE:           awsPUE,
	},

	// Africa
	"af-south-1": {
		CloudProvider: "AWS",
		DisplayName:   "Cape Town",
		Zone:          "South Africa",
		PUE:           awsPUE,
	},
}
