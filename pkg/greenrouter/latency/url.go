package latency

import (
	"fmt"
	"strings"
)

// DefaultURLTemplate points probes at the regional DynamoDB endpoint, which
// every AWS region serves and which answers HEAD requests cheaply.
const DefaultURLTemplate = "https://dynamodb.%s.amazonaws.com"

// PingURL returns the default probe target for a region code
func PingURL(regionCode string) (string, bool) {
	return pingURL(DefaultURLTemplate, regionCode)
}

func pingURL(template, regionCode string) (string, bool) {
	if regionCode == "" {
		return "", false
	}
	return fmt.Sprintf(template, regionCode), true
}

// cleanURL strips a single trailing slash
func cleanURL(url string) string {
	return strings.TrimSuffix(url, "/")
}
