package instrumentation

import "strings"

// Label helpers keep metric and audit label values to small, fixed sets.

// ExtractUserDomain returns the domain of an account email, or "unknown".
// Audit entries use it instead of the address unless PII is enabled.
func ExtractUserDomain(email string) string {
	_, domain, ok := strings.Cut(email, "@")
	if !ok || domain == "" || strings.Contains(domain, "@") {
		return "unknown"
	}
	return domain
}

// Operation types for provider metrics.
const (
	OperationList     = "list"
	OperationGet      = "get"
	OperationCreate   = "create"
	OperationJoin     = "join"
	OperationLeave    = "leave"
	OperationDownload = "download"
	OperationRefresh  = "refresh"
)

var knownPlatforms = map[string]bool{"meet": true, "zoom": true, "teams": true}

// PlatformLabel maps a stored meeting platform to meet, zoom, teams or
// other.
func PlatformLabel(platform string) string {
	p := strings.ToLower(strings.TrimSpace(platform))
	if knownPlatforms[p] {
		return p
	}
	return "other"
}

// NormalizeRoutePattern collapses empty route patterns so unmatched requests
// share one label value.
func NormalizeRoutePattern(pattern string) string {
	if pattern == "" {
		return "unmatched"
	}
	return pattern
}
