package instrumentation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractUserDomain(t *testing.T) {
	tests := map[string]string{
		"jane@example.com":           "example.com",
		"test@subdomain.example.com": "subdomain.example.com",
		"@domain.com":                "domain.com",
		"invalid":                    "unknown",
		"":                           "unknown",
		"@":                          "unknown",
		"user@":                      "unknown",
		"a@b@c":                      "unknown",
	}
	for email, want := range tests {
		assert.Equal(t, want, ExtractUserDomain(email), email)
	}
}

func TestPlatformLabel(t *testing.T) {
	tests := map[string]string{
		"meet":    "meet",
		" Zoom ":  "zoom",
		"teams":   "teams",
		"unknown": "other",
		"":        "other",
		"webex":   "other",
	}
	for platform, want := range tests {
		assert.Equal(t, want, PlatformLabel(platform), platform)
	}
}

func TestNormalizeRoutePattern(t *testing.T) {
	assert.Equal(t, "unmatched", NormalizeRoutePattern(""))
	assert.Equal(t, "/api/v1/users/{userID}/sync", NormalizeRoutePattern("/api/v1/users/{userID}/sync"))
}
