package reconciler

import (
	"strings"
	"testing"
)

func TestSanitizeErrorMessage(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   string   // exact output, when set
		hidden []string // must not survive
	}{
		{name: "empty", in: "", want: ""},
		{name: "plain message", in: "resource not found: CForge nightly", want: "resource not found: CForge nightly"},
		{name: "api error", in: `cronjobs.batch "website" not found`, want: `cronjobs.batch "website" not found`},
		{name: "relative path", in: "failed to open proj/rev.log", want: "failed to open proj/rev.log"},
		{name: "absolute path keeps base name", in: "failed to read /home/user/secrets/config.yaml", want: "failed to read .../config.yaml"},
		{
			name:   "several paths",
			in:     "error: /var/lib/cforge/data.json not found, also check /etc/cforge/config",
			hidden: []string{"/var/lib/cforge/", "/etc/cforge/"},
		},
		{
			name:   "bearer token",
			in:     "auth failed with bearer eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.eyJzdWIiOiIxMjM0NTY3ODkwIn0",
			hidden: []string{"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9"},
		},
		{name: "password", in: "connection failed: password=supersecret123 host=localhost", hidden: []string{"supersecret123"}},
		{name: "api key", in: "API call failed: apikey=sk_live_abcdef123456789", hidden: []string{"sk_live_abcdef123456789"}},
		{
			name:   "long opaque value",
			in:     "failed with data: aVeryLongBase64EncodedSecretValueThatShouldBeRedactedBecauseItMightBeASensitiveToken==",
			hidden: []string{"aVeryLongBase64EncodedSecretValue"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeErrorMessage(tt.in)
			if tt.hidden == nil && got != tt.want {
				t.Errorf("SanitizeErrorMessage(%q) = %q, want %q", tt.in, got, tt.want)
			}
			for _, secret := range tt.hidden {
				if strings.Contains(got, secret) {
					t.Errorf("SanitizeErrorMessage(%q) = %q, still contains %q", tt.in, got, secret)
				}
			}
		})
	}
}

func TestIsValidResourceType(t *testing.T) {
	for s, want := range map[string]bool{
		"CForge":              true,
		"":                    false,
		"cforge":              false,
		"CronJob":             false,
		"../../../etc/passwd": false,
	} {
		if got := IsValidResourceType(s); got != want {
			t.Errorf("IsValidResourceType(%q) = %v, want %v", s, got, want)
		}
	}
	if len(ValidResourceTypes) != 1 {
		t.Errorf("ValidResourceTypes has %d entries, want 1", len(ValidResourceTypes))
	}
}
