package ipgeo

import (
	"path/filepath"
	"testing"
)

func TestCountryCode(t *testing.T) {
	// Local and Tailscale addresses never reach the MMDB reader.
	var c *Checker
	tests := []struct {
		ip   string
		want string
	}{
		{"127.0.0.1", "local"},
		{"::1", "local"},
		{"::ffff:127.0.0.1", "local"},
		{"10.0.0.1", "local"},
		{"192.168.1.1", "local"},
		{"172.16.0.1", "local"},
		{"0.0.0.0", "local"},
		{"169.254.1.1", "local"},
		{"fe80::1", "local"},
		{"100.64.0.1", "tailscale"},
		{"100.127.255.254", "tailscale"},
		{"100.128.0.0", ""},
		{"203.0.113.1", ""},
		{"not-an-ip", ""},
	}
	for _, tt := range tests {
		if got := c.CountryCode(tt.ip); got != tt.want {
			t.Errorf("CountryCode(%q) = %q, want %q", tt.ip, got, tt.want)
		}
	}
}

func TestOpen_Missing(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "nope.mmdb")); err == nil {
		t.Error("Open() of a missing file succeeded")
	}
}
