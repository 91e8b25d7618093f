package urls

import (
	"strings"
	"testing"
)

func TestForKind(t *testing.T) {
	tests := []struct {
		kind string
		want string
	}{
		{"power-on", InstallationGuide},
		{"network-check", NetworkSetup},
		{"device-bind", NetworkSetup},
		{"azimuth-check", Alignment},
		{"calibration", Calibration},
		{"unknown", Support},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			if got := ForKind(tt.kind); got != tt.want {
				t.Errorf("ForKind(%q) = %q, want %q", tt.kind, got, tt.want)
			}
		})
	}
}

func TestLinksUnderSupport(t *testing.T) {
	for _, u := range []string{InstallationGuide, NetworkSetup, Alignment, Calibration, ServerSetup} {
		if !strings.HasPrefix(u, Support) {
			t.Errorf("%s is not under %s", u, Support)
		}
	}
}
