package discovery

import (
	"net"
	"reflect"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func entry(instance, host string, port int, v4, v6 []net.IP, text ...string) *zeroconf.ServiceEntry {
	e := zeroconf.NewServiceEntry(instance, ServiceType, ServiceDomain)
	e.HostName = host
	e.Port = port
	e.AddrIPv4 = v4
	e.AddrIPv6 = v6
	e.Text = text
	return e
}

func TestParseServiceEntry(t *testing.T) {
	tests := []struct {
		name     string
		entry    *zeroconf.ServiceEntry
		wantNil  bool
		wantInst string
		wantIP   string
		wantPort int
	}{
		{
			name:     "IPv4 server",
			entry:    entry("Bay 1", "range-pc.local.", 5000, []net.IP{net.ParseIP("192.168.4.16")}, nil, "version=1.2.0"),
			wantInst: "Bay 1",
			wantIP:   "192.168.4.16",
			wantPort: 5000,
		},
		{
			name:     "escaped instance name",
			entry:    entry(`Bay\ 2`, "range-pc.local.", 8080, []net.IP{net.ParseIP("10.0.0.5")}, nil),
			wantInst: "Bay 2",
			wantIP:   "10.0.0.5",
			wantPort: 8080,
		},
		{
			name:     "no port defaults",
			entry:    entry("Garage", "garage.local.", 0, []net.IP{net.ParseIP("172.16.0.1")}, nil),
			wantInst: "Garage",
			wantIP:   "172.16.0.1",
			wantPort: DefaultPort,
		},
		{
			name:     "IPv6 only",
			entry:    entry("Studio", "studio.local.", 5000, nil, []net.IP{net.ParseIP("fe80::1")}),
			wantInst: "Studio",
			wantIP:   "fe80::1",
			wantPort: 5000,
		},
		{
			name:     "prefers IPv4",
			entry:    entry("Both", "both.local.", 5000, []net.IP{net.ParseIP("192.168.1.50")}, []net.IP{net.ParseIP("fe80::2")}),
			wantInst: "Both",
			wantIP:   "192.168.1.50",
			wantPort: 5000,
		},
		{
			name:    "no address",
			entry:   entry("Ghost", "ghost.local.", 5000, nil, nil),
			wantNil: true,
		},
		{
			name:    "no instance",
			entry:   entry("", "anon.local.", 5000, []net.IP{net.ParseIP("192.168.1.1")}, nil),
			wantNil: true,
		},
		{
			name:    "nil entry",
			entry:   nil,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := parseServiceEntry(tt.entry)

			if tt.wantNil {
				if srv != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", srv)
				}
				return
			}
			if srv == nil {
				t.Fatal("parseServiceEntry() = nil, want server")
			}
			if srv.Instance != tt.wantInst {
				t.Errorf("Instance = %q, want %q", srv.Instance, tt.wantInst)
			}
			if srv.IP != tt.wantIP {
				t.Errorf("IP = %v, want %v", srv.IP, tt.wantIP)
			}
			if srv.Port != tt.wantPort {
				t.Errorf("Port = %v, want %v", srv.Port, tt.wantPort)
			}
			if srv.Hostname != tt.entry.HostName {
				t.Errorf("Hostname = %v, want %v", srv.Hostname, tt.entry.HostName)
			}
			if time.Since(srv.DiscoveredAt) > time.Second {
				t.Errorf("DiscoveredAt is not recent: %v", srv.DiscoveredAt)
			}
		})
	}
}

func TestParseServiceEntry_Metadata(t *testing.T) {
	e := entry("Bay 1", "range-pc.local.", 5000, []net.IP{net.ParseIP("192.168.4.16")}, nil,
		"version=1.2.0", "path=/", "flag", "=orphan", "note=a=b")

	srv := parseServiceEntry(e)
	if srv == nil {
		t.Fatal("parseServiceEntry() = nil")
	}

	want := map[string]string{
		"version": "1.2.0",
		"path":    "/",
		"flag":    "",
		"note":    "a=b",
	}
	if !reflect.DeepEqual(srv.Metadata, want) {
		t.Errorf("Metadata = %v, want %v", srv.Metadata, want)
	}
	if srv.Version() != "1.2.0" {
		t.Errorf("Version() = %q", srv.Version())
	}
}

func TestServer_URLs(t *testing.T) {
	tests := []struct {
		ip   string
		port int
		want string
	}{
		{"192.168.1.10", 5000, "http://192.168.1.10:5000"},
		{"fe80::1", 8080, "http://[fe80::1]:8080"},
	}
	for _, tt := range tests {
		srv := &Server{Instance: "Bay", IP: tt.ip, Port: tt.port}
		if got := srv.BaseURL(); got != tt.want {
			t.Errorf("BaseURL() = %q, want %q", got, tt.want)
		}
	}

	var empty Server
	if empty.GetMetadata("version") != "" {
		t.Error("GetMetadata() on nil map should be empty")
	}
}

func TestTXTRecords(t *testing.T) {
	got := TXTRecords(map[string]string{"version": "1.0", "path": "/", "api": "v1"})
	want := []string{"api=v1", "path=/", "version=1.0"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TXTRecords() = %v, want %v", got, want)
	}
}

func TestAdvertise_InvalidPort(t *testing.T) {
	if _, err := Advertise("Bay 1", 0, nil); err == nil {
		t.Error("Advertise() with port 0 should fail")
	}
}

func TestDefaultInstance(t *testing.T) {
	if got := DefaultInstance(); got == "" {
		t.Error("DefaultInstance() is empty")
	}
}

func TestNewScanner(t *testing.T) {
	scanner := NewScanner()
	if scanner.Timeout != DefaultScanTimeout {
		t.Errorf("scanner.Timeout = %v, want %v", scanner.Timeout, DefaultScanTimeout)
	}
}

// Live mDNS browsing needs multicast and is exercised manually with
// `clm-setup discover`.
