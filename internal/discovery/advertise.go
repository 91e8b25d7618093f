package discovery

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/clmpro/clmsetup/internal/logging"
	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"
)

// Advertisement is a running mDNS registration
type Advertisement struct {
	server   *zeroconf.Server
	Instance string
	Port     int
}

// Advertise registers a setup server on the local network. metadata is
// published as TXT records. Call Shutdown to withdraw it.
func Advertise(instance string, port int, metadata map[string]string) (*Advertisement, error) {
	if instance == "" {
		instance = DefaultInstance()
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid port %d", port)
	}

	srv, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, TXTRecords(metadata), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logging.Info("Advertising setup server",
		zap.String("instance", instance),
		zap.String("service", ServiceType),
		zap.Int("port", port))

	return &Advertisement{server: srv, Instance: instance, Port: port}, nil
}

// Shutdown withdraws the advertisement
func (a *Advertisement) Shutdown() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
	logging.Debug("mDNS advertisement withdrawn", zap.String("instance", a.Instance))
}

// DefaultInstance derives an instance name from the host name
func DefaultInstance() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "clm-setup"
	}
	host, _, _ = strings.Cut(host, ".")
	return "clm-setup on " + host
}

// TXTRecords renders metadata as sorted "key=value" strings
func TXTRecords(metadata map[string]string) []string {
	out := make([]string, 0, len(metadata))
	for k, v := range metadata {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
