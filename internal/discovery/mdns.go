package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/clmpro/clmsetup/internal/logging"
	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"
)

const (
	// ServiceType is the mDNS service type advertised by clm-setup-server
	ServiceType = "_clmsetup._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for server discovery
	DefaultScanTimeout = 5 * time.Second

	// DefaultPort is assumed when an entry carries no port
	DefaultPort = 5000
)

// Scanner handles mDNS server discovery
type Scanner struct {
	// Timeout is the maximum time to wait for discovery
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// Scan browses for setup servers until the timeout and returns them sorted
// by instance name.
func (s *Scanner) Scan(ctx context.Context) ([]*Server, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		servers = make(map[string]*Server)
	)
	err := s.browse(ctx, func(srv *Server) bool {
		mu.Lock()
		servers[srv.Instance] = srv
		mu.Unlock()
		return true
	})
	if err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	out := make([]*Server, 0, len(servers))
	for _, srv := range servers {
		out = append(out, srv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instance < out[j].Instance })

	logging.Debug("Discovery finished", zap.Int("servers", len(out)))
	return out, nil
}

// First returns the first server that answers, or an error if none does
// within the timeout.
func (s *Scanner) First(ctx context.Context) (*Server, error) {
	return s.Find(ctx, func(*Server) bool { return true })
}

// FindInstance waits for the server advertising instance.
func (s *Scanner) FindInstance(ctx context.Context, instance string) (*Server, error) {
	srv, err := s.Find(ctx, func(srv *Server) bool { return strings.EqualFold(srv.Instance, instance) })
	if err != nil {
		return nil, fmt.Errorf("server %q not found within timeout", instance)
	}
	return srv, nil
}

// Find waits for the first server accepted by match.
func (s *Scanner) Find(ctx context.Context, match func(*Server) bool) (*Server, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	found := make(chan *Server, 1)
	err := s.browse(ctx, func(srv *Server) bool {
		if !match(srv) {
			return true
		}
		select {
		case found <- srv:
		default:
		}
		cancel()
		return false
	})
	if err != nil {
		return nil, err
	}

	select {
	case srv := <-found:
		return srv, nil
	default:
		return nil, fmt.Errorf("no setup server found within %s", s.Timeout)
	}
}

// browse feeds parsed entries to fn until ctx is done or fn returns false.
// It returns once browsing has stopped.
func (s *Scanner) browse(ctx context.Context, fn func(*Server) bool) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	done := make(chan struct{})
	go func() {
		defer close(done)
		// The resolver blocks on sends, so keep draining until it closes
		// the channel even after fn has asked to stop.
		stopped := false
		for entry := range entries {
			if stopped {
				continue
			}
			srv := parseServiceEntry(entry)
			if srv == nil {
				continue
			}
			logging.Debug("Discovered setup server",
				zap.String("instance", srv.Instance),
				zap.String("url", srv.BaseURL()))
			stopped = !fn(srv)
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	select {
	case <-done:
	case <-time.After(time.Second):
		// entries is closed asynchronously by the resolver
	}
	return nil
}

// parseServiceEntry converts a zeroconf service entry to a Server.
// Returns nil if the entry has no usable address.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Server {
	if entry == nil || entry.Instance == "" {
		return nil
	}

	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	}
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		if key == "" {
			continue
		}
		metadata[key] = value
	}

	return &Server{
		Instance:     unescapeInstance(entry.Instance),
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// unescapeInstance removes DNS escaping ("Bay\ 1" -> "Bay 1").
func unescapeInstance(s string) string {
	return strings.ReplaceAll(s, `\`, "")
}

// Scan is a convenience function to scan with a custom timeout
func Scan(ctx context.Context, timeout time.Duration) ([]*Server, error) {
	scanner := NewScanner()
	if timeout > 0 {
		scanner.Timeout = timeout
	}
	return scanner.Scan(ctx)
}
