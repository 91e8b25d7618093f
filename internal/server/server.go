package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/clmpro/clmsetup/internal/account"
	"github.com/clmpro/clmsetup/internal/discovery"
	"github.com/clmpro/clmsetup/internal/logging"
	"github.com/clmpro/clmsetup/internal/version"
	"github.com/clmpro/clmsetup/internal/wizard"
	"go.uber.org/zap"
)

const (
	limiterCleanupInterval = 5 * time.Minute
	limiterIdleTimeout     = 10 * time.Minute
)

// Server is the CLM PRO setup backend
type Server struct {
	cfg      *Config
	svc      *account.Service
	store    *account.MemStore
	sessions *SessionStore
	hub      *Hub
	limiter  *RateLimiter
	lastStep int // highest step index a user can be on

	httpServer *http.Server
	listener   net.Listener
	ad         *discovery.Advertisement
}

// New creates a server with an empty in-memory store
func New(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	store := account.NewMemStore()
	return &Server{
		cfg:      cfg,
		svc:      account.NewService(store),
		store:    store,
		sessions: NewSessionStore(cfg.secret(), cfg.SessionTTL),
		hub:      NewHub(),
		limiter:  NewRateLimiter(cfg.AuthRPS, cfg.AuthBurst, 0),
		lastStep: wizard.DefaultRegistry().Last(),
	}, nil
}

// Store returns the backing store
func (s *Server) Store() *account.MemStore {
	return s.store
}

// Sessions returns the session store
func (s *Server) Sessions() *SessionStore {
	return s.sessions
}

// Hub returns the event hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// Listen binds the configured address. Port 0 picks a free port.
func (s *Server) Listen() (net.Addr, error) {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr(), err)
	}
	s.listener = ln
	return ln.Addr(), nil
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if s.listener == nil {
		if _, err := s.Listen(); err != nil {
			return err
		}
	}
	addr := s.listener.Addr().(*net.TCPAddr)

	if s.cfg.SessionSecret == "" {
		logging.Warn("CLMSETUP_SESSION_SECRET not set, using the built-in development secret")
	}

	bg, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()
	sessionsDone := s.sessions.RunCleanup(bg, sessionCleanupInterval)
	limiterDone := s.limiter.RunCleanup(bg, limiterCleanupInterval, limiterIdleTimeout)

	if s.cfg.Advertise {
		ad, err := discovery.Advertise(s.cfg.Instance, addr.Port, map[string]string{
			"version": version.Version,
			"path":    "/api",
		})
		if err != nil {
			logging.Warn("mDNS advertisement failed, continuing without it", zap.Error(err))
		} else {
			s.ad = ad
		}
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logging.Info("Starting CLM PRO setup server",
		zap.String("addr", addr.String()),
		zap.String("version", version.Version),
		zap.String("static_dir", s.cfg.StaticDir),
	)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.httpServer.Serve(s.listener)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logging.Info("Shutdown signal received, stopping server...")
	case err := <-errChan:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = err
	}

	cancelBg()
	<-sessionsDone
	<-limiterDone
	return serveErr
}

// Shutdown withdraws the advertisement, closes event streams and waits for
// in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	s.ad.Shutdown()
	s.hub.Close()

	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		logging.Warn("Shutdown timeout, forcing close", zap.Error(err))
		_ = s.httpServer.Close()
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logging.Info("All connections closed gracefully")
	logging.Sync()
	return nil
}
