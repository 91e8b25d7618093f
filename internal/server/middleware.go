package server

import (
	"bufio"
	"bytes"
	"container/list"
	"context"
	"errors"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/clmpro/clmsetup/internal/account"
	"github.com/clmpro/clmsetup/internal/logging"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxCapturedBody bounds how much of a response the request logger keeps.
const maxCapturedBody = 256

// responseRecorder captures the status code and the start of the body.
type responseRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	if room := maxCapturedBody - r.body.Len(); room > 0 {
		if len(b) < room {
			room = len(b)
		}
		r.body.Write(b[:room])
	}
	return r.ResponseWriter.Write(b)
}

// Hijack lets the websocket upgrader take over the connection.
func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	if r.status == 0 {
		r.status = http.StatusSwitchingProtocols
	}
	return hj.Hijack()
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// LoggingMiddleware logs completed /api requests as
// "METHOD path status in Nms :: body".
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api") {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		logging.LogHTTPRequest(r.Method, r.URL.Path, status, time.Since(start), bytes.TrimSpace(rec.body.Bytes()))
	})
}

// CORSMiddleware reflects the request Origin and allows credentials.
// Preflight requests are answered directly.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept, Authorization")
			h.Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RecoveryMiddleware turns handler panics into a 500 JSON response.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logging.Error("Handler panic",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Any("panic", rec),
					zap.ByteString("stack", debug.Stack()),
				)
				writeMessage(w, http.StatusInternalServerError, "Internal Server Error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// ipLimiter tracks a per-IP token bucket and its position in the LRU list.
type ipLimiter struct {
	ip       string
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter limits requests per client IP with a token bucket.
type RateLimiter struct {
	rps    float64
	burst  int
	maxIPs int

	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List // front = most recent
}

// NewRateLimiter creates a limiter tracking at most maxIPs clients.
func NewRateLimiter(rps float64, burst, maxIPs int) *RateLimiter {
	if maxIPs <= 0 {
		maxIPs = 10000
	}
	return &RateLimiter{
		rps:    rps,
		burst:  burst,
		maxIPs: maxIPs,
		items:  make(map[string]*list.Element),
		order:  list.New(),
	}
}

// Allow reports whether a request from ip may proceed.
func (l *RateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	elem, exists := l.items[ip]
	if exists {
		l.order.MoveToFront(elem)
		elem.Value.(*ipLimiter).lastSeen = time.Now()
	} else {
		if l.order.Len() >= l.maxIPs {
			if back := l.order.Back(); back != nil {
				l.order.Remove(back)
				delete(l.items, back.Value.(*ipLimiter).ip)
			}
		}
		elem = l.order.PushFront(&ipLimiter{
			ip:       ip,
			limiter:  rate.NewLimiter(rate.Limit(l.rps), l.burst),
			lastSeen: time.Now(),
		})
		l.items[ip] = elem
	}
	return elem.Value.(*ipLimiter).limiter.Allow()
}

// RunCleanup drops clients idle for more than idle until ctx is cancelled.
func (l *RateLimiter) RunCleanup(ctx context.Context, interval, idle time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.mu.Lock()
				now := time.Now()
				for e := l.order.Back(); e != nil; {
					prev := e.Prev()
					lim := e.Value.(*ipLimiter)
					if now.Sub(lim.lastSeen) > idle {
						l.order.Remove(e)
						delete(l.items, lim.ip)
					}
					e = prev
				}
				l.mu.Unlock()
			case <-ctx.Done():
				return
			}
		}
	}()
	return done
}

// Middleware rejects over-limit clients with 429.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(clientIP(r)) {
			w.Header().Set("Retry-After", "1")
			writeMessage(w, http.StatusTooManyRequests, "Too many requests, please try again shortly")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the client IP. Forwarding headers are only trusted from
// loopback or private peers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	peerIP := net.ParseIP(host)
	if peerIP != nil && (peerIP.IsLoopback() || peerIP.IsPrivate()) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}
	if peerIP != nil {
		return peerIP.String()
	}
	return host
}

type ctxKey string

const ctxKeyUser ctxKey = "user"

// requireUser rejects requests without a valid session and stores the
// session user in the request context.
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.sessionUser(r)
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKeyUser, user)))
	}
}

// userFrom returns the user stored by requireUser.
func userFrom(r *http.Request) *account.User {
	u, _ := r.Context().Value(ctxKeyUser).(*account.User)
	return u
}

func (s *Server) sessionUser(r *http.Request) (*account.User, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil, false
	}
	id, ok := s.sessions.Lookup(c.Value)
	if !ok {
		return nil, false
	}
	u, err := s.store.User(id)
	if err != nil {
		return nil, false
	}
	return u, true
}
