package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"
)

// Handler returns the complete HTTP handler including middleware.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	auth := s.limiter.Middleware
	api.Handle("/register", auth(http.HandlerFunc(s.handleRegister))).Methods(http.MethodPost)
	api.Handle("/login", auth(http.HandlerFunc(s.handleLogin))).Methods(http.MethodPost)
	api.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)

	api.HandleFunc("/user", s.requireUser(s.handleUser)).Methods(http.MethodGet)
	api.HandleFunc("/user/step", s.requireUser(s.handleUpdateStep)).Methods(http.MethodPut)
	api.HandleFunc("/user/subscription", s.requireUser(s.handleUpdateSubscription)).Methods(http.MethodPut)

	api.HandleFunc("/devices", s.requireUser(s.handleCreateDevice)).Methods(http.MethodPost)
	api.HandleFunc("/devices", s.requireUser(s.handleListDevices)).Methods(http.MethodGet)
	api.HandleFunc("/devices/{id}", s.requireUser(s.handleUpdateDevice)).Methods(http.MethodPut)

	api.HandleFunc("/events", s.requireUser(s.handleEvents)).Methods(http.MethodGet)

	api.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "Not Found")
	})

	if s.cfg.StaticDir != "" {
		r.PathPrefix("/").Handler(spaHandler{dir: s.cfg.StaticDir})
	}

	return RecoveryMiddleware(LoggingMiddleware(CORSMiddleware(r)))
}

// spaHandler serves files from dir and falls back to index.html so client
// side routes resolve.
type spaHandler struct {
	dir string
}

func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	clean := filepath.Clean("/" + strings.TrimPrefix(r.URL.Path, "/"))
	path := filepath.Join(h.dir, filepath.FromSlash(clean))
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		http.ServeFile(w, r, path)
		return
	}
	http.ServeFile(w, r, filepath.Join(h.dir, "index.html"))
}
