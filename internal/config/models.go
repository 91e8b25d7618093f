package config

import (
	"sort"
	"sync"
	"time"
)

// CurrentVersion is the config file schema version.
const CurrentVersion = 1

// DefaultServerURL is used when no server has been configured.
const DefaultServerURL = "http://localhost:5000"

// Registry represents the entire user configuration file.
type Registry struct {
	mu   sync.Mutex
	path string

	Version     int                     `yaml:"version"`
	Server      *ServerConfig           `yaml:"server,omitempty"`
	Progress    map[string]*Progress    `yaml:"progress,omitempty"` // Keyed by username
	Known       map[string]*KnownServer `yaml:"known_servers,omitempty"`
	Preferences *Preferences            `yaml:"preferences,omitempty"`
}

// ServerConfig points the CLI at a setup server.
type ServerConfig struct {
	URL          string `yaml:"url"`
	SessionToken string `yaml:"session_token,omitempty"` // Signed session cookie value
	Username     string `yaml:"username,omitempty"`      // User the token belongs to
}

// Progress is the wizard position saved for one user.
type Progress struct {
	CurrentStep int             `yaml:"current_step"`
	Completion  map[string]bool `yaml:"completion,omitempty"`
	UpdatedAt   time.Time       `yaml:"updated_at"`
}

// KnownServer is a setup server seen on the LAN.
type KnownServer struct {
	URL      string    `yaml:"url"`
	Hostname string    `yaml:"hostname,omitempty"`
	LastSeen time.Time `yaml:"last_seen,omitempty"`
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	AutoDiscover    bool    `yaml:"auto_discover"`    // Browse for servers when none is configured
	DiscoverTimeout int     `yaml:"discover_timeout"` // mDNS discovery timeout in seconds
	SimulationScale float64 `yaml:"simulation_scale"` // Multiplier for simulated device delays
	Offline         bool    `yaml:"offline"`          // Use the demo login instead of a server
}

func defaultPreferences() *Preferences {
	return &Preferences{
		AutoDiscover:    true,
		DiscoverTimeout: 5,
		SimulationScale: 1,
	}
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     CurrentVersion,
		Server:      &ServerConfig{URL: DefaultServerURL},
		Progress:    make(map[string]*Progress),
		Known:       make(map[string]*KnownServer),
		Preferences: defaultPreferences(),
	}
}

// normalize fills in sections missing from an older or hand-edited file.
func (r *Registry) normalize() {
	if r.Server == nil {
		r.Server = &ServerConfig{}
	}
	if r.Server.URL == "" {
		r.Server.URL = DefaultServerURL
	}
	if r.Progress == nil {
		r.Progress = make(map[string]*Progress)
	}
	if r.Known == nil {
		r.Known = make(map[string]*KnownServer)
	}
	if r.Preferences == nil {
		r.Preferences = defaultPreferences()
	}
	if r.Preferences.SimulationScale < 0 {
		r.Preferences.SimulationScale = 1
	}
}

// ServerURL returns the configured server URL.
func (r *Registry) ServerURL() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Server.URL
}

// SetServerURL changes the server. A different server invalidates the session.
func (r *Registry) SetServerURL(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Server.URL != url {
		r.Server.SessionToken = ""
		r.Server.Username = ""
	}
	r.Server.URL = url
}

// Session returns the stored session token and its user.
func (r *Registry) Session() (token, username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Server.SessionToken, r.Server.Username
}

// SetSession stores a session token for username.
func (r *Registry) SetSession(token, username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Server.SessionToken = token
	r.Server.Username = username
}

// ClearSession forgets the session token.
func (r *Registry) ClearSession() {
	r.SetSession("", "")
}

// LoadStep returns the saved wizard step for username.
func (r *Registry) LoadStep(username string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.Progress[username]
	if !ok {
		return 0, false
	}
	return p.CurrentStep, true
}

// SaveStep records the wizard step for username and writes the file.
func (r *Registry) SaveStep(username string, step int) error {
	r.mu.Lock()
	p := r.ensureProgressLocked(username)
	p.CurrentStep = step
	p.UpdatedAt = time.Now()
	r.mu.Unlock()

	return r.Save()
}

// Completion returns a copy of the saved checklist state for username.
func (r *Registry) Completion(username string) map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]bool)
	if p, ok := r.Progress[username]; ok {
		for k, v := range p.Completion {
			out[k] = v
		}
	}
	return out
}

// SetCompletion replaces the saved checklist state for username. Only true
// entries are kept. The file is not written.
func (r *Registry) SetCompletion(username string, completion map[string]bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.ensureProgressLocked(username)
	p.Completion = make(map[string]bool)
	for k, v := range completion {
		if v {
			p.Completion[k] = true
		}
	}
	p.UpdatedAt = time.Now()
}

// ResetProgress forgets everything saved for username.
func (r *Registry) ResetProgress(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.Progress, username)
}

func (r *Registry) ensureProgressLocked(username string) *Progress {
	if r.Progress == nil {
		r.Progress = make(map[string]*Progress)
	}
	p, ok := r.Progress[username]
	if !ok {
		p = &Progress{}
		r.Progress[username] = p
	}
	return p
}

// RememberServer records a server seen on the LAN under its instance name.
func (r *Registry) RememberServer(instance, url, hostname string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Known == nil {
		r.Known = make(map[string]*KnownServer)
	}
	r.Known[instance] = &KnownServer{URL: url, Hostname: hostname, LastSeen: time.Now()}
}

// KnownServers returns remembered instance names, most recently seen first.
func (r *Registry) KnownServers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.Known))
	for name := range r.Known {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := r.Known[names[i]], r.Known[names[j]]
		if a.LastSeen.Equal(b.LastSeen) {
			return names[i] < names[j]
		}
		return a.LastSeen.After(b.LastSeen)
	})
	return names
}

// KnownServer returns a remembered server or nil.
func (r *Registry) KnownServer(instance string) *KnownServer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Known[instance]
}

// Prefs returns a copy of the preferences.
func (r *Registry) Prefs() Preferences {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.Preferences
}

// UpdatePrefs applies fn to the preferences under the registry lock.
func (r *Registry) UpdatePrefs(fn func(*Preferences)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.Preferences)
}
