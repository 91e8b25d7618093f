package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	appName    = "clmsetup"
	configFile = "config.yaml"
)

// PathEnvVar overrides the config file location.
const PathEnvVar = "CLMSETUP_CONFIG"

var (
	defaultOnce sync.Once
	defaultReg  *Registry
	defaultErr  error

	// Serialises writes from every Registry in the process
	fileMutex sync.Mutex
)

// GetConfigDir returns the directory holding config.yaml and the wizard log.
//   - Linux and other Unix: $XDG_CONFIG_HOME/clmsetup, else ~/.config/clmsetup
//   - macOS: ~/.config/clmsetup
//   - Windows: %LOCALAPPDATA%\clmsetup
func GetConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		base := os.Getenv("LOCALAPPDATA")
		if base == "" {
			profile := os.Getenv("USERPROFILE")
			if profile == "" {
				return "", errors.New("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
			}
			base = filepath.Join(profile, "AppData", "Local")
		}
		return filepath.Join(base, appName), nil
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" && runtime.GOOS != "darwin" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

// GetConfigPath returns $CLMSETUP_CONFIG or config.yaml in GetConfigDir.
func GetConfigPath() (string, error) {
	if p := os.Getenv(PathEnvVar); p != "" {
		return p, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// LoadRegistry returns the registry at the default path, reading it once per
// process. A missing file yields a fresh registry.
func LoadRegistry() (*Registry, error) {
	defaultOnce.Do(func() {
		path, err := GetConfigPath()
		if err != nil {
			defaultErr = fmt.Errorf("failed to get config path: %w", err)
			return
		}
		defaultReg, defaultErr = LoadRegistryFrom(path)
	})
	return defaultReg, defaultErr
}

// LoadRegistryFrom loads a registry from path. A missing file yields a new
// default registry that will be saved to path.
func LoadRegistryFrom(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		reg := NewRegistry()
		reg.path = path
		return reg, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if reg.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported config version: %d (expected %d)", reg.Version, CurrentVersion)
	}

	reg.normalize()
	reg.path = path
	return &reg, nil
}

// Path returns the file the registry is saved to.
func (r *Registry) Path() string {
	return r.path
}

func fileHeader(path string) []byte {
	return []byte("# clm-setup configuration\n" +
		"# Setup server, session and wizard progress. Passwords are never stored.\n" +
		"#\n" +
		"# Location: " + path + "\n\n")
}

// Save writes the registry through a temp file and rename, so a crash never
// leaves a truncated config.
func (r *Registry) Save() error {
	path := r.path
	if path == "" {
		var err error
		if path, err = GetConfigPath(); err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
	}

	// Held across marshal and write so the last snapshot taken is the last written
	fileMutex.Lock()
	defer fileMutex.Unlock()

	r.mu.Lock()
	body, err := yaml.Marshal(r)
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return writeAtomic(path, append(fileHeader(path), body...))
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}
