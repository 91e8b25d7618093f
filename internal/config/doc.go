// Package config provides user configuration management for clm-setup.
//
// This package manages a YAML file holding the setup server the CLI talks to,
// the current session token, offline wizard progress per user, known servers
// found on the LAN and application preferences. The file follows OS-specific
// conventions for storage location.
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/clmsetup/config.yaml or $HOME/.config/clmsetup/config.yaml
//   - macOS: $HOME/.config/clmsetup/config.yaml
//   - Windows: %LOCALAPPDATA%\clmsetup\config.yaml
//
// CLMSETUP_CONFIG overrides the path; the --config flag overrides both.
//
// # Security
//
// Passwords are never stored. The session token is written with user-only
// permissions (0600) and removed on logout.
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Resume offline progress
//	step, ok := registry.LoadStep("demo_user")
//
//	// Persist progress (saves atomically)
//	if err := registry.SaveStep("demo_user", 4); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// The global registry uses sync.Once for safe initialization across goroutines.
// Registry methods lock the registry, and file writes are serialised by a
// package mutex so that each write is atomic.
package config
