// Clm-setup-server is the mock backend for the CLM PRO onboarding wizard.
//
// It serves the account, device and subscription REST API from in-memory
// state, streams account events over a websocket and advertises itself on
// the local network so clm-setup can find it without configuration.
//
// Usage:
//
//	clm-setup-server serve [flags]
//
// Configuration is read from the environment (CLMSETUP_* and PORT) and an
// optional .env file; flags override both.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clmpro/clmsetup/internal/logging"
	"github.com/clmpro/clmsetup/internal/server"
	"github.com/clmpro/clmsetup/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "clm-setup-server",
	Short: "CLM PRO Setup Server",
	Long: `A mock backend for the CLM PRO setup wizard.

Accounts, sessions and devices live in memory and are lost on restart.
Nothing here talks to real hardware.

For the interactive wizard, use the separate 'clm-setup' utility.`,
	Version: version.Version,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// Serve command flags
var (
	envFile     string
	host        string
	port        int
	staticDir   string
	logLevel    string
	noAdvertise bool
	instance    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the setup server",
	Long: `Start the CLM PRO setup server.

Settings come from the environment first (CLMSETUP_* and PORT), then from
flags. When --static-dir is set, the directory is served as a single page
app with index.html as the fallback for unknown paths.

Unless --no-advertise is given, the server announces itself over mDNS as
_clmsetup._tcp so 'clm-setup discover' can find it.`,
	Example: `  # Start on the default port 5000
  clm-setup-server serve

  # Custom port with debug logging
  clm-setup-server serve --port 8080 --log-level debug

  # Serve a built web client alongside the API
  clm-setup-server serve --static-dir ./dist/public

  # Read settings from a specific env file
  clm-setup-server serve --env-file ./deploy/.env`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file to load before reading the environment")
	serveCmd.Flags().StringVar(&host, "host", "", "Listen address (overrides CLMSETUP_HOST)")
	serveCmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides PORT)")
	serveCmd.Flags().StringVar(&staticDir, "static-dir", "", "Directory with the web client build (overrides CLMSETUP_STATIC_DIR)")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&noAdvertise, "no-advertise", false, "Do not announce the server over mDNS")
	serveCmd.Flags().StringVar(&instance, "instance", "", "mDNS instance name (default: clm-setup-<hostname>)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := server.LoadConfig(envFile)
	if err != nil {
		return err
	}

	// Flags win over the environment
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Host = host
	}
	if flags.Changed("port") {
		cfg.Port = port
	}
	if flags.Changed("static-dir") {
		cfg.StaticDir = staticDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("instance") {
		cfg.Instance = instance
	}
	if noAdvertise {
		cfg.Advertise = false
	}

	// The server always logs; default to info when nothing is configured
	level := cfg.LogLevel
	if level == "" {
		level = "info"
	}
	if err := logging.Initialize(level); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Sync()

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if err := srv.Run(cmd.Context()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("clm-setup-server %s (commit: %s)\n", version.Version, version.Commit)
	},
}
