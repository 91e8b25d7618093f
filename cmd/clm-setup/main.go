// Clm-setup is the onboarding wizard for the CLM PRO launch monitor.
//
// It walks a user through the physical installation and device setup of a
// CLM PRO in eight steps, saving progress to the setup server (or, offline,
// to the local config file). Device interactions such as firmware updates
// and calibration are simulated.
//
// Usage:
//
//	clm-setup [command] [flags]
//
// Running without arguments launches the interactive wizard.
// See 'clm-setup --help' for available commands.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/clmpro/clmsetup/internal/config"
	"github.com/clmpro/clmsetup/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	serverURL  string
	offline    bool
	configPath string
	logFile    string
	logLevel   string
	timeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "clm-setup",
	Short: "CLM PRO Setup Wizard",
	Long: `Guided onboarding for the CLM PRO launch monitor.

Signs you in to a setup server, then walks through room preparation,
mounting, wiring, power, device binding, firmware, alignment and
calibration. Progress is saved as you go, so you can quit and resume.

If no command is specified, the interactive wizard will launch automatically.`,
	Version: version.Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: run wizard when no subcommand provided
		return runWizard(cmd, args)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Setup server URL (default: saved server or "+config.DefaultServerURL+")")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "Use the offline demo account instead of a server")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/clmsetup/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 15*time.Second, "Server request timeout")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("clm-setup %s (commit: %s)\n", version.Version, version.Commit)
	},
}
