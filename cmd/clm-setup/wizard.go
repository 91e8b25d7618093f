package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gosimple/slug"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clmpro/clmsetup/internal/account"
	"github.com/clmpro/clmsetup/internal/client"
	"github.com/clmpro/clmsetup/internal/config"
	"github.com/clmpro/clmsetup/internal/discovery"
	"github.com/clmpro/clmsetup/internal/logging"
	"github.com/clmpro/clmsetup/internal/simulate"
	"github.com/clmpro/clmsetup/internal/ui"
	"github.com/clmpro/clmsetup/internal/wizard"
	"github.com/clmpro/clmsetup/internal/wizard/tui"
)

// Wizard command flags
var (
	fast       bool
	startStep  string
	pickServer bool
)

// fastScale shortens simulated device delays for demos.
const fastScale = 0.1

// wizardCmd launches the interactive TUI wizard
var wizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Launch the interactive setup wizard",
	Long: `Launch the interactive setup wizard.

The wizard signs you in (or resumes a saved session), then shows the eight
setup steps grouped into Physical Installation and Device Setup. Checklists
must be ticked and device actions completed before Next unlocks; the sidebar
lets you jump to any step.

Without a configured server the wizard first browses the local network for
setup servers. Choose offline mode there, or pass --offline, to use a demo
account whose progress is kept in the local config file.`,
	Example: `  # Launch wizard (wizard is the default command)
  clm-setup

  # Resume at a specific step
  clm-setup wizard --step firmware-update

  # Pick a server from the local network
  clm-setup wizard --discover

  # Offline demo with short simulated delays
  clm-setup --offline wizard --fast`,
	RunE: runWizard,
}

func init() {
	for _, c := range []*cobra.Command{rootCmd, wizardCmd} {
		c.Flags().BoolVar(&fast, "fast", false, "Shorten simulated device operations")
		c.Flags().StringVar(&startStep, "step", "", "Jump to a step by name after signing in (see 'clm-setup steps')")
		c.Flags().BoolVar(&pickServer, "discover", false, "Choose a setup server from the local network first")
	}
	rootCmd.AddCommand(wizardCmd)
}

func runWizard(cmd *cobra.Command, args []string) error {
	if !ui.IsTerminal() {
		return fmt.Errorf("the wizard needs an interactive terminal; see 'clm-setup --help' for scripted commands")
	}

	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	// The wizard owns the terminal, so logs always go to a file
	path := logFile
	if path == "" && reg.Path() != "" {
		path = filepath.Join(filepath.Dir(reg.Path()), "clm-setup.log")
	}
	if err := logging.InitializeFile(logLevel, path); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Sync()

	steps := wizard.DefaultRegistry()
	var stepSlug string
	if startStep != "" {
		def, ok := steps.BySlug(slug.Make(startStep))
		if !ok {
			return fmt.Errorf("unknown step %q (run 'clm-setup steps' to list them)", startStep)
		}
		stepSlug = def.Slug
	}

	prefs := reg.Prefs()
	offlineAuth := account.NewMock(reg)

	opts := tui.Options{
		Registry:     steps,
		StartStep:    stepSlug,
		Simulation:   simulationOptions(prefs),
		Logger:       logging.GetLogger(),
		ErrorMessage: client.ShortMessage,
		Offline:      offlineAuth,
		Scan: func(ctx context.Context) ([]*discovery.Server, error) {
			return discovery.Scan(ctx, time.Duration(prefs.DiscoverTimeout)*time.Second)
		},
		Connect: func(baseURL string) (account.Authenticator, error) {
			return newClient(reg, baseURL)
		},
		OnSignIn: func(auth account.Authenticator, user *account.User) {
			rememberSession(reg, auth, user)
		},
		SavedCompletion: reg.Completion,
	}

	token, _ := reg.Session()
	unconfigured := serverURL == "" && token == "" && reg.ServerURL() == config.DefaultServerURL
	useOffline := offline || prefs.Offline
	switch {
	case useOffline:
		opts.Auth = offlineAuth
	case pickServer || (prefs.AutoDiscover && unconfigured):
		// Auth stays nil: the server picker runs first
	default:
		c, err := newClient(reg, resolveServerURL(reg))
		if err != nil {
			return err
		}
		opts.Auth = c
	}

	logging.Info("Starting wizard",
		zap.Bool("offline", useOffline),
		zap.String("step", stepSlug),
	)

	p := tea.NewProgram(tui.NewAppModel(opts), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("wizard error: %w", err)
	}

	app, ok := final.(tui.AppModel)
	if !ok {
		return nil
	}
	app.Close()
	return saveWizardState(reg, app)
}

// simulationOptions scales simulated device delays from --fast or the saved
// preference.
func simulationOptions(prefs config.Preferences) []simulate.TrackerOption {
	switch {
	case fast:
		return []simulate.TrackerOption{simulate.WithScale(fastScale)}
	case prefs.SimulationScale > 0:
		return []simulate.TrackerOption{simulate.WithScale(prefs.SimulationScale)}
	default:
		return nil
	}
}

// rememberSession saves the server and session of a client sign in so the
// next run resumes without a password.
func rememberSession(reg *config.Registry, auth account.Authenticator, user *account.User) {
	c, ok := auth.(*client.Client)
	if !ok {
		return
	}
	reg.SetServerURL(c.BaseURL)
	reg.SetSession(c.SessionToken(), user.Username)
	if err := reg.Save(); err != nil {
		logging.Warn("Failed to save session", zap.Error(err))
	}
}

// saveWizardState records checklist progress, or forgets the session when
// the user logged out inside the wizard.
func saveWizardState(reg *config.Registry, app tui.AppModel) error {
	switch {
	case app.User != nil && app.State != nil:
		reg.SetCompletion(app.User.Username, app.State.CompletionSnapshot())
	case app.CurrentScreen == tui.ScreenAuth:
		if _, ok := app.Auth.(*client.Client); ok {
			reg.ClearSession()
		}
	default:
		return nil
	}
	if err := reg.Save(); err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}
