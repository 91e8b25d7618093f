package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/clmpro/clmsetup/internal/account"
	"github.com/clmpro/clmsetup/internal/logging"
	"github.com/clmpro/clmsetup/internal/simulate"
	"github.com/clmpro/clmsetup/internal/wizard"
)

// Screen represents the current active screen in the application
type Screen string

const (
	ScreenServers  Screen = "servers"
	ScreenAuth     Screen = "auth"
	ScreenWizard   Screen = "wizard"
	ScreenComplete Screen = "complete"
)

type sessionMsg struct {
	user *account.User
	err  error
}

type loggedOutMsg struct{}

// completeKeyMap defines key bindings for the completion screen
type completeKeyMap struct {
	Review key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k completeKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Review, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k completeKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Review, k.Quit}}
}

// Options configures the application.
type Options struct {
	// Auth is the session collaborator. When nil the server picker runs
	// first and Connect builds one from the chosen URL.
	Auth    account.Authenticator
	Connect func(baseURL string) (account.Authenticator, error)
	// Offline is used when the user picks offline mode in the server picker.
	Offline account.Authenticator

	Scan     ScanFunc
	Registry *wizard.Registry
	// StartStep jumps to a step slug after the session resumes.
	StartStep  string
	Simulation []simulate.TrackerOption
	Logger     *zap.Logger
	// ErrorMessage turns auth errors into form text.
	ErrorMessage func(error) string
	// OnSignIn runs after every successful sign in, e.g. to save a token.
	OnSignIn func(auth account.Authenticator, user *account.User)
	// SavedCompletion seeds the checklist state of a user, may be nil.
	SavedCompletion func(username string) map[string]bool
}

// AppModel is the top-level coordinator model that manages screen transitions
type AppModel struct {
	CurrentScreen  Screen
	PreviousScreen Screen

	ServersModel ServersModel
	AuthModel    AuthModel
	WizardModel  WizardModel

	// Shared application state
	Auth      account.Authenticator
	User      *account.User
	State     *wizard.State
	Tracker   *simulate.Tracker
	ServerURL string

	Width  int
	Height int

	Help         help.Model
	CompleteKeys completeKeyMap

	opts Options
}

// NewAppModel creates the application. It starts on the server picker when
// no authenticator was supplied, otherwise on the auth screen (which is
// skipped if a session can be resumed).
func NewAppModel(opts Options) AppModel {
	if opts.Registry == nil {
		opts.Registry = wizard.DefaultRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetLogger()
	}

	m := AppModel{
		Auth:    opts.Auth,
		Tracker: simulate.NewTracker(opts.Simulation...),
		Help:    help.New(),
		CompleteKeys: completeKeyMap{
			Review: key.NewBinding(
				key.WithKeys("b", "left"),
				key.WithHelp("b", "review steps"),
			),
			Quit: key.NewBinding(
				key.WithKeys("q", "enter"),
				key.WithHelp("q", "quit"),
			),
		},
		opts: opts,
	}

	if m.Auth == nil {
		m.CurrentScreen = ScreenServers
		m.ServersModel = NewServersModel(opts.Scan)
	} else {
		m.CurrentScreen = ScreenAuth
		m.AuthModel = NewAuthModel(m.Auth, opts.ErrorMessage)
	}
	return m
}

// Init initializes the application
func (m AppModel) Init() tea.Cmd {
	switch m.CurrentScreen {
	case ScreenServers:
		return m.ServersModel.Init()
	case ScreenAuth:
		return tea.Batch(m.AuthModel.Init(), m.resumeSession())
	default:
		return nil
	}
}

// resumeSession asks the authenticator for an existing session.
func (m AppModel) resumeSession() tea.Cmd {
	auth := m.Auth
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
		defer cancel()
		user, err := auth.CurrentUser(ctx)
		return sessionMsg{user: user, err: err}
	}
}

// Update handles all messages and routes them to the appropriate screen
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		// Screens built later get the size in transitionTo.
		switch m.CurrentScreen {
		case ScreenServers:
			m.ServersModel, _ = m.ServersModel.Update(msg)
		case ScreenAuth:
			m.AuthModel, _ = m.AuthModel.Update(msg)
		case ScreenWizard, ScreenComplete:
			m.WizardModel, _ = m.WizardModel.Update(msg)
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

	case sessionMsg:
		if msg.err != nil {
			// Resume failures are not fatal: the user signs in again.
			m.opts.Logger.Warn("Could not resume session", zap.Error(msg.err))
			return m, nil
		}
		if msg.user != nil && m.CurrentScreen == ScreenAuth {
			return m.signedIn(msg.user)
		}
		return m, nil

	case loggedOutMsg:
		m.AuthModel.Submitting = false
		return m, nil
	}

	return m.updateCurrentScreen(msg)
}

// updateCurrentScreen routes updates to the currently active screen
func (m AppModel) updateCurrentScreen(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.CurrentScreen {
	case ScreenServers:
		m.ServersModel, cmd = m.ServersModel.Update(msg)
		if m.ServersModel.Done() {
			return m.connect()
		}

	case ScreenAuth:
		m.AuthModel, cmd = m.AuthModel.Update(msg)
		if user := m.AuthModel.User; user != nil {
			return m.signedIn(user)
		}

	case ScreenWizard:
		m.WizardModel, cmd = m.WizardModel.Update(msg)
		switch {
		case m.WizardModel.Logout:
			return m.logout()
		case m.WizardModel.Done:
			return m.transitionTo(ScreenComplete)
		}

	case ScreenComplete:
		return m.handleCompleteScreen(msg)
	}

	return m, cmd
}

// connect builds the authenticator chosen on the server picker.
func (m AppModel) connect() (tea.Model, tea.Cmd) {
	sm := m.ServersModel

	if sm.Offline {
		if m.opts.Offline == nil {
			m.ServersModel.Offline = false
			m.ServersModel.Err = fmt.Errorf("offline mode is not available")
			return m, nil
		}
		m.Auth = m.opts.Offline
		m.ServerURL = ""
	} else {
		if m.opts.Connect == nil {
			m.ServersModel.Chosen = ""
			m.ServersModel.Err = fmt.Errorf("no client configured for %s", sm.Chosen)
			return m, nil
		}
		auth, err := m.opts.Connect(sm.Chosen)
		if err != nil {
			m.ServersModel.Chosen = ""
			m.ServersModel.Err = err
			return m, nil
		}
		m.Auth = auth
		m.ServerURL = sm.Chosen
	}

	m.opts.Logger.Info("Using setup server", zap.String("url", m.ServerURL), zap.Bool("offline", sm.Offline))
	mm, cmd := m.transitionTo(ScreenAuth)
	return mm, tea.Batch(cmd, mm.(AppModel).resumeSession())
}

// signedIn builds the wizard state for user and shows the wizard.
func (m AppModel) signedIn(user *account.User) (tea.Model, tea.Cmd) {
	m.User = user
	var saved map[string]bool
	if m.opts.SavedCompletion != nil {
		saved = m.opts.SavedCompletion(user.Username)
	}
	m.State = wizard.New(m.opts.Registry,
		wizard.WithResumeStep(user.CurrentStep),
		wizard.WithCompletion(saved),
		wizard.WithPersister(m.Auth, user.ID),
		wizard.WithLogger(m.opts.Logger),
		wizard.WithCompletionHandler(func() {
			m.opts.Logger.Info("Onboarding complete", zap.String("username", user.Username))
		}),
	)
	if m.opts.StartStep != "" {
		if def, ok := m.opts.Registry.BySlug(m.opts.StartStep); ok {
			m.State.JumpTo(def.Index)
		}
	}
	if m.opts.OnSignIn != nil {
		m.opts.OnSignIn(m.Auth, user)
	}
	return m.transitionTo(ScreenWizard)
}

// logout clears local progress and shows the auth screen. The form stays
// locked until the session has ended so a quick sign in cannot race it.
func (m AppModel) logout() (tea.Model, tea.Cmd) {
	m.Tracker.Unmount()
	if m.State != nil {
		m.State.Reset()
		m.State.WaitPersisted()
	}
	m.State = nil
	m.User = nil

	mm, cmd := m.transitionTo(ScreenAuth)
	app := mm.(AppModel)
	app.AuthModel.Submitting = true

	auth := m.Auth
	log := m.opts.Logger
	return app, tea.Batch(cmd, app.AuthModel.Spinner.Tick, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := auth.Logout(ctx); err != nil {
			log.Warn("Logout failed", zap.Error(err))
		}
		return loggedOutMsg{}
	})
}

// handleCompleteScreen handles user input on the completion screen
func (m AppModel) handleCompleteScreen(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, m.CompleteKeys.Review):
		m.WizardModel.Done = false
		m.Tracker.Mount()
		m.CurrentScreen = ScreenWizard
		m.PreviousScreen = ScreenComplete
		return m, nil
	case key.Matches(keyMsg, m.CompleteKeys.Quit):
		return m, tea.Quit
	}
	return m, nil
}

// transitionTo transitions to a new screen
func (m AppModel) transitionTo(screen Screen) (tea.Model, tea.Cmd) {
	m.PreviousScreen = m.CurrentScreen
	m.CurrentScreen = screen

	var cmd tea.Cmd
	size := tea.WindowSizeMsg{Width: m.Width, Height: m.Height}

	switch screen {
	case ScreenServers:
		m.ServersModel = NewServersModel(m.opts.Scan)
		m.ServersModel, _ = m.ServersModel.Update(size)
		cmd = m.ServersModel.Init()

	case ScreenAuth:
		m.AuthModel = NewAuthModel(m.Auth, m.opts.ErrorMessage)
		m.AuthModel, _ = m.AuthModel.Update(size)
		cmd = m.AuthModel.Init()

	case ScreenWizard:
		m.WizardModel = NewWizardModel(m.State, m.Tracker, m.User)
		m.WizardModel, _ = m.WizardModel.Update(size)
		cmd = m.WizardModel.Init()
	}

	return m, cmd
}

// Close stops running simulations and waits for pending step writes.
// Call it after the program exits.
func (m AppModel) Close() {
	m.Tracker.Unmount()
	m.Tracker.Wait()
	if m.State != nil {
		m.State.WaitPersisted()
	}
}

// View renders the current screen
func (m AppModel) View() string {
	switch m.CurrentScreen {
	case ScreenServers:
		return m.ServersModel.View()
	case ScreenAuth:
		return m.AuthModel.View()
	case ScreenWizard:
		return m.WizardModel.View()
	case ScreenComplete:
		return RenderApplicationContainer(m.buildCompleteContent(), m.Help.View(m.CompleteKeys), m.Width, m.Height)
	default:
		return "Unknown screen"
	}
}

func (m AppModel) buildCompleteContent() string {
	var b strings.Builder

	b.WriteString(RenderTitle("✓ Your CLM PRO is ready!"))
	b.WriteString("\n")
	b.WriteString(RenderSuccess("Setup complete. Time to hit some balls."))
	b.WriteString("\n\n")

	if m.User != nil {
		b.WriteString(fmt.Sprintf("  Account:  %s (%s)\n", m.User.FullName, m.User.Username))
		if m.User.TrialActive {
			days := m.User.TrialDaysLeft(time.Now())
			b.WriteString(fmt.Sprintf("  Trial:    %d days remaining\n", days))
		}
	}
	if m.ServerURL != "" {
		b.WriteString(fmt.Sprintf("  Server:   %s\n", m.ServerURL))
	}
	b.WriteString("\n")
	b.WriteString(MenuItemStyle.Render("  b - Review setup steps"))
	b.WriteString("\n")
	b.WriteString(MenuItemStyle.Render("  q - Exit application"))
	b.WriteString("\n")
	return b.String()
}
