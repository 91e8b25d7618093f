package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/clmpro/clmsetup/internal/account"
)

// authTimeout bounds one login or register round trip.
const authTimeout = 15 * time.Second

// AuthMode selects the form shown on the auth screen.
type AuthMode int

const (
	ModeLogin AuthMode = iota
	ModeRegister
)

func (m AuthMode) String() string {
	if m == ModeRegister {
		return "Create Account"
	}
	return "Sign In"
}

// Form field indices. Login uses the first two.
const (
	fieldUsername = iota
	fieldPassword
	fieldFullName
	fieldEmail
	fieldCount
)

type authResultMsg struct {
	user *account.User
	err  error
}

// authKeyMap defines key bindings for the auth screen
type authKeyMap struct {
	Next   key.Binding
	Prev   key.Binding
	Submit key.Binding
	Toggle key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k authKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Submit, k.Toggle, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k authKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Next, k.Prev, k.Submit}, {k.Toggle, k.Quit}}
}

// AuthModel is the login / register screen.
type AuthModel struct {
	Mode       AuthMode
	Inputs     []textinput.Model
	Focus      int
	Submitting bool
	Err        string

	// User is set once sign in succeeded.
	User *account.User

	Width   int
	Height  int
	Spinner spinner.Model
	Help    help.Model
	Keys    authKeyMap

	auth    account.Authenticator
	message func(error) string
}

// NewAuthModel creates the auth screen. message turns errors into form
// text; nil uses account.UserMessage.
func NewAuthModel(auth account.Authenticator, message func(error) string) AuthModel {
	if message == nil {
		message = account.UserMessage
	}

	inputs := make([]textinput.Model, fieldCount)
	for i := range inputs {
		t := textinput.New()
		t.CharLimit = 128
		t.Width = 36
		t.PromptStyle = BlurredInputStyle
		t.TextStyle = BlurredInputStyle
		inputs[i] = t
	}
	inputs[fieldUsername].Prompt = "Username  "
	inputs[fieldPassword].Prompt = "Password  "
	inputs[fieldPassword].EchoMode = textinput.EchoPassword
	inputs[fieldPassword].EchoCharacter = '•'
	inputs[fieldFullName].Prompt = "Full name "
	inputs[fieldEmail].Prompt = "Email     "
	inputs[fieldEmail].Placeholder = "you@example.com"

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	m := AuthModel{
		Inputs:  inputs,
		Spinner: s,
		Help:    help.New(),
		Keys: authKeyMap{
			Next: key.NewBinding(
				key.WithKeys("tab", "down"),
				key.WithHelp("tab", "next field"),
			),
			Prev: key.NewBinding(
				key.WithKeys("shift+tab", "up"),
				key.WithHelp("shift+tab", "previous field"),
			),
			Submit: key.NewBinding(
				key.WithKeys("enter"),
				key.WithHelp("enter", "submit"),
			),
			Toggle: key.NewBinding(
				key.WithKeys("ctrl+r"),
				key.WithHelp("ctrl+r", "sign in / register"),
			),
			Quit: key.NewBinding(
				key.WithKeys("esc"),
				key.WithHelp("esc", "quit"),
			),
		},
		auth:    auth,
		message: message,
	}
	m.setFocus(fieldUsername)
	return m
}

// Init starts the cursor blink.
func (m AuthModel) Init() tea.Cmd {
	return textinput.Blink
}

// visibleFields is the number of inputs the current mode shows.
func (m AuthModel) visibleFields() int {
	if m.Mode == ModeRegister {
		return fieldCount
	}
	return fieldPassword + 1
}

func (m *AuthModel) setFocus(i int) tea.Cmd {
	n := m.visibleFields()
	m.Focus = (i%n + n) % n
	var cmd tea.Cmd
	for j := range m.Inputs {
		if j == m.Focus {
			cmd = m.Inputs[j].Focus()
			m.Inputs[j].PromptStyle = FocusedInputStyle
			m.Inputs[j].TextStyle = FocusedInputStyle
			continue
		}
		m.Inputs[j].Blur()
		m.Inputs[j].PromptStyle = BlurredInputStyle
		m.Inputs[j].TextStyle = BlurredInputStyle
	}
	return cmd
}

// Update handles messages and updates the model
func (m AuthModel) Update(msg tea.Msg) (AuthModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m, nil

	case authResultMsg:
		m.Submitting = false
		if msg.err != nil {
			m.Err = m.message(msg.err)
			return m, nil
		}
		m.Err = ""
		m.User = msg.user
		return m, nil

	case spinner.TickMsg:
		if !m.Submitting {
			return m, nil
		}
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.Submitting {
			return m, nil
		}
		switch {
		case key.Matches(msg, m.Keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.Keys.Toggle):
			if m.Mode == ModeLogin {
				m.Mode = ModeRegister
			} else {
				m.Mode = ModeLogin
			}
			m.Err = ""
			return m, m.setFocus(fieldUsername)
		case key.Matches(msg, m.Keys.Next):
			return m, m.setFocus(m.Focus + 1)
		case key.Matches(msg, m.Keys.Prev):
			return m, m.setFocus(m.Focus - 1)
		case key.Matches(msg, m.Keys.Submit):
			if m.Focus < m.visibleFields()-1 {
				return m, m.setFocus(m.Focus + 1)
			}
			return m.submit()
		}
	}

	var cmd tea.Cmd
	m.Inputs[m.Focus], cmd = m.Inputs[m.Focus].Update(msg)
	return m, cmd
}

func (m AuthModel) value(field int) string {
	return strings.TrimSpace(m.Inputs[field].Value())
}

// submit validates locally, then runs the authenticator off the UI goroutine.
func (m AuthModel) submit() (AuthModel, tea.Cmd) {
	auth := m.auth

	var run func(ctx context.Context) (*account.User, error)
	if m.Mode == ModeRegister {
		creds := account.RegisterCredentials{
			Username: m.value(fieldUsername),
			Password: m.Inputs[fieldPassword].Value(),
			FullName: m.value(fieldFullName),
			Email:    m.value(fieldEmail),
		}
		if err := account.ValidateRegistration(creds); err != nil {
			m.Err = m.message(err)
			return m, nil
		}
		run = func(ctx context.Context) (*account.User, error) { return auth.Register(ctx, creds) }
	} else {
		creds := account.LoginCredentials{
			Username: m.value(fieldUsername),
			Password: m.Inputs[fieldPassword].Value(),
		}
		if err := account.ValidateLogin(creds); err != nil {
			m.Err = m.message(err)
			return m, nil
		}
		run = func(ctx context.Context) (*account.User, error) { return auth.Login(ctx, creds) }
	}

	m.Submitting = true
	m.Err = ""
	return m, tea.Batch(m.Spinner.Tick, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
		defer cancel()
		user, err := run(ctx)
		return authResultMsg{user: user, err: err}
	})
}

// View renders the form
func (m AuthModel) View() string {
	var b strings.Builder

	b.WriteString(RenderTitle(m.Mode.String()))
	b.WriteString("\n")
	if m.Mode == ModeLogin {
		b.WriteString(RenderSubtitle("Sign in to continue setting up your CLM PRO."))
	} else {
		b.WriteString(RenderSubtitle("Create an account. Your 30-day trial starts today."))
	}
	b.WriteString("\n\n")

	for i := 0; i < m.visibleFields(); i++ {
		b.WriteString("  ")
		b.WriteString(m.Inputs[i].View())
		b.WriteString("\n")
	}
	b.WriteString("\n")

	switch {
	case m.Submitting:
		b.WriteString("  " + m.Spinner.View() + " Contacting server...\n")
	case m.Err != "":
		b.WriteString(RenderError(m.Err))
		b.WriteString("\n")
	}

	return RenderApplicationContainer(b.String(), m.Help.View(m.Keys), m.Width, m.Height)
}
