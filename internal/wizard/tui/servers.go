package tui

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/clmpro/clmsetup/internal/discovery"
)

// DefaultScanTimeout bounds one LAN browse.
const DefaultScanTimeout = 5 * time.Second

// ScanFunc browses for setup servers.
type ScanFunc func(ctx context.Context) ([]*discovery.Server, error)

// Messages for async operations
type scanStartMsg struct{}
type scanCompleteMsg struct {
	servers []*discovery.Server
	err     error
}

// serversKeyMap defines key bindings for the server list
type serversKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Enter   key.Binding
	Rescan  key.Binding
	Manual  key.Binding
	Offline key.Binding
	Quit    key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k serversKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Enter, k.Rescan, k.Manual, k.Offline, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k serversKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Enter},
		{k.Rescan, k.Manual, k.Offline, k.Quit},
	}
}

// manualModeKeyMap defines key bindings for manual URL entry mode
type manualModeKeyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (m manualModeKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{m.Confirm, m.Cancel}
}

// FullHelp returns keybindings for the expanded help view
func (m manualModeKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{m.Confirm, m.Cancel}}
}

// serverItem wraps a Server for use with bubbles/list
type serverItem struct {
	server *discovery.Server
}

func (s serverItem) FilterValue() string {
	return s.server.Instance + " " + s.server.IP + " " + s.server.Hostname
}

func (s serverItem) Title() string {
	if s.server.Instance == "" {
		return s.server.BaseURL()
	}
	return s.server.Instance
}

func (s serverItem) Description() string {
	v := s.server.Version()
	if v == "" {
		v = "unknown"
	}
	return fmt.Sprintf("%s • version %s", s.server.BaseURL(), v)
}

// serverDelegate renders one server card
type serverDelegate struct {
	width int
}

func (d serverDelegate) Height() int  { return 6 }
func (d serverDelegate) Spacing() int { return 1 }

func (d serverDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d serverDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	si, ok := item.(serverItem)
	if !ok {
		return
	}
	selected := index == m.Index()

	var content strings.Builder
	if selected {
		content.WriteString(SelectedMenuItemStyle.Render("→ " + si.Title()))
	} else {
		content.WriteString("  " + si.Title())
	}
	content.WriteString("\n\n")
	content.WriteString(fmt.Sprintf("  Address: %s\n", si.server.BaseURL()))
	content.WriteString(fmt.Sprintf("  Host:    %s", si.server.Hostname))

	cardWidth := d.width - 6
	if cardWidth < MinTerminalWidth-6 {
		cardWidth = MinTerminalWidth - 6
	}
	if cardWidth > MaxContentWidth-6 {
		cardWidth = MaxContentWidth - 6
	}
	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(BorderColor).
		Padding(0, 2).
		MarginLeft(2).
		Width(cardWidth)
	if selected {
		cardStyle = cardStyle.BorderForeground(HighlightColor)
	}

	fmt.Fprint(w, cardStyle.Render(content.String()))
}

// ServersModel is the setup server picker shown when no server was given
// on the command line.
type ServersModel struct {
	Scanning   bool
	ServerList list.Model
	Err        error

	// Result of the screen: a server URL, or Offline.
	Chosen  string
	Offline bool

	ManualMode bool
	URLInput   textinput.Model
	InputErr   string

	Width         int
	Height        int
	Spinner       spinner.Model
	ProgressBar   progress.Model
	ScanStartTime time.Time
	ScanTimeout   time.Duration
	Help          help.Model
	Keys          serversKeyMap
	ManualKeys    manualModeKeyMap

	scan ScanFunc
}

// NewServersModel creates the picker. A nil scan uses mDNS discovery.
func NewServersModel(scan ScanFunc) ServersModel {
	if scan == nil {
		scan = func(ctx context.Context) ([]*discovery.Server, error) {
			return discovery.Scan(ctx, DefaultScanTimeout)
		}
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	urlInput := textinput.New()
	urlInput.Placeholder = fmt.Sprintf("http://192.168.1.20:%d", discovery.DefaultPort)
	urlInput.CharLimit = 256
	urlInput.Width = 40

	bar := progress.New(progress.WithGradient(string(PrimaryColor), string(SecondaryColor)))
	bar.Width = 40

	serverList := list.New([]list.Item{}, serverDelegate{width: MinTerminalWidth}, 0, 0)
	serverList.Title = "Setup Servers"
	serverList.SetShowStatusBar(false)
	serverList.SetFilteringEnabled(true)
	serverList.SetShowHelp(false)
	serverList.Styles.Title = TitleStyle

	keys := serversKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "move down"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "connect"),
		),
		Rescan: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "rescan"),
		),
		Manual: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "enter URL"),
		),
		Offline: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "offline"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc"),
			key.WithHelp("q", "quit"),
		),
	}

	manualKeys := manualModeKeyMap{
		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "connect"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
	}

	return ServersModel{
		ServerList:  serverList,
		URLInput:    urlInput,
		Spinner:     s,
		ProgressBar: bar,
		ScanTimeout: DefaultScanTimeout,
		Help:        help.New(),
		Keys:        keys,
		ManualKeys:  manualKeys,
		scan:        scan,
	}
}

// Init starts the first scan.
func (m ServersModel) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return scanStartMsg{} },
		m.scanServers(),
		m.Spinner.Tick,
	)
}

// Done reports whether the user picked a server or offline mode.
func (m ServersModel) Done() bool {
	return m.Chosen != "" || m.Offline
}

// Update handles messages and updates the model
func (m ServersModel) Update(msg tea.Msg) (ServersModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.ManualMode {
			return m.updateManualMode(msg)
		}
		return m.updateNormalMode(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.ServerList.SetDelegate(serverDelegate{width: contentWidth(msg.Width)})
		m.ServerList.SetWidth(contentWidth(msg.Width))
		m.ServerList.SetHeight(max(msg.Height-10, 6))

	case scanStartMsg:
		m.Scanning = true
		m.ScanStartTime = time.Now()

	case scanCompleteMsg:
		m.Scanning = false
		m.Err = msg.err
		items := make([]list.Item, len(msg.servers))
		for i, srv := range msg.servers {
			items[i] = serverItem{server: srv}
		}
		m.ServerList.SetItems(items)

	case spinner.TickMsg:
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m ServersModel) updateNormalMode(msg tea.KeyMsg) (ServersModel, tea.Cmd) {
	var cmd tea.Cmd

	if m.ServerList.FilterState() == list.Filtering {
		m.ServerList, cmd = m.ServerList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.Keys.Enter):
		if item, ok := m.ServerList.SelectedItem().(serverItem); ok && !m.Scanning {
			m.Chosen = item.server.BaseURL()
		}
		return m, nil

	case key.Matches(msg, m.Keys.Rescan):
		if m.Scanning {
			return m, nil
		}
		m.ServerList.SetItems([]list.Item{})
		m.Err = nil
		return m, tea.Batch(
			func() tea.Msg { return scanStartMsg{} },
			m.scanServers(),
			m.Spinner.Tick,
		)

	case key.Matches(msg, m.Keys.Manual):
		m.ManualMode = true
		m.InputErr = ""
		m.URLInput.SetValue("")
		return m, m.URLInput.Focus()

	case key.Matches(msg, m.Keys.Offline):
		m.Offline = true
		return m, nil

	case key.Matches(msg, m.Keys.Quit):
		return m, tea.Quit
	}

	if !m.Scanning {
		m.ServerList, cmd = m.ServerList.Update(msg)
	}
	return m, cmd
}

func (m ServersModel) updateManualMode(msg tea.KeyMsg) (ServersModel, tea.Cmd) {
	var cmd tea.Cmd

	switch {
	case key.Matches(msg, m.ManualKeys.Cancel):
		m.ManualMode = false
		m.URLInput.SetValue("")
		m.URLInput.Blur()
		return m, nil

	case key.Matches(msg, m.ManualKeys.Confirm):
		raw, err := normalizeServerURL(m.URLInput.Value())
		if err != nil {
			m.InputErr = err.Error()
			return m, nil
		}
		m.ManualMode = false
		m.URLInput.Blur()
		m.Chosen = raw
		return m, nil
	}

	m.URLInput, cmd = m.URLInput.Update(msg)
	return m, cmd
}

// normalizeServerURL accepts "host", "host:port" or a full http(s) URL.
func normalizeServerURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("enter a server address")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid server address %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Port() == "" && u.Scheme == "http" {
		u.Host = fmt.Sprintf("%s:%d", u.Hostname(), discovery.DefaultPort)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

// View renders the picker
func (m ServersModel) View() string {
	var content, helpText string
	switch {
	case m.ManualMode:
		content = m.renderManualEntry()
		helpText = m.Help.View(m.ManualKeys)
	case m.Scanning:
		content = m.renderScanning(contentWidth(m.Width))
		helpText = m.Help.View(m.Keys)
	default:
		content = m.renderResults()
		helpText = m.Help.View(m.Keys)
	}
	return RenderApplicationContainer(content, helpText, m.Width, m.Height)
}

func (m ServersModel) renderScanning(width int) string {
	elapsed := time.Since(m.ScanStartTime)
	frac := 0.0
	if m.ScanTimeout > 0 {
		frac = min(1, float64(elapsed)/float64(m.ScanTimeout))
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		"",
		TitleStyle.Render(fmt.Sprintf("%s SEARCHING FOR SETUP SERVERS", m.Spinner.View())),
		SubtitleStyle.Render("Looking for clm-setup-server on your network..."),
		"",
		m.ProgressBar.ViewAs(frac),
		"",
		SubtitleStyle.Render(fmt.Sprintf("Elapsed: %ds", int(elapsed.Seconds()))),
		"",
	)
	return lipgloss.Place(width, 0, lipgloss.Center, lipgloss.Top, content)
}

func (m ServersModel) renderResults() string {
	var b strings.Builder
	b.WriteString("\n")

	switch {
	case m.Err != nil:
		b.WriteString(RenderError(fmt.Sprintf("Scan failed: %v", m.Err)))
		b.WriteString("\n\n")
		b.WriteString(troubleshooting)
	case len(m.ServerList.Items()) == 0:
		b.WriteString("  ")
		b.WriteString(WarningStyle.Render("⚠ No setup servers found on your network"))
		b.WriteString("\n\n")
		b.WriteString(troubleshooting)
	default:
		b.WriteString(m.ServerList.View())
	}
	return b.String()
}

const troubleshooting = `  Troubleshooting:
    • Start a server with 'clm-setup-server serve'
    • Make sure this computer is on the same network
    • Press 'm' to type the address, or 'o' to continue offline
`

func (m ServersModel) renderManualEntry() string {
	var b strings.Builder
	b.WriteString(RenderSubtitle("Enter setup server address"))
	b.WriteString("\n\n  URL: ")
	b.WriteString(m.URLInput.View())
	b.WriteString("\n\n")
	if m.InputErr != "" {
		b.WriteString("  " + WarningStyle.Render(m.InputErr))
		b.WriteString("\n")
	}
	return b.String()
}

func (m ServersModel) scanServers() tea.Cmd {
	scan, timeout := m.scan, m.ScanTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout+time.Second)
		defer cancel()
		servers, err := scan(ctx)
		return scanCompleteMsg{servers: servers, err: err}
	}
}
