package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/clmpro/clmsetup/internal/account"
	"github.com/clmpro/clmsetup/internal/simulate"
	"github.com/clmpro/clmsetup/internal/wizard"
)

type simUpdateMsg struct {
	update simulate.Update
	ch     <-chan simulate.Update
}

type simClosedMsg struct {
	generation uint64
}

// waitForUpdate reads the next simulation update from ch.
func waitForUpdate(gen uint64, ch <-chan simulate.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return simClosedMsg{generation: gen}
		}
		return simUpdateMsg{update: u, ch: ch}
	}
}

// simStatus is what the current step shows about its last simulation.
type simStatus struct {
	Kind        simulate.Kind
	Running     bool
	Progress    float64
	Detail      string
	Failed      bool
	Shots       []simulate.Shot
	Orientation *simulate.Orientation
	Warnings    []string
}

// wizardKeyMap defines key bindings for the wizard screen
type wizardKeyMap struct {
	Next     key.Binding
	Back     key.Binding
	Up       key.Binding
	Down     key.Binding
	Toggle   key.Binding
	Simulate key.Binding
	Jump     key.Binding
	Logout   key.Binding
	Retry    key.Binding
	Quit     key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k wizardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Back, k.Next, k.Toggle, k.Simulate, k.Jump, k.Logout, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k wizardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Back, k.Next, k.Jump},
		{k.Up, k.Down, k.Toggle, k.Simulate},
		{k.Logout, k.Quit},
	}
}

// crashKeyMap is active while the failure panel is shown
type crashKeyMap struct {
	Retry key.Binding
	Quit  key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k crashKeyMap) ShortHelp() []key.Binding { return []key.Binding{k.Retry, k.Quit} }

// FullHelp returns keybindings for the expanded help view
func (k crashKeyMap) FullHelp() [][]key.Binding { return [][]key.Binding{{k.Retry, k.Quit}} }

// WizardModel is the main onboarding screen: stage sidebar, progress bar,
// the current sub-page and its checklist or simulated device actions.
type WizardModel struct {
	State   *wizard.State
	Tracker *simulate.Tracker
	User    *account.User

	Cursor  int
	Sim     simStatus
	Flash   string // validation message after a blocked Next
	Done    bool   // Next pressed on the terminal step
	Logout  bool
	Width   int
	Height  int
	Spinner spinner.Model
	Bar     progress.Model
	SimBar  progress.Model
	Help    help.Model
	Keys    wizardKeyMap
	Crash   crashKeyMap

	boundary *boundary
}

// NewWizardModel creates the wizard screen for an existing state and
// mounts the tracker for the current step.
func NewWizardModel(st *wizard.State, tracker *simulate.Tracker, user *account.User) WizardModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	bar := progress.New(progress.WithGradient(string(PrimaryColor), string(SecondaryColor)))
	bar.Width = 40
	simBar := progress.New(progress.WithSolidFill(string(AccentColor)))
	simBar.Width = 30

	tracker.Mount()

	return WizardModel{
		State:   st,
		Tracker: tracker,
		User:    user,
		Spinner: s,
		Bar:     bar,
		SimBar:  simBar,
		Help:    help.New(),
		Keys: wizardKeyMap{
			Next: key.NewBinding(
				key.WithKeys("right", "l", "n", "enter"),
				key.WithHelp("→/n", "next"),
			),
			Back: key.NewBinding(
				key.WithKeys("left", "h", "b"),
				key.WithHelp("←/b", "back"),
			),
			Up: key.NewBinding(
				key.WithKeys("up", "k"),
				key.WithHelp("↑/k", "up"),
			),
			Down: key.NewBinding(
				key.WithKeys("down", "j"),
				key.WithHelp("↓/j", "down"),
			),
			Toggle: key.NewBinding(
				key.WithKeys(" ", "x"),
				key.WithHelp("space", "check item"),
			),
			Simulate: key.NewBinding(
				key.WithKeys("s"),
				key.WithHelp("s", "start"),
			),
			Jump: key.NewBinding(
				key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"),
				key.WithHelp("1-8", "jump to step"),
			),
			Logout: key.NewBinding(
				key.WithKeys("ctrl+o"),
				key.WithHelp("ctrl+o", "log out"),
			),
			Quit: key.NewBinding(
				key.WithKeys("q"),
				key.WithHelp("q", "quit"),
			),
		},
		Crash: crashKeyMap{
			Retry: key.NewBinding(
				key.WithKeys("r"),
				key.WithHelp("r", "try again"),
			),
			Quit: key.NewBinding(
				key.WithKeys("q"),
				key.WithHelp("q", "quit"),
			),
		},
		boundary: &boundary{},
	}
}

// Init starts the spinner.
func (m WizardModel) Init() tea.Cmd {
	return m.Spinner.Tick
}

// Failed reports whether the error boundary is showing.
func (m WizardModel) Failed() bool {
	return m.boundary.failed()
}

func (m WizardModel) page() Page {
	pos := m.State.Position()
	return PageFor(m.State.CurrentStep(), pos.SubPage)
}

// nextBlocked reports whether Next would leave the step with open items.
func (m WizardModel) nextBlocked() bool {
	pos := m.State.Position()
	last := m.State.Registry().SubPages(pos.Step) - 1
	return pos.SubPage == last && !m.State.CanAdvance()
}

// Update handles messages and updates the model. A panic in step handling
// is caught and shown as the failure panel.
func (m WizardModel) Update(msg tea.Msg) (model WizardModel, cmd tea.Cmd) {
	defer func() {
		if r := recover(); r != nil {
			m.boundary.catch(r)
			model, cmd = m, nil
		}
	}()

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		w := contentWidth(msg.Width) - SidebarWidth - 8
		m.Bar.Width = max(min(w, 60), 20)
		return m, nil

	case spinner.TickMsg:
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		return m, nil

	case simUpdateMsg:
		return m.applyUpdate(msg)

	case simClosedMsg:
		if msg.generation == m.Tracker.Current().Generation && m.Sim.Running {
			m.Sim.Running = false
		}
		return m, nil

	case tea.KeyMsg:
		if m.boundary.failed() {
			return m.updateCrashed(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m WizardModel) updateCrashed(msg tea.KeyMsg) (WizardModel, tea.Cmd) {
	switch {
	case key.Matches(msg, m.Crash.Retry):
		m.boundary.reset()
		m.Tracker.Mount()
		m.Sim = simStatus{}
		m.Cursor = 0
	case key.Matches(msg, m.Crash.Quit):
		return m, tea.Quit
	}
	return m, nil
}

func (m WizardModel) updateKeys(msg tea.KeyMsg) (WizardModel, tea.Cmd) {
	before := m.State.Position()

	switch {
	case key.Matches(msg, m.Keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.Keys.Logout):
		m.Tracker.Unmount()
		m.Logout = true
		return m, nil

	case key.Matches(msg, m.Keys.Next):
		if m.nextBlocked() {
			m.Flash = m.State.Validate(before.Step).Message
			return m, nil
		}
		m.State.Advance()
		if m.State.IsComplete() {
			m.Tracker.Unmount()
			m.Done = true
			return m, nil
		}

	case key.Matches(msg, m.Keys.Back):
		m.State.Retreat()

	case key.Matches(msg, m.Keys.Jump):
		n, err := strconv.Atoi(msg.String())
		if err != nil || n < 1 || n > m.State.Registry().Len() {
			return m, nil
		}
		m.State.JumpTo(n - 1)

	case key.Matches(msg, m.Keys.Up):
		if m.Cursor > 0 {
			m.Cursor--
		}
		return m, nil

	case key.Matches(msg, m.Keys.Down):
		if m.Cursor < len(m.page().Items)-1 {
			m.Cursor++
		}
		return m, nil

	case key.Matches(msg, m.Keys.Toggle):
		items := m.page().Items
		if m.Cursor < len(items) {
			m.State.Toggle(items[m.Cursor].Key)
			m.Flash = ""
		}
		return m, nil

	case key.Matches(msg, m.Keys.Simulate):
		return m.startSimulation()
	}

	after := m.State.Position()
	if after != before {
		m.Cursor = 0
		m.Flash = ""
	}
	if after.Step != before.Step {
		m.Tracker.Mount()
		m.Sim = simStatus{}
	}
	return m, nil
}

func (m WizardModel) startSimulation() (WizardModel, tea.Cmd) {
	if m.Sim.Running {
		return m, nil
	}
	kind, ok := nextAction(m.page(), m.State)
	if !ok {
		return m, nil
	}
	tok, ch := m.Tracker.Start(kind)
	m.Sim = simStatus{Kind: kind, Running: true}
	m.Flash = ""
	return m, tea.Batch(waitForUpdate(tok.Generation, ch), m.Spinner.Tick)
}

// applyUpdate folds one simulation update into the model. Updates from a
// previous step lifetime are dropped.
func (m WizardModel) applyUpdate(msg simUpdateMsg) (WizardModel, tea.Cmd) {
	u := msg.update
	if !m.Tracker.Accept(u) || u.Kind != m.Sim.Kind {
		return m, nil
	}

	m.Sim.Progress = u.Progress
	if u.Detail != "" {
		m.Sim.Detail = u.Detail
	}
	if u.Shot != nil {
		m.Sim.Shots = append(m.Sim.Shots, *u.Shot)
	}
	if u.Orientation != nil {
		o := *u.Orientation
		m.Sim.Orientation = &o
	}
	if len(u.Warnings) > 0 {
		m.Sim.Warnings = append(m.Sim.Warnings, u.Warnings...)
	}

	if !u.Done {
		return m, waitForUpdate(u.Generation, msg.ch)
	}

	m.Sim.Running = false
	m.Sim.Failed = u.Failed
	if k := u.CompletionKey(); k != "" {
		m.State.SetCompletion(k, true)
	}
	return m, nil
}

// View renders the wizard screen
func (m WizardModel) View() string {
	var helpText string
	if m.boundary.failed() {
		helpText = m.Help.View(m.Crash)
	} else {
		helpText = m.Help.View(m.Keys)
	}

	content := lipgloss.JoinHorizontal(lipgloss.Top,
		SidebarStyle.Render(m.renderSidebar()),
		lipgloss.NewStyle().PaddingLeft(2).Render(m.boundary.guard(m.renderStep)),
	)

	// A panic inside guard flips the boundary after helpText was chosen.
	if m.boundary.failed() {
		helpText = m.Help.View(m.Crash)
	}
	return RenderApplicationContainer(content, helpText, m.Width, m.Height)
}

func (m WizardModel) renderSidebar() string {
	var b strings.Builder
	if m.User != nil {
		b.WriteString(lipgloss.NewStyle().Bold(true).Render(m.User.FullName))
		b.WriteString("\n")
		b.WriteString(SubtitleStyle.Render("@" + m.User.Username))
		b.WriteString("\n")
	}

	cur := m.State.Position().Step
	for _, g := range m.State.Registry().Stages() {
		b.WriteString(StageStyle.Render(strings.ToUpper(g.Name)))
		b.WriteString("\n")
		for _, def := range g.Steps {
			marker := PendingItemStyle.Render("○")
			if m.State.Validate(def.Index).IsValid {
				marker = DoneItemStyle.Render("✓")
			}
			line := fmt.Sprintf("%s %d %s", marker, def.Index+1, def.Title)
			if def.Index == cur {
				line = SelectedMenuItemStyle.UnsetPaddingLeft().Render("› ") + lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("%d %s", def.Index+1, def.Title))
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m WizardModel) renderStep() string {
	st := m.State
	reg := st.Registry()
	pos := st.Position()
	def := st.CurrentStep()
	page := m.page()

	var b strings.Builder

	b.WriteString(m.Bar.ViewAs(st.Progress()))
	b.WriteString("\n")
	b.WriteString(SubtitleStyle.Render(fmt.Sprintf("Step %d of %d • %s", pos.Step+1, reg.Len(), def.Stage)))
	b.WriteString("\n")
	b.WriteString(RenderTitle(def.Title))
	b.WriteString("\n")

	heading := page.Heading
	if n := reg.SubPages(pos.Step); n > 1 {
		heading = fmt.Sprintf("%s (%d/%d)", heading, pos.SubPage+1, n)
	}
	b.WriteString(lipgloss.NewStyle().Bold(true).Render(heading))
	b.WriteString("\n\n")

	for _, line := range page.Body {
		b.WriteString(line)
		b.WriteString("\n")
	}

	if len(page.Items) > 0 {
		b.WriteString("\n")
		for i, item := range page.Items {
			b.WriteString(RenderCheckbox(item.Label, st.Completion(item.Key), i == m.Cursor))
			b.WriteString("\n")
		}
	}

	if len(page.Actions) > 0 {
		b.WriteString("\n")
		b.WriteString(m.renderActions(page))
	}

	b.WriteString("\n")
	b.WriteString(m.renderNav())
	return b.String()
}

func (m WizardModel) renderActions(page Page) string {
	var b strings.Builder
	for _, k := range page.Actions {
		done := m.State.Completion(simulate.CompletionKey(k))
		switch {
		case m.Sim.Kind == k && m.Sim.Running:
			b.WriteString(fmt.Sprintf("  %s %s  %s\n", m.Spinner.View(), kindLabel(k), m.SimBar.ViewAs(m.Sim.Progress)))
		case done:
			b.WriteString("  " + DoneItemStyle.Render("✓ "+kindLabel(k)) + "\n")
		case m.Sim.Kind == k && m.Sim.Failed:
			b.WriteString("  " + ErrorStyle.UnsetBorderStyle().UnsetPadding().Render("✗ "+kindLabel(k)) + "\n")
		default:
			b.WriteString("  " + PendingItemStyle.Render("○ "+kindLabel(k)) + "\n")
		}
	}

	if !m.showsSim(page) {
		b.WriteString("\n" + SubtitleStyle.Render("Press s to start.") + "\n")
		return b.String()
	}

	if m.Sim.Detail != "" {
		b.WriteString("\n  " + m.Sim.Detail + "\n")
	}
	if o := m.Sim.Orientation; o != nil {
		b.WriteString(fmt.Sprintf("\n  Pitch %+.2f°  Roll %+.2f°  Height %.1f ft  Aligned %v\n", o.Pitch, o.Roll, o.Height, o.Alignment))
	}
	if len(m.Sim.Shots) > 0 {
		b.WriteString("\n")
		b.WriteString(renderShots(m.Sim.Shots))
	}
	for _, w := range m.Sim.Warnings {
		b.WriteString("  " + WarningStyle.Render("⚠ "+w) + "\n")
	}
	if !m.Sim.Running {
		if m.Sim.Failed {
			b.WriteString("\n" + SubtitleStyle.Render("Adjust the unit and press s to check again.") + "\n")
		} else if k, ok := nextAction(page, m.State); ok && !m.State.Completion(simulate.CompletionKey(k)) {
			b.WriteString("\n" + SubtitleStyle.Render("Press s to continue.") + "\n")
		}
	}
	return b.String()
}

// showsSim reports whether the last run belongs to this page.
func (m WizardModel) showsSim(page Page) bool {
	if m.Sim.Kind == "" {
		return false
	}
	for _, k := range page.Actions {
		if k == m.Sim.Kind {
			return true
		}
	}
	return false
}

func (m WizardModel) renderNav() string {
	back := ButtonStyle.Render("← Back")
	if pos := m.State.Position(); pos.Step == 0 && pos.SubPage == 0 {
		back = DisabledButtonStyle.Render("← Back")
	}

	label := "Next →"
	if m.State.IsTerminal() {
		label = "Finish ✓"
	}
	next := ButtonStyle.Render(label)
	var advisory string
	if m.nextBlocked() {
		next = DisabledButtonStyle.Render(label)
		advisory = WarningStyle.Render(m.State.Validate(m.State.Position().Step).Message)
	}

	var b strings.Builder
	b.WriteString(back + "  " + next)
	b.WriteString("\n")
	switch {
	case m.Flash != "":
		b.WriteString(WarningStyle.Render("⚠ " + m.Flash))
		b.WriteString("\n")
	case advisory != "":
		b.WriteString(advisory)
		b.WriteString("\n")
	}
	return b.String()
}

func renderShots(shots []simulate.Shot) string {
	var b strings.Builder
	header := lipgloss.NewStyle().Foreground(SubtleColor).Render(
		fmt.Sprintf("  %-4s %-6s %-6s %-7s %-6s %-5s", "#", "Club", "Ball", "Launch", "Spin", "Carry"))
	b.WriteString(header + "\n")
	for _, s := range shots {
		b.WriteString(fmt.Sprintf("  %-4d %-6d %-6d %-7.1f %-6d %-5d\n",
			s.ID, s.ClubSpeed, s.BallSpeed, s.LaunchAngle, s.SpinRate, s.Distance))
	}
	return b.String()
}

func kindLabel(k simulate.Kind) string {
	switch k {
	case simulate.KindPowerOn:
		return "Power on"
	case simulate.KindNetworkCheck:
		return "Network check"
	case simulate.KindDeviceScan:
		return "Scan for device"
	case simulate.KindBind:
		return "Bind device"
	case simulate.KindFirmware:
		return "Install firmware"
	case simulate.KindAzimuth:
		return "Azimuth check"
	case simulate.KindTestShots:
		return "Record test shots"
	case simulate.KindCalibration:
		return "Calibrate"
	default:
		return string(k)
	}
}
