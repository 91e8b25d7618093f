package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/clmpro/clmsetup/internal/account"
	"github.com/clmpro/clmsetup/internal/client"
	"github.com/clmpro/clmsetup/internal/config"
	"github.com/clmpro/clmsetup/internal/discovery"
	"github.com/clmpro/clmsetup/internal/logging"
	"github.com/clmpro/clmsetup/internal/simulate"
	"github.com/clmpro/clmsetup/internal/ui"
	"github.com/clmpro/clmsetup/internal/urls"
	"github.com/clmpro/clmsetup/internal/wizard"
)

// Command flags
var (
	username     string
	password     string
	fullName     string
	email        string
	outputFormat string
	scanTimeout  int
	useInstance  string
	deviceName   string
	deviceSerial string
	firmware     string
	simVerbose   bool
	assumeYes    bool
)

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(stepsCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(watchCmd)
}

// loadRegistry opens the config file from --config or the default path.
func loadRegistry() (*config.Registry, error) {
	var (
		reg *config.Registry
		err error
	)
	if configPath != "" {
		reg, err = config.LoadRegistryFrom(configPath)
	} else {
		reg, err = config.LoadRegistry()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return reg, nil
}

// resolveServerURL prefers --server over the saved server.
func resolveServerURL(reg *config.Registry) string {
	if serverURL != "" {
		return serverURL
	}
	return reg.ServerURL()
}

// newClient creates an API client, restoring the saved session when it
// belongs to the same server.
func newClient(reg *config.Registry, baseURL string) (*client.Client, error) {
	c, err := client.New(baseURL)
	if err != nil {
		return nil, err
	}
	c.SetTimeout(timeout)
	if token, _ := reg.Session(); token != "" && c.BaseURL == strings.TrimRight(reg.ServerURL(), "/") {
		c.SetSessionToken(token)
	}
	return c, nil
}

// authenticator returns the offline mock or a server client.
func authenticator(reg *config.Registry) (account.Authenticator, error) {
	if offline || reg.Prefs().Offline {
		return account.NewMock(reg), nil
	}
	return newClient(reg, resolveServerURL(reg))
}

// commandContext bounds a single server round trip.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

// failure prints a failure box with transport hints and returns err so the
// command exits non-zero.
func failure(p *ui.Printer, title string, err error) error {
	p.PrintFailure(title, errors.New(client.ShortMessage(err)), ui.TroubleshootingFromHint(client.Hint(err))...)
	return err
}

// readPassword reads a password without echo when stdin is a terminal.
func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// signIn stores the session of a fresh sign in.
func signIn(reg *config.Registry, auth account.Authenticator, user *account.User) error {
	if c, ok := auth.(*client.Client); ok {
		reg.SetServerURL(c.BaseURL)
		reg.SetSession(c.SessionToken(), user.Username)
	} else {
		reg.SetSession("", user.Username)
	}
	return reg.Save()
}

// loginCmd signs in from the command line
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the setup server",
	Long: `Sign in and save the session so the wizard resumes without asking again.

The password is prompted for when --password is not given.`,
	Example: `  # Prompt for the password
  clm-setup login --username alice

  # Against a specific server
  clm-setup login --server http://192.168.1.20:5000 --username alice

  # Offline demo account with a display name
  clm-setup --offline login --username alice --name "Alice Green"`,
	RunE: runLogin,
}

// registerCmd creates an account from the command line
var registerCmd = &cobra.Command{
	Use:     "register",
	Short:   "Create an account on the setup server",
	Long:    `Create an account and sign in. A 30-day trial starts immediately.`,
	Example: `  clm-setup register --username alice --name "Alice Green" --email alice@example.com`,
	RunE:    runRegister,
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().StringVarP(&username, "username", "u", "", "Account username")
		c.Flags().StringVarP(&password, "password", "p", "", "Account password (prompted when empty)")
		_ = c.MarkFlagRequired("username")
	}
	loginCmd.Flags().StringVar(&fullName, "name", "", "Display name for the offline demo account")
	registerCmd.Flags().StringVar(&fullName, "name", "", "Full name")
	registerCmd.Flags().StringVar(&email, "email", "", "Email address")
	_ = registerCmd.MarkFlagRequired("name")
	_ = registerCmd.MarkFlagRequired("email")
}

func runLogin(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	if password == "" {
		if password, err = readPassword("Password: "); err != nil {
			return err
		}
	}

	creds := account.LoginCredentials{Username: username, Password: password, FullName: fullName}
	p := ui.NewPrinter(os.Stdout)
	if err := account.ValidateLogin(creds); err != nil {
		return failure(p, "Sign in failed", err)
	}

	auth, err := authenticator(reg)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	user, err := auth.Login(ctx, creds)
	if err != nil {
		return failure(p, "Sign in failed", err)
	}
	if err := signIn(reg, auth, user); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	p.PrintSuccess("Signed in",
		ui.Param{Key: "User", Value: user.Username},
		ui.Param{Key: "Step", Value: stepLabel(user.CurrentStep)},
	)
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	if password == "" {
		if password, err = readPassword("Choose a password: "); err != nil {
			return err
		}
	}

	creds := account.RegisterCredentials{Username: username, Password: password, FullName: fullName, Email: email}
	p := ui.NewPrinter(os.Stdout)
	if err := account.ValidateRegistration(creds); err != nil {
		return failure(p, "Registration failed", err)
	}

	auth, err := authenticator(reg)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	user, err := auth.Register(ctx, creds)
	if err != nil {
		return failure(p, "Registration failed", err)
	}
	if err := signIn(reg, auth, user); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	p.PrintSuccess("Account created",
		ui.Param{Key: "User", Value: user.Username},
		ui.Param{Key: "Trial ends", Value: user.TrialEndDate.Format("2 Jan 2006")},
	)
	return nil
}

// logoutCmd ends the saved session
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the saved session",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		auth, err := authenticator(reg)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		// The local session is dropped even if the server is unreachable
		if err := auth.Logout(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: server logout failed: %s\n", client.ShortMessage(err))
		}
		reg.ClearSession()
		if err := reg.Save(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Println("Signed out.")
		return nil
	},
}

// statusCmd shows where the wizard stands
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show account and wizard progress",
	Long: `Show the signed in user, trial state and how far the setup wizard has
progressed. Checklist counts come from the local config file.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&outputFormat, "format", "detailed", "Output format (detailed, json)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	auth, err := authenticator(reg)
	if err != nil {
		return err
	}

	_, savedUser := reg.Session()
	if savedUser == "" {
		savedUser = account.DemoUsername
	}
	var user *account.User
	if _, isClient := auth.(*client.Client); isClient {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		if user, err = auth.CurrentUser(ctx); err != nil {
			return failure(ui.NewPrinter(os.Stdout), "Status unavailable", err)
		}
	} else if step, ok := reg.LoadStep(savedUser); ok {
		// Offline: the demo session only lives for one process
		user = &account.User{Username: savedUser, CurrentStep: step}
	}

	if user == nil {
		fmt.Println("Not signed in. Run 'clm-setup login' or 'clm-setup' to start.")
		return nil
	}

	steps := wizard.DefaultRegistry()
	st := wizard.New(steps,
		wizard.WithResumeStep(user.CurrentStep),
		wizard.WithCompletion(reg.Completion(user.Username)),
	)

	if outputFormat == "json" {
		data, err := json.MarshalIndent(statusReport(user, st), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	p := ui.NewPrinter(os.Stdout)
	params := []ui.Param{{Key: "User", Value: user.Username}}
	if _, isClient := auth.(*client.Client); isClient {
		params = append(params, ui.Param{Key: "Server", Value: resolveServerURL(reg)})
	} else {
		params = append(params, ui.Param{Key: "Mode", Value: "offline"})
	}
	if !user.TrialEndDate.IsZero() {
		params = append(params, ui.Param{Key: "Trial", Value: fmt.Sprintf("%d days left", user.TrialDaysLeft(time.Now()))})
	}
	p.PrintHeader("WIZARD STATUS", "clm-setup status", params...)

	names := make([]string, steps.Len())
	for i, def := range steps.Steps() {
		names[i] = def.Title
	}
	prog := ui.NewProgress("Setup progress", names...)
	prog.SetCurrent(st.Position().Step + 1)
	for i, def := range steps.Steps() {
		if v := st.Validate(i); len(def.RequiredKeys) > 0 && i >= st.Position().Step {
			prog.Steps[i].Message = fmt.Sprintf("%d of %d done", len(def.RequiredKeys)-len(v.Missing), len(def.RequiredKeys))
		}
	}
	prog.SetPercent(st.Progress())
	p.PrintProgress(prog)
	return nil
}

type stepStatus struct {
	Index int    `json:"index"`
	Slug  string `json:"slug"`
	Title string `json:"title"`
	Valid bool   `json:"valid"`
}

type statusOutput struct {
	Username    string       `json:"username"`
	CurrentStep int          `json:"currentStep"`
	Progress    float64      `json:"progress"`
	Steps       []stepStatus `json:"steps"`
}

func statusReport(user *account.User, st *wizard.State) statusOutput {
	out := statusOutput{
		Username:    user.Username,
		CurrentStep: st.Position().Step,
		Progress:    st.Progress(),
	}
	for i, def := range st.Registry().Steps() {
		out.Steps = append(out.Steps, stepStatus{
			Index: def.Index,
			Slug:  def.Slug,
			Title: def.Title,
			Valid: st.Validate(i).IsValid,
		})
	}
	return out
}

func stepLabel(step int) string {
	def, ok := wizard.DefaultRegistry().Step(step)
	if !ok {
		return fmt.Sprintf("%d", step+1)
	}
	return fmt.Sprintf("%d - %s", step+1, def.Title)
}

// stepsCmd lists the wizard steps
var stepsCmd = &cobra.Command{
	Use:   "steps",
	Short: "List the setup steps and their names",
	Long:  `List every setup step with the name accepted by 'clm-setup --step'.`,
	Run: func(cmd *cobra.Command, args []string) {
		for _, group := range wizard.DefaultRegistry().Stages() {
			fmt.Printf("%s\n", group.Name)
			for _, def := range group.Steps {
				fmt.Printf("  %d. %-28s %s\n", def.Index+1, def.Title, def.Slug)
			}
			fmt.Println()
		}
	},
}

// devicesCmd lists the account's devices
var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List devices registered to your account",
	RunE:  runDevices,
}

// devicesAddCmd registers a device
var devicesAddCmd = &cobra.Command{
	Use:     "add",
	Short:   "Register a device with your account",
	Example: `  clm-setup devices add --name "Bay 1" --serial CLM-2024-0001`,
	RunE:    runDevicesAdd,
}

func init() {
	devicesCmd.Flags().StringVar(&outputFormat, "format", "detailed", "Output format (detailed, json)")
	devicesAddCmd.Flags().StringVar(&deviceName, "name", "", "Device name")
	devicesAddCmd.Flags().StringVar(&deviceSerial, "serial", "", "Serial number")
	devicesAddCmd.Flags().StringVar(&firmware, "firmware", "", "Firmware version")
	_ = devicesAddCmd.MarkFlagRequired("name")
	_ = devicesAddCmd.MarkFlagRequired("serial")
	devicesCmd.AddCommand(devicesAddCmd)
}

// serverClient returns a client for commands that need the setup server.
func serverClient(reg *config.Registry) (*client.Client, error) {
	if offline {
		return nil, errors.New("this command needs a setup server and cannot run with --offline")
	}
	return newClient(reg, resolveServerURL(reg))
}

func runDevices(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	c, err := serverClient(reg)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	devices, err := c.Devices(ctx)
	if err != nil {
		return failure(ui.NewPrinter(os.Stdout), "Could not list devices", err)
	}

	if outputFormat == "json" {
		data, err := json.MarshalIndent(devices, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if len(devices) == 0 {
		fmt.Println("No devices registered. The wizard binds one at the Device Binding step.")
		return nil
	}
	fmt.Printf("Found %d device(s):\n\n", len(devices))
	for i, d := range devices {
		fmt.Printf("%d. %s\n", i+1, d.Name)
		fmt.Printf("   Serial:     %s\n", d.SerialNumber)
		fmt.Printf("   Connected:  %t\n", d.Connected)
		fmt.Printf("   Calibrated: %t\n", d.Calibrated)
		if d.FirmwareVersion != "" {
			fmt.Printf("   Firmware:   %s\n", d.FirmwareVersion)
		}
		fmt.Println()
	}
	return nil
}

func runDevicesAdd(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	c, err := serverClient(reg)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	d, err := c.CreateDevice(ctx, account.NewDevice{Name: deviceName, SerialNumber: deviceSerial, FirmwareVersion: firmware})
	if err != nil {
		return failure(ui.NewPrinter(os.Stdout), "Could not register device", err)
	}
	ui.NewPrinter(os.Stdout).PrintSuccess("Device registered",
		ui.Param{Key: "ID", Value: fmt.Sprintf("%d", d.ID)},
		ui.Param{Key: "Name", Value: d.Name},
		ui.Param{Key: "Serial", Value: d.SerialNumber},
	)
	return nil
}

// discoverCmd browses the LAN for setup servers
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find setup servers on the local network",
	Long: `Browse for setup servers using mDNS/DNS-SD discovery.

Every server found is remembered in the config file. Use --use to make one
of them the default server.`,
	Example: `  # Scan for 5 seconds (default)
  clm-setup discover

  # Scan longer and switch to a server
  clm-setup discover --scan-timeout 15 --use "clm-setup-pro-shop"`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().IntVar(&scanTimeout, "scan-timeout", 0, "Scan timeout in seconds (default: saved preference)")
	discoverCmd.Flags().StringVar(&useInstance, "use", "", "Save the named server as the default")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	seconds := scanTimeout
	if seconds <= 0 {
		seconds = reg.Prefs().DiscoverTimeout
	}

	fmt.Printf("Scanning for setup servers (timeout: %ds)...\n\n", seconds)
	servers, err := discovery.Scan(cmd.Context(), time.Duration(seconds)*time.Second)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	for _, s := range servers {
		reg.RememberServer(s.Instance, s.BaseURL(), s.Hostname)
	}

	if useInstance != "" {
		known := reg.KnownServer(useInstance)
		if known == nil {
			return fmt.Errorf("no server named %q has been seen", useInstance)
		}
		reg.SetServerURL(known.URL)
	}
	if err := reg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	if len(servers) == 0 {
		fmt.Println("No servers found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Ensure clm-setup-server is running on this network")
		fmt.Println("  - Check that the server was not started with --no-advertise")
		fmt.Println("  - Try increasing --scan-timeout")
		fmt.Println("  - Use --server to specify the URL manually")
		return nil
	}

	fmt.Printf("Found %d server(s):\n\n", len(servers))
	for i, s := range servers {
		fmt.Printf("%d. %s\n", i+1, s.Instance)
		fmt.Printf("   URL:     %s\n", s.BaseURL())
		if v := s.Version(); v != "" {
			fmt.Printf("   Version: %s\n", v)
		}
		fmt.Println()
	}
	if useInstance != "" {
		fmt.Printf("Default server is now %s\n", reg.ServerURL())
	}
	return nil
}

// simulateCmd runs one simulated device interaction outside the wizard
var simulateCmd = &cobra.Command{
	Use:   "simulate <kind>",
	Short: "Run a simulated device interaction",
	Long: `Run one of the simulated device interactions the wizard uses and print
its progress. No hardware is contacted.

Kinds: ` + kindList(),
	Example: `  clm-setup simulate firmware-update
  clm-setup simulate calibration --fast --verbose`,
	Args: cobra.ExactArgs(1),
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().BoolVar(&fast, "fast", false, "Shorten simulated device operations")
	simulateCmd.Flags().BoolVarP(&simVerbose, "verbose", "v", false, "Show every update after the result")
}

func kindList() string {
	kinds := simulate.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	kind := simulate.Kind(args[0])
	if simulate.CompletionKey(kind) == "" {
		return fmt.Errorf("unknown kind %q (expected one of: %s)", args[0], kindList())
	}
	if err := logging.InitializeFile(logLevel, logFile); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Sync()

	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	tracker := simulate.NewTracker(simulationOptions(reg.Prefs())...)
	tracker.Mount()
	defer func() {
		tracker.Unmount()
		tracker.Wait()
	}()

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:     "Simulation",
		Command:   "clm-setup simulate " + string(kind),
		Params:    []ui.Param{{Key: "Kind", Value: string(kind)}},
		StepNames: []string{string(kind)},
		Troubleshooting: []string{
			"Check the unit is level and the mount is secure",
			"Run the simulation again",
			"Guide: " + urls.ForKind(string(kind)),
		},
		Verbose: simVerbose,
	})

	_, err = runner.Run(cmd.Context(), func(ctx context.Context, onStep ui.StepCallback) ([]ui.Param, error) {
		_, updates := tracker.Start(kind)
		onStep(1, "", ui.StepRunning, "starting")

		var sum simulate.Summary
		for {
			select {
			case <-ctx.Done():
				onStep(1, "", ui.StepFailed, "cancelled")
				return nil, ctx.Err()
			case u, ok := <-updates:
				if !ok {
					return simulationResult(onStep, sum)
				}
				sum.Add(u)
				runner.Logf("%3.0f%% %s", u.Progress*100, u.Detail)
				for _, w := range u.Warnings {
					runner.Logf("warning: %s", w)
				}
				if u.Shot != nil {
					runner.Logf("shot %d: club %d mph, ball %d mph, %d yds", u.Shot.ID, u.Shot.ClubSpeed, u.Shot.BallSpeed, u.Shot.Distance)
				}
				onStep(1, "", ui.StepRunning, u.Detail)
			}
		}
	})
	return err
}

func simulationResult(onStep ui.StepCallback, sum simulate.Summary) ([]ui.Param, error) {
	last := sum.Last
	if !last.Done {
		onStep(1, "", ui.StepFailed, "interrupted")
		return nil, errors.New("simulation ended early")
	}
	if last.Failed {
		onStep(1, "", ui.StepFailed, last.Detail)
		return nil, errors.New(last.Detail)
	}
	onStep(1, "", ui.StepComplete, last.Detail)

	details := []ui.Param{{Key: "Completes", Value: last.CompletionKey()}}
	if o := last.Orientation; o != nil {
		details = append(details, ui.Param{Key: "Pitch / Roll", Value: fmt.Sprintf("%.2f° / %.2f°", o.Pitch, o.Roll)})
	}
	if len(sum.Warnings) > 0 {
		details = append(details, ui.Param{Key: "Warnings", Value: strings.Join(sum.Warnings, "; ")})
	}
	return details, nil
}

// resetCmd forgets local wizard progress
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget saved wizard progress",
	Long: `Forget the checklist and step progress saved locally for the current
user. Server-side progress is reset the next time you log out in the wizard.`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
}

func runReset(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	_, user := reg.Session()
	if user == "" {
		user = account.DemoUsername
	}

	if !assumeYes && !ui.Confirm(os.Stdin, os.Stdout, "Reset progress",
		[]string{
			"All ticked checklist items for " + user + " are cleared",
			"The wizard starts again at step 1 in offline mode",
		},
		"Reset saved progress?") {
		fmt.Println("Cancelled.")
		return nil
	}

	reg.ResetProgress(user)
	if err := reg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Printf("Progress for %s cleared.\n", user)
	return nil
}

// watchCmd streams account events from the server
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream account events from the setup server",
	Long: `Print account events (step changes, device updates, subscription
changes) as the server publishes them. Stop with Ctrl+C.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	c, err := serverClient(reg)
	if err != nil {
		return err
	}

	events, err := c.WatchEvents(cmd.Context())
	if err != nil {
		return failure(ui.NewPrinter(os.Stdout), "Could not open event stream", err)
	}
	fmt.Printf("Watching %s (Ctrl+C to stop)\n\n", c.BaseURL)

	for ev := range events {
		ts := time.Now().Format("15:04:05")
		switch {
		case strings.HasPrefix(ev.Type, "user."):
			if u, err := ev.User(); err == nil {
				fmt.Printf("%s %-20s %s at %s\n", ts, ev.Type, u.Username, stepLabel(u.CurrentStep))
				continue
			}
		case strings.HasPrefix(ev.Type, "device."):
			if d, err := ev.Device(); err == nil {
				fmt.Printf("%s %-20s %s (%s) connected=%t calibrated=%t\n", ts, ev.Type, d.Name, d.SerialNumber, d.Connected, d.Calibrated)
				continue
			}
		}
		fmt.Printf("%s %-20s %s\n", ts, ev.Type, string(ev.Data))
	}
	return nil
}
