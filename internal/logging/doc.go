// Package logging provides structured logging for the CLM PRO setup tools.
//
// This package wraps a global zap logger with convenience functions for the
// logging patterns used by the setup server and the onboarding wizard.
//
// # Log Levels
//
//   - Debug: Simulation ticks, session lookups, raw request bodies
//   - Info: Requests, logins, step transitions, server lifecycle
//   - Warn: Best-effort failures (step persistence, event delivery)
//   - Error: Startup failures and unexpected handler errors
//
// # Silent By Default
//
// The wizard draws a full-screen terminal UI, so logging is disabled unless a
// level is passed explicitly or CLMSETUP_LOG_LEVEL is set. The wizard sends its
// log output to a file (see InitializeFile) so it never corrupts the screen.
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// # Specialized Logging
//
//	logging.LogHTTPRequest("GET", "/api/user", 200, 3*time.Millisecond, body)
//	logging.LogStepTransition(userID, from, to)
//	logging.LogSimulation("power-on", generation, "done")
//
// All functions are safe for concurrent use.
package logging
