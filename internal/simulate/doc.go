// Package simulate produces the timed, fake hardware responses used by the
// onboarding wizard: power-on confirmation, network checks, device scans,
// firmware progress and calibration.
//
// No I/O happens. Each Kind has a profile of delayed stages; running a
// profile emits Updates on a channel until the final stage or cancellation.
//
// # Lifetimes
//
// Runs are tied to the lifetime of the step that started them. A Tracker
// hands out Tokens; Mount starts a new lifetime and cancels everything
// started under the previous one:
//
//	tr := simulate.NewTracker()
//	tok := tr.Mount()                // step shown
//	_, updates := tr.Start(simulate.KindPowerOn)
//	...
//	tr.Mount()                       // user navigated away: runs cancelled
//	tr.Valid(tok)                    // false, late updates are dropped
//
// A cancelled run closes its channel without emitting a Done update.
package simulate
