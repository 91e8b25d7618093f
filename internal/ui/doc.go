// Package ui renders the one-shot terminal output of the clm-setup CLI.
//
// Unlike the interactive wizard in wizard/tui, these components follow a
// "run once and exit" pattern: commands print a Header, optionally a
// Progress list, and finish with a Result box.
//
//   - Header: command banner with ordered parameters
//   - Progress: bubbles progress bar above a step list
//   - Result: success, warning or failure box with troubleshooting tips
//   - LogBox: tail of the event log for --verbose
//
// Runner wires these together for long operations:
//
//	runner := ui.NewRunner(ui.RunnerConfig{
//	    Title:     "Calibration",
//	    Command:   "clm-setup simulate calibration",
//	    StepNames: []string{"Environment check", "Calibrating"},
//	})
//	_, err := runner.Run(ctx, func(ctx context.Context, onStep ui.StepCallback) ([]ui.Param, error) {
//	    onStep(1, "", ui.StepRunning, "")
//	    // ...
//	    onStep(1, "", ui.StepComplete, "")
//	    return nil, nil
//	})
//
// Zap logging stays silent unless CLMSETUP_LOG_LEVEL is set, so the styled
// output is not interleaved with log lines.
package ui
