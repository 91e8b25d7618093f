package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// RunnerConfig describes a long-running command such as a simulated
// device interaction.
type RunnerConfig struct {
	Title           string   // e.g., "Calibration"
	Command         string   // e.g., "clm-setup simulate calibration"
	Params          []Param  // shown in the header
	StepNames       []string // one entry per reported step
	Troubleshooting []string // shown when the operation fails
	Verbose         bool     // show the event log after the result
	Output          io.Writer
}

// Runner prints the header, then step lines as they are reported, then a
// result box.
type Runner struct {
	config   RunnerConfig
	header   *Header
	progress *Progress
	log      *LogBox
	out      io.Writer
	width    int
}

// Operation is the work a Runner wraps. It reports progress through onStep
// and returns extra result details.
type Operation func(ctx context.Context, onStep StepCallback) ([]Param, error)

// NewRunner creates a runner
func NewRunner(config RunnerConfig) *Runner {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	width := GetTerminalWidth()

	r := &Runner{
		config: config,
		header: NewHeader(config.Title, config.Command, config.Params...).SetWidth(width),
		log:    NewLogBox("Event Log", ""),
		out:    config.Output,
		width:  width,
	}
	if len(config.StepNames) > 0 {
		r.progress = NewProgress("", config.StepNames...).SetWidth(width)
	}
	return r
}

// Logf appends a line to the verbose event log
func (r *Runner) Logf(format string, args ...interface{}) {
	r.log.Append(format, args...)
}

// Run executes op and prints its progress and outcome.
func (r *Runner) Run(ctx context.Context, op Operation) ([]Param, error) {
	start := time.Now()

	_, _ = fmt.Fprintln(r.out, r.header.Render())
	_, _ = fmt.Fprintln(r.out)

	details, err := op(ctx, r.onStep)
	duration := time.Since(start).Round(time.Millisecond)

	_, _ = fmt.Fprintln(r.out)
	if err != nil {
		res := NewFailureResult(r.config.Title+" failed", err, r.config.Troubleshooting...)
		res.AddDetail("Duration", duration.String())
		_, _ = fmt.Fprintln(r.out, res.SetWidth(r.width).Render())
	} else {
		res := NewSuccessResult(r.config.Title+" complete", details...)
		res.AddDetail("Duration", duration.String())
		_, _ = fmt.Fprintln(r.out, res.SetWidth(r.width).Render())
	}

	if r.config.Verbose && len(r.log.Lines) > 0 {
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintln(r.out, r.log.SetWidth(r.width).Render())
	}
	return details, err
}

func (r *Runner) onStep(stepNumber int, name string, status StepStatus, message string) {
	if r.progress == nil || stepNumber < 1 || stepNumber > len(r.progress.Steps) {
		return
	}
	if name != "" {
		r.progress.Steps[stepNumber-1].Name = name
	}
	r.progress.UpdateStep(stepNumber, status, message)

	line := r.progress.renderStepLine(r.progress.Steps[stepNumber-1])
	switch status {
	case StepComplete, StepFailed, StepSkipped:
		_, _ = fmt.Fprintln(r.out, line)
	case StepRunning:
		// Overwritten when the step finishes
		_, _ = fmt.Fprint(r.out, line+"\r")
	}
}
