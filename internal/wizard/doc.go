// Package wizard implements the navigation and completion model of the CLM PRO
// onboarding flow.
//
// The flow is a fixed, 0-indexed sequence of eight steps grouped into two
// stages ("Physical Installation" and "Device Setup"). Each step has one or
// more sub-pages and a set of completion keys that must all be true before
// the step's Next control is enabled.
//
// # Registry
//
// DefaultRegistry returns the static step definitions. A Registry is never
// mutated after construction.
//
// # State
//
// State is the single source of truth for where the user is:
//
//	reg := wizard.DefaultRegistry()
//	st := wizard.New(reg,
//	    wizard.WithResumeStep(user.CurrentStep),
//	    wizard.WithPersister(auth, user.ID),
//	    wizard.WithCompletionHandler(func() { fmt.Println("done") }),
//	)
//
//	st.SetCompletion("step-0", true)
//	if st.CanAdvance() {
//	    st.Advance()
//	}
//
// Navigation never fails. Positions are clamped into range, and the only
// fallible side effect, writing the current step back to the account, is
// best effort: it runs in the background and failures are logged, never
// returned.
//
// # Concurrency
//
// State is owned by a single UI goroutine and is not safe for concurrent use.
// Background persistence does not touch State.
package wizard
