// Package tui implements the terminal user interface of the CLM PRO
// onboarding wizard.
//
// It is a Bubble Tea program with one coordinator model (AppModel) and a
// model per screen:
//   - Servers: browse the LAN for clm-setup-server, type an address, or go offline
//   - Auth: sign in or create an account
//   - Wizard: stage sidebar, progress bar, sub-page content with checklists
//     and simulated device actions
//   - Complete: shown after Finish on the last step
//
// All screens render through RenderApplicationContainer for a consistent
// header, content area and context-sensitive footer.
//
// # Wizard screen
//
// Navigation maps directly onto wizard.State: ←/→ call Retreat/Advance,
// 1-8 call JumpTo, space toggles the checklist item under the cursor.
// Next is disabled on the last sub-page of a step until the step validates,
// and the advisory message is shown underneath.
//
// "s" starts the next simulated action of the page on the shared
// simulate.Tracker. The tracker is re-mounted whenever the step index
// changes, and updates carrying an older generation are dropped, so a
// simulation never completes items on a step the user already left.
//
// A panic while updating or rendering a step is recovered and replaced with
// a "Something went wrong" panel; "r" clears it and re-mounts the step.
//
// # Usage
//
//	app := tui.NewAppModel(tui.Options{
//	    Auth:       account.NewMock(registry),
//	    Simulation: []simulate.TrackerOption{simulate.WithScale(0.1)},
//	})
//	final, err := tea.NewProgram(app, tea.WithAltScreen()).Run()
//	if err != nil {
//	    return err
//	}
//	final.(tui.AppModel).Close()
package tui
