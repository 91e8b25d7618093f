package tui

import (
	"github.com/clmpro/clmsetup/internal/simulate"
	"github.com/clmpro/clmsetup/internal/urls"
	"github.com/clmpro/clmsetup/internal/wizard"
)

// ChecklistItem is one toggleable line on a page.
type ChecklistItem struct {
	Key   string
	Label string
}

// Page is the content of one sub-page.
type Page struct {
	Heading string
	Body    []string
	Items   []ChecklistItem
	// Actions are simulated device interactions, run in order with "s".
	Actions []simulate.Kind
}

func requirementItems() []ChecklistItem {
	keys := wizard.RequirementKeys()
	items := make([]ChecklistItem, len(keys))
	for i, k := range keys {
		items[i] = ChecklistItem{Key: k, Label: wizard.InstallationRequirements[i]}
	}
	return items
}

var pages = map[string]Page{
	"measurements": {
		Heading: "Measure your space",
		Body: []string{
			"Ceiling height: 9 - 10.5 feet is ideal (7 - 16 feet supported).",
			"Wall distance: 6 - 16 feet from tee to screen face.",
			"Hitting area: at least 3 - 4 feet wide on either side of the tee.",
		},
	},
	"clearance": {
		Heading: "Mounting surface",
		Body: []string{
			"The monitor mounts to a ceiling joist or a solid surface able to hold 10 lbs.",
			"Keep lights and fans out of the camera's view of the hitting zone.",
		},
		Items: []ChecklistItem{{Key: "step-0", Label: "My room meets the space requirements"}},
	},
	"overview": {
		Heading: "Installation requirements",
		Body:    []string{"Gather everything below before you start mounting."},
		Items:   requirementItems(),
	},
	"resources": {
		Heading: "Additional resources",
		Body: []string{
			"Detailed installation guide (PDF): " + urls.InstallationGuide,
			"Already installed? Jump ahead with the number keys.",
		},
	},
	"mounting": {
		Heading: "Mount the bracket",
		Body:    []string{"Attach the bracket 9 - 10.5 feet high, then click the device firmly into it."},
		Items:   []ChecklistItem{{Key: "mount-secured", Label: "Bracket is level and securely attached"}},
	},
	"wiring": {
		Heading: "Connect power",
		Body:    []string{"Route the power cable along the ceiling and plug it in."},
		Items:   []ChecklistItem{{Key: "wiring-connected", Label: "Power cable is connected and routed neatly"}},
	},
	"verification": {
		Heading: "Installation checklist",
		Body:    []string{"Confirm the device sits level and faces the screen."},
		Items:   []ChecklistItem{{Key: "level-checked", Label: "Device is level and clicked firmly into bracket"}},
	},
	"power": {
		Heading: "Power on the device",
		Body: []string{
			"Switch the device on and wait for the indicators:",
			"  • Power indicator",
			"  • Network connection",
			"  • Status (ready)",
		},
		Actions: []simulate.Kind{simulate.KindPowerOn, simulate.KindNetworkCheck},
	},
	"scan": {
		Heading: "Connect to your CLM PRO",
		Body:    []string{"Keep the device powered and within range while we search for it."},
		Actions: []simulate.Kind{simulate.KindDeviceScan},
	},
	"bind": {
		Heading: "Bind to your account",
		Body:    []string{"Binding links this unit to your account so your data follows you."},
		Actions: []simulate.Kind{simulate.KindBind},
	},
	"firmware": {
		Heading: "Firmware update",
		Body:    []string{"Do not unplug the device while the update installs."},
		Actions: []simulate.Kind{simulate.KindFirmware},
	},
	"azimuth": {
		Heading: "Align device and confirm mounting",
		Body:    []string{"Pitch and roll must be within ±0.5° and the unit aligned to the target line."},
		Actions: []simulate.Kind{simulate.KindAzimuth},
	},
	"test-shots": {
		Heading: "Test shots",
		Body:    []string{"Hit three shots so the monitor can verify its readings."},
		Actions: []simulate.Kind{simulate.KindTestShots},
	},
	"final": {
		Heading: "Final calibration",
		Body:    []string{"We check the hitting environment, then finish calibrating."},
		Actions: []simulate.Kind{simulate.KindCalibration},
	},
}

// PageFor returns the content of sub-page n of def. Unknown pages fall
// back to the step description.
func PageFor(def wizard.StepDefinition, n int) Page {
	if n >= 0 && n < len(def.SubPages) {
		if p, ok := pages[def.SubPages[n]]; ok {
			return p
		}
	}
	return Page{Heading: def.Title, Body: []string{def.Description}}
}

// nextAction picks the first action of p whose completion key is still
// unset, or the last action when all are done so it can be re-run.
func nextAction(p Page, st *wizard.State) (simulate.Kind, bool) {
	if len(p.Actions) == 0 {
		return "", false
	}
	for _, k := range p.Actions {
		if !st.Completion(simulate.CompletionKey(k)) {
			return k, true
		}
	}
	return p.Actions[len(p.Actions)-1], true
}
