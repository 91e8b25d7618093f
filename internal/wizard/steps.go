package wizard

import (
	"fmt"

	"github.com/gosimple/slug"
)

// Stage labels used to group steps in the sidebar.
const (
	StagePhysicalInstallation = "Physical Installation"
	StageDeviceSetup          = "Device Setup"
)

// StepDefinition describes one step of the onboarding flow.
type StepDefinition struct {
	Index        int
	Slug         string
	Title        string
	Description  string
	Stage        string
	SubPages     []string // page keys, at least one
	RequiredKeys []string // completion keys that gate Next
}

// StageGroup is an ordered run of steps sharing a stage label.
type StageGroup struct {
	Name  string
	Steps []StepDefinition
}

// Registry is the ordered, immutable list of steps.
type Registry struct {
	steps  []StepDefinition
	bySlug map[string]int
}

// NewRegistry builds a registry from definitions. Indices and slugs are
// assigned from position and title when left empty.
func NewRegistry(defs []StepDefinition) (*Registry, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("registry needs at least one step")
	}

	r := &Registry{
		steps:  make([]StepDefinition, len(defs)),
		bySlug: make(map[string]int, len(defs)),
	}
	for i, d := range defs {
		d.Index = i
		if d.Slug == "" {
			d.Slug = slug.Make(d.Title)
		}
		if len(d.SubPages) == 0 {
			d.SubPages = []string{"main"}
		}
		if _, dup := r.bySlug[d.Slug]; dup {
			return nil, fmt.Errorf("duplicate step slug %q", d.Slug)
		}
		d.SubPages = append([]string(nil), d.SubPages...)
		d.RequiredKeys = append([]string(nil), d.RequiredKeys...)
		r.steps[i] = d
		r.bySlug[d.Slug] = i
	}
	return r, nil
}

// MustRegistry is NewRegistry that panics on error. Only for static tables.
func MustRegistry(defs []StepDefinition) *Registry {
	r, err := NewRegistry(defs)
	if err != nil {
		panic(err)
	}
	return r
}

// Len returns the number of steps.
func (r *Registry) Len() int { return len(r.steps) }

// Last returns the index of the final step.
func (r *Registry) Last() int { return len(r.steps) - 1 }

// Step returns the definition at index i.
func (r *Registry) Step(i int) (StepDefinition, bool) {
	if i < 0 || i >= len(r.steps) {
		return StepDefinition{}, false
	}
	return r.steps[i], true
}

// Steps returns a copy of all definitions in order.
func (r *Registry) Steps() []StepDefinition {
	out := make([]StepDefinition, len(r.steps))
	copy(out, r.steps)
	return out
}

// SubPages returns the sub-page count for step i (at least 1, also for
// out-of-range indices).
func (r *Registry) SubPages(i int) int {
	s, ok := r.Step(i)
	if !ok {
		return 1
	}
	return len(s.SubPages)
}

// BySlug looks a step up by its slug, e.g. "power-on".
func (r *Registry) BySlug(s string) (StepDefinition, bool) {
	i, ok := r.bySlug[s]
	if !ok {
		return StepDefinition{}, false
	}
	return r.steps[i], true
}

// Validate checks the registry invariants: contiguous indices, unique
// slugs, at least one sub-page per step and no duplicate required keys.
func (r *Registry) Validate() error {
	seen := make(map[string]bool, len(r.steps))
	for i, s := range r.steps {
		if s.Index != i {
			return fmt.Errorf("step %q has index %d at position %d", s.Slug, s.Index, i)
		}
		if seen[s.Slug] {
			return fmt.Errorf("duplicate step slug %q", s.Slug)
		}
		seen[s.Slug] = true
		if len(s.SubPages) == 0 {
			return fmt.Errorf("step %q has no sub-pages", s.Slug)
		}
		keys := make(map[string]bool, len(s.RequiredKeys))
		for _, k := range s.RequiredKeys {
			if keys[k] {
				return fmt.Errorf("step %q requires %q twice", s.Slug, k)
			}
			keys[k] = true
		}
	}
	return nil
}

// Stages groups consecutive steps by stage label, preserving order.
func (r *Registry) Stages() []StageGroup {
	var groups []StageGroup
	for _, s := range r.steps {
		if n := len(groups); n > 0 && groups[n-1].Name == s.Stage {
			groups[n-1].Steps = append(groups[n-1].Steps, s)
			continue
		}
		groups = append(groups, StageGroup{Name: s.Stage, Steps: []StepDefinition{s}})
	}
	return groups
}

// RequirementKeys returns the completion keys for the installation
// requirement checklist ("requirement-0" … "requirement-5").
func RequirementKeys() []string {
	keys := make([]string, len(InstallationRequirements))
	for i := range InstallationRequirements {
		keys[i] = fmt.Sprintf("requirement-%d", i)
	}
	return keys
}

// InstallationRequirements are the items of the Installation Overview checklist.
var InstallationRequirements = []string{
	"Mounting hardware",
	"Internet connection",
	"Power outlet",
	"Tape measure",
	"Drill & level",
	"Safety equipment",
}

var defaultRegistry = MustRegistry([]StepDefinition{
	{
		Title:        "Room Preparation",
		Description:  "Measure and prepare your space",
		Stage:        StagePhysicalInstallation,
		SubPages:     []string{"measurements", "clearance"},
		RequiredKeys: []string{"step-0"},
	},
	{
		Title:        "Installation Overview",
		Description:  "Review requirements and tools",
		Stage:        StagePhysicalInstallation,
		SubPages:     []string{"overview", "resources"},
		RequiredKeys: RequirementKeys(),
	},
	{
		Title:        "Installation & Wiring",
		Description:  "Mount and connect",
		Stage:        StagePhysicalInstallation,
		SubPages:     []string{"mounting", "wiring", "verification"},
		RequiredKeys: []string{"mount-secured", "wiring-connected", "level-checked"},
	},
	{
		Title:        "Power On",
		Description:  "Activate device",
		Stage:        StageDeviceSetup,
		SubPages:     []string{"power"},
		RequiredKeys: []string{"power-confirmed", "network-connected"},
	},
	{
		Title:        "Connect Device",
		Description:  "Link to app",
		Stage:        StageDeviceSetup,
		SubPages:     []string{"scan"},
		RequiredKeys: []string{"device-found"},
	},
	{
		Title:        "Bind Device",
		Description:  "Secure to account",
		Stage:        StageDeviceSetup,
		SubPages:     []string{"bind"},
		RequiredKeys: []string{"device-bound"},
	},
	{
		Title:        "Firmware Update",
		Description:  "Install latest software",
		Stage:        StageDeviceSetup,
		SubPages:     []string{"firmware"},
		RequiredKeys: []string{"firmware-updated"},
	},
	{
		Title:        "Calibration",
		Description:  "Optimize accuracy",
		Stage:        StageDeviceSetup,
		SubPages:     []string{"azimuth", "test-shots", "final"},
		RequiredKeys: []string{"azimuth-aligned", "test-shots-recorded", "calibration-complete"},
	},
})

// DefaultRegistry returns the CLM PRO onboarding steps.
func DefaultRegistry() *Registry {
	return defaultRegistry
}
