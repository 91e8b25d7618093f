package wizard

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/clmpro/clmsetup/internal/logging"
)

// ValidationMessage is the advisory shown when a step has open items.
const ValidationMessage = "Please complete all required items"

// Position is a (step, sub-page) pair. Both are 0-based.
type Position struct {
	Step    int `json:"step" yaml:"step"`
	SubPage int `json:"subPage" yaml:"sub_page"`
}

// Validation is the result of checking a step's required completion keys.
type Validation struct {
	IsValid bool
	Message string
	Missing []string
}

// State holds the current position in the flow and the completion flags.
type State struct {
	reg        *Registry
	pos        Position
	completion map[string]bool
	complete   bool

	userID     int64
	writer     *stepWriter
	onComplete func()
	log        *zap.Logger
}

// Option configures a State.
type Option func(*State)

// WithResumeStep starts the flow at step n (clamped), sub-page 0.
func WithResumeStep(n int) Option {
	return func(s *State) {
		s.pos = Position{Step: s.clamp(n)}
	}
}

// WithCompletion seeds the completion flags, e.g. from saved progress.
func WithCompletion(flags map[string]bool) Option {
	return func(s *State) {
		for k, v := range flags {
			s.completion[k] = v
		}
	}
}

// WithPersister writes every step change back to the account of userID.
// Writes are best effort and never block navigation.
func WithPersister(p Persister, userID int64) Option {
	return func(s *State) {
		if p == nil {
			return
		}
		s.userID = userID
		s.writer = newStepWriter(p, userID, DefaultPersistTimeout)
	}
}

// WithPersistTimeout overrides the per-write timeout. Must follow WithPersister.
func WithPersistTimeout(d time.Duration) Option {
	return func(s *State) {
		if s.writer != nil {
			s.writer.timeout = d
		}
	}
}

// WithLogger sends step transitions and persistence warnings to l instead
// of the global logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *State) {
		s.log = l
	}
}

// WithCompletionHandler is called when Advance is requested on the final
// sub-page of the final step.
func WithCompletionHandler(fn func()) Option {
	return func(s *State) {
		s.onComplete = fn
	}
}

// New creates a State at (0,0) unless WithResumeStep says otherwise.
func New(reg *Registry, opts ...Option) *State {
	if reg == nil {
		reg = DefaultRegistry()
	}
	s := &State{
		reg:        reg,
		completion: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.writer != nil && s.log != nil {
		s.writer.log = s.log
	}
	return s
}

// Registry returns the step registry backing this state.
func (s *State) Registry() *Registry { return s.reg }

// Position returns the current (step, sub-page).
func (s *State) Position() Position { return s.pos }

// CurrentStep returns the definition of the current step.
func (s *State) CurrentStep() StepDefinition {
	def, _ := s.reg.Step(s.pos.Step)
	return def
}

// Advance moves to the next sub-page, or the first sub-page of the next
// step. On the terminal position it fires the completion handler instead.
func (s *State) Advance() Position {
	lastPage := s.reg.SubPages(s.pos.Step) - 1

	switch {
	case s.pos.SubPage < lastPage:
		s.pos.SubPage++
	case s.pos.Step < s.reg.Last():
		s.moveTo(Position{Step: s.pos.Step + 1})
	default:
		if !s.complete {
			s.complete = true
			if s.onComplete != nil {
				s.onComplete()
			}
		}
	}
	return s.pos
}

// Retreat is the inverse of Advance. From the first sub-page of a step it
// lands on the last sub-page of the previous step. Never goes below (0,0).
func (s *State) Retreat() Position {
	s.complete = false

	switch {
	case s.pos.SubPage > 0:
		s.pos.SubPage--
	case s.pos.Step > 0:
		prev := s.pos.Step - 1
		s.moveTo(Position{Step: prev, SubPage: s.reg.SubPages(prev) - 1})
	}
	return s.pos
}

// JumpTo moves directly to step n (clamped), sub-page 0. No validation gate.
func (s *State) JumpTo(n int) Position {
	s.complete = false
	s.moveTo(Position{Step: s.clamp(n)})
	return s.pos
}

// SetCompletion upserts a completion flag.
func (s *State) SetCompletion(key string, value bool) {
	s.completion[key] = value
}

// Toggle flips a completion flag and returns the new value.
func (s *State) Toggle(key string) bool {
	v := !s.completion[key]
	s.completion[key] = v
	return v
}

// Completion reports a flag. Absent keys are false.
func (s *State) Completion(key string) bool {
	return s.completion[key]
}

// CompletionSnapshot returns a copy of all flags.
func (s *State) CompletionSnapshot() map[string]bool {
	out := make(map[string]bool, len(s.completion))
	for k, v := range s.completion {
		out[k] = v
	}
	return out
}

// IsStepUnlocked is always true: users may free-navigate for review.
func (s *State) IsStepUnlocked(step int) bool {
	return true
}

// Validate checks that every required key of step is true.
func (s *State) Validate(step int) Validation {
	def, ok := s.reg.Step(step)
	if !ok {
		return Validation{IsValid: false, Message: ValidationMessage}
	}

	var missing []string
	for _, k := range def.RequiredKeys {
		if !s.completion[k] {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Validation{IsValid: false, Message: ValidationMessage, Missing: missing}
	}
	return Validation{IsValid: true}
}

// CanAdvance reports whether the Next control of the current step is enabled.
func (s *State) CanAdvance() bool {
	return s.Validate(s.pos.Step).IsValid
}

// IsTerminal reports whether the position is the last sub-page of the last step.
func (s *State) IsTerminal() bool {
	return s.pos.Step == s.reg.Last() && s.pos.SubPage == s.reg.SubPages(s.pos.Step)-1
}

// IsComplete reports whether Advance was requested on the terminal position.
func (s *State) IsComplete() bool { return s.complete }

// Progress is the fraction of steps reached, (step+1)/total.
func (s *State) Progress() float64 {
	return float64(s.pos.Step+1) / float64(s.reg.Len())
}

// Reset returns to (0,0) and clears all completion flags.
func (s *State) Reset() {
	s.pos = Position{}
	s.completion = make(map[string]bool)
	s.complete = false
}

// WaitPersisted blocks until in-flight step writes have finished.
func (s *State) WaitPersisted() {
	if s.writer != nil {
		s.writer.wait()
	}
}

func (s *State) moveTo(p Position) {
	from := s.pos.Step
	s.pos = p
	if from == p.Step {
		return
	}
	if s.log != nil {
		s.log.Info("Wizard step changed",
			zap.Int64("user_id", s.userID),
			zap.Int("from", from),
			zap.Int("to", p.Step),
		)
	} else {
		logging.LogStepTransition(s.userID, from, p.Step)
	}
	if s.writer != nil {
		s.writer.write(p.Step)
	}
}

func (s *State) clamp(n int) int {
	if n < 0 {
		return 0
	}
	if last := s.reg.Last(); n > last {
		return last
	}
	return n
}
