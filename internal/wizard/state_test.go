package wizard

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// twoStepRegistry has a two page first step so navigation scenarios are easy
// to express independently of the default content.
func twoStepRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry([]StepDefinition{
		{Title: "First", SubPages: []string{"a", "b"}, RequiredKeys: []string{"step-0"}},
		{Title: "Second", SubPages: []string{"a"}},
		{Title: "Third", SubPages: []string{"a", "b", "c"}},
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return reg
}

func TestAdvanceRetreatScenario(t *testing.T) {
	st := New(DefaultRegistry())

	steps := []struct {
		op   func() Position
		want Position
	}{
		{st.Advance, Position{0, 1}},
		{st.Advance, Position{1, 0}},
		{st.Retreat, Position{0, 1}},
	}

	for i, s := range steps {
		if got := s.op(); got != s.want {
			t.Fatalf("op %d: position = %+v, want %+v", i, got, s.want)
		}
	}
}

func TestRetreat_AtStartIsNoop(t *testing.T) {
	st := New(DefaultRegistry())
	if got := st.Retreat(); got != (Position{}) {
		t.Errorf("Retreat() at start = %+v, want (0,0)", got)
	}
}

func TestResumeStep(t *testing.T) {
	tests := []struct {
		name   string
		resume int
		want   int
	}{
		{"resume at four", 4, 4},
		{"negative clamps to zero", -3, 0},
		{"past the end clamps to last", 42, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := New(DefaultRegistry(), WithResumeStep(tt.resume))
			if got := st.Position(); got != (Position{Step: tt.want}) {
				t.Errorf("Position() = %+v, want (%d,0)", got, tt.want)
			}
		})
	}
}

func TestJumpTo_Clamps(t *testing.T) {
	st := New(DefaultRegistry())
	st.Advance() // (0,1)

	tests := []struct {
		n    int
		want Position
	}{
		{-1, Position{0, 0}},
		{3, Position{3, 0}},
		{8, Position{7, 0}},
		{1 << 20, Position{7, 0}},
	}

	for _, tt := range tests {
		if got := st.JumpTo(tt.n); got != tt.want {
			t.Errorf("JumpTo(%d) = %+v, want %+v", tt.n, got, tt.want)
		}
	}
}

func TestIsStepUnlocked_AlwaysTrue(t *testing.T) {
	st := New(DefaultRegistry())
	for i := -1; i <= 9; i++ {
		if !st.IsStepUnlocked(i) {
			t.Errorf("IsStepUnlocked(%d) = false", i)
		}
	}
}

func TestBoundsHoldForRandomSequences(t *testing.T) {
	reg := DefaultRegistry()
	rng := rand.New(rand.NewSource(7))

	for run := 0; run < 200; run++ {
		st := New(reg, WithResumeStep(rng.Intn(reg.Len())))
		for i := 0; i < 60; i++ {
			switch rng.Intn(3) {
			case 0:
				st.Advance()
			case 1:
				st.Retreat()
			default:
				st.JumpTo(rng.Intn(20) - 5)
			}

			p := st.Position()
			if p.Step < 0 || p.Step > reg.Last() {
				t.Fatalf("run %d: step %d out of range", run, p.Step)
			}
			if p.SubPage < 0 || p.SubPage >= reg.SubPages(p.Step) {
				t.Fatalf("run %d: sub-page %d out of range for step %d", run, p.SubPage, p.Step)
			}
		}
	}
}

func TestRetreatAdvanceRoundTrip(t *testing.T) {
	reg := DefaultRegistry()

	for step := 0; step < reg.Len(); step++ {
		for page := 0; page < reg.SubPages(step); page++ {
			start := Position{step, page}
			if start == (Position{}) {
				continue
			}
			if step == reg.Last() && page == reg.SubPages(step)-1 {
				continue
			}

			st := New(reg, WithResumeStep(step))
			for i := 0; i < page; i++ {
				st.Advance()
			}

			st.Retreat()
			if got := st.Advance(); got != start {
				t.Errorf("retreat+advance from %+v = %+v", start, got)
			}

			st.Advance()
			if got := st.Retreat(); got != start {
				t.Errorf("advance+retreat from %+v = %+v", start, got)
			}
		}
	}
}

func TestSetCompletion_Idempotent(t *testing.T) {
	once := New(DefaultRegistry())
	once.SetCompletion("requirement-0", true)

	twice := New(DefaultRegistry())
	twice.SetCompletion("requirement-0", true)
	twice.SetCompletion("requirement-0", true)

	a, b := once.CompletionSnapshot(), twice.CompletionSnapshot()
	if len(a) != len(b) || a["requirement-0"] != b["requirement-0"] {
		t.Errorf("snapshots differ: %v vs %v", a, b)
	}
}

func TestValidate_Step0Scenario(t *testing.T) {
	st := New(twoStepRegistry(t))

	v := st.Validate(0)
	if v.IsValid {
		t.Fatal("Validate(0).IsValid = true before completion")
	}
	if v.Message != ValidationMessage {
		t.Errorf("Message = %q, want %q", v.Message, ValidationMessage)
	}

	st.SetCompletion("step-0", true)
	if !st.Validate(0).IsValid {
		t.Error("Validate(0).IsValid = false after completion")
	}
}

func TestValidate_RemovingAnyKeyInvalidates(t *testing.T) {
	reg := DefaultRegistry()

	for _, def := range reg.Steps() {
		st := New(reg)
		for _, k := range def.RequiredKeys {
			st.SetCompletion(k, true)
		}
		if !st.Validate(def.Index).IsValid {
			t.Fatalf("step %d invalid with all keys set", def.Index)
		}

		for _, k := range def.RequiredKeys {
			st.SetCompletion(k, false)
			v := st.Validate(def.Index)
			if v.IsValid {
				t.Errorf("step %d still valid with %q false", def.Index, k)
			}
			if len(v.Missing) != 1 || v.Missing[0] != k {
				t.Errorf("step %d Missing = %v, want [%s]", def.Index, v.Missing, k)
			}
			st.SetCompletion(k, true)
		}
	}
}

func TestValidate_OutOfRange(t *testing.T) {
	st := New(DefaultRegistry())
	if v := st.Validate(99); v.IsValid || v.Message != ValidationMessage {
		t.Errorf("Validate(99) = %+v", v)
	}
}

func TestCompletionHandler_FiresOnTerminalAdvance(t *testing.T) {
	calls := 0
	reg := twoStepRegistry(t)
	st := New(reg, WithResumeStep(reg.Last()), WithCompletionHandler(func() { calls++ }))

	st.Advance()
	st.Advance()
	if !st.IsTerminal() {
		t.Fatalf("expected terminal position, got %+v", st.Position())
	}
	if calls != 0 {
		t.Fatalf("handler fired early")
	}

	before := st.Position()
	st.Advance()
	st.Advance()
	if calls != 1 {
		t.Errorf("handler calls = %d, want 1", calls)
	}
	if st.Position() != before {
		t.Errorf("terminal Advance moved position to %+v", st.Position())
	}
	if !st.IsComplete() {
		t.Error("IsComplete() = false after terminal Advance")
	}

	st.Retreat()
	st.Advance()
	st.Advance()
	if calls != 2 {
		t.Errorf("handler calls after re-arrival = %d, want 2", calls)
	}
}

func TestReset(t *testing.T) {
	st := New(DefaultRegistry(), WithResumeStep(5))
	st.SetCompletion("device-bound", true)

	st.Reset()

	if st.Position() != (Position{}) {
		t.Errorf("Position() after Reset = %+v", st.Position())
	}
	if st.Completion("device-bound") {
		t.Error("completion survived Reset")
	}
}

func TestProgress(t *testing.T) {
	st := New(DefaultRegistry(), WithResumeStep(3))
	if got := st.Progress(); got != 0.5 {
		t.Errorf("Progress() = %v, want 0.5", got)
	}
}

type recordingPersister struct {
	mu    sync.Mutex
	steps []int
	err   error
}

func (r *recordingPersister) PersistStep(ctx context.Context, userID int64, step int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.steps = append(r.steps, step)
	return nil
}

func TestPersister_WritesOnStepChange(t *testing.T) {
	p := &recordingPersister{}
	st := New(DefaultRegistry(), WithPersister(p, 1))

	st.Advance() // sub-page only, no write
	st.WaitPersisted()
	if len(p.steps) != 0 {
		t.Fatalf("sub-page change persisted: %v", p.steps)
	}

	st.Advance()
	st.WaitPersisted()
	st.JumpTo(5)
	st.WaitPersisted()

	if len(p.steps) != 2 || p.steps[0] != 1 || p.steps[1] != 5 {
		t.Errorf("persisted steps = %v, want [1 5]", p.steps)
	}
}

// gatedPersister blocks its first write until release is closed.
type gatedPersister struct {
	recordingPersister
	release chan struct{}
	once    sync.Once
}

func (g *gatedPersister) PersistStep(ctx context.Context, userID int64, step int) error {
	g.once.Do(func() { <-g.release })
	return g.recordingPersister.PersistStep(ctx, userID, step)
}

func TestPersister_OverlappingWritesEndOnLatestStep(t *testing.T) {
	for i := 0; i < 50; i++ {
		p := &gatedPersister{release: make(chan struct{})}
		st := New(DefaultRegistry(), WithPersister(p, 1))

		for step := 1; step <= 7; step++ {
			st.JumpTo(step)
		}
		close(p.release)
		st.WaitPersisted()

		if len(p.steps) == 0 {
			t.Fatal("nothing persisted")
		}
		if last := p.steps[len(p.steps)-1]; last != st.Position().Step {
			t.Fatalf("last persisted step = %d, want %d (writes %v)", last, st.Position().Step, p.steps)
		}
		// Steps were issued in increasing order, so any decrease is a stale write
		for j := 1; j < len(p.steps); j++ {
			if p.steps[j] <= p.steps[j-1] {
				t.Fatalf("older step written after newer one: %v", p.steps)
			}
		}
	}
}

func TestStepWriter_DropsWriteOlderThanLastSuccess(t *testing.T) {
	p := &recordingPersister{}
	w := newStepWriter(p, 1, DefaultPersistTimeout)

	// Queue seq 1 behind the lock, then record that seq 2 already landed
	w.mu.Lock()
	w.write(3)
	w.seq++
	w.written = w.seq
	w.mu.Unlock()
	w.wait()

	if len(p.steps) != 0 {
		t.Errorf("stale write persisted: %v", p.steps)
	}

	w.write(4)
	w.wait()
	if len(p.steps) != 1 || p.steps[0] != 4 {
		t.Errorf("persisted steps = %v, want [4]", p.steps)
	}
}

func TestPersister_FailureDoesNotBlockNavigation(t *testing.T) {
	p := &recordingPersister{err: errors.New("backend down")}
	st := New(DefaultRegistry(), WithPersister(p, 1))

	got := st.JumpTo(4)
	st.WaitPersisted()

	if got != (Position{Step: 4}) {
		t.Errorf("JumpTo(4) = %+v", got)
	}
}

func TestWithLogger_RecordsTransitionsAndPersistFailures(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	failing := PersisterFunc(func(context.Context, int64, int) error {
		return errors.New("offline")
	})

	st := New(twoStepRegistry(t), WithPersister(failing, 7), WithLogger(zap.New(core)))
	st.JumpTo(1)
	st.WaitPersisted()

	if n := logs.FilterMessage("Wizard step changed").Len(); n != 1 {
		t.Errorf("step change entries = %d, want 1", n)
	}
	if n := logs.FilterMessage("Failed to persist wizard step").Len(); n != 1 {
		t.Errorf("persist failure entries = %d, want 1", n)
	}
}
