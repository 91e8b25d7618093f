package simulate

import (
	"context"
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/clmpro/clmsetup/internal/logging"
)

// Rand is the random source used for simulated readings.
type Rand interface {
	Float64() float64
}

// Token identifies one step lifetime.
type Token struct {
	Generation uint64
}

// Update is emitted while a simulation runs.
type Update struct {
	Kind        Kind
	Generation  uint64
	Progress    float64 // 0..1
	Detail      string
	Done        bool // final update of a run
	Failed      bool // run finished without success (e.g. azimuth out of tolerance)
	Shot        *Shot
	Orientation *Orientation
	Warnings    []string
}

// CompletionKey returns the key to set when this update finishes successfully,
// or "" otherwise.
func (u Update) CompletionKey() string {
	if !u.Done || u.Failed {
		return ""
	}
	return CompletionKey(u.Kind)
}

// Summary accumulates the updates of one run. Warnings arrive on early
// stages, so they are collected across the run rather than read from the
// final update.
type Summary struct {
	Last     Update
	Warnings []string
}

// Add records u, keeping each distinct warning once in arrival order.
func (s *Summary) Add(u Update) {
	s.Last = u
	for _, w := range u.Warnings {
		if !slices.Contains(s.Warnings, w) {
			s.Warnings = append(s.Warnings, w)
		}
	}
}

// Tracker runs simulations bound to a step lifetime.
type Tracker struct {
	mu     sync.Mutex
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc
	scale  float64
	rand   Rand
	wg     sync.WaitGroup
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithScale multiplies every stage delay. 0 makes runs instantaneous.
func WithScale(scale float64) TrackerOption {
	return func(t *Tracker) {
		if scale >= 0 {
			t.scale = scale
		}
	}
}

// WithRand replaces the random source.
func WithRand(r Rand) TrackerOption {
	return func(t *Tracker) {
		if r != nil {
			t.rand = r
		}
	}
}

// NewTracker creates a tracker with a mounted initial lifetime.
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		scale: 1,
		rand:  &lockedRand{r: rand.New(rand.NewSource(time.Now().UnixNano()))},
	}
	for _, opt := range opts {
		opt(t)
	}
	t.Mount()
	return t
}

// Mount begins a new lifetime, cancelling all runs of the previous one.
func (t *Tracker) Mount() Token {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}
	t.gen++
	t.ctx, t.cancel = context.WithCancel(context.Background())
	return Token{Generation: t.gen}
}

// Unmount ends the current lifetime without starting a usable one.
func (t *Tracker) Unmount() {
	t.Mount()
}

// Current returns the token of the current lifetime.
func (t *Tracker) Current() Token {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Token{Generation: t.gen}
}

// Valid reports whether tok belongs to the current lifetime.
func (t *Tracker) Valid(tok Token) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return tok.Generation == t.gen
}

// Accept reports whether u was produced under the current lifetime.
func (t *Tracker) Accept(u Update) bool {
	return t.Valid(Token{Generation: u.Generation})
}

// Start runs kind under the current lifetime. The channel is closed when the
// run finishes or its lifetime ends.
func (t *Tracker) Start(kind Kind) (Token, <-chan Update) {
	p, ok := profiles[kind]
	if !ok {
		panic(fmt.Sprintf("simulate: unknown kind %q", kind))
	}

	t.mu.Lock()
	ctx, gen, scale, rnd := t.ctx, t.gen, t.scale, t.rand
	t.mu.Unlock()

	out := make(chan Update, len(p.stages))
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer close(out)
		run(ctx, kind, gen, p, scale, rnd, out)
	}()

	return Token{Generation: gen}, out
}

// Wait blocks until all started runs have exited.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

func run(ctx context.Context, kind Kind, gen uint64, p profile, scale float64, rnd Rand, out chan<- Update) {
	logging.LogSimulation(string(kind), gen, "start")

	for i, s := range p.stages {
		delay := time.Duration(float64(s.delay) * scale)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			logging.LogSimulation(string(kind), gen, "cancelled")
			return
		case <-timer.C:
		}

		u := Update{
			Kind:       kind,
			Generation: gen,
			Progress:   s.progress,
			Detail:     s.detail,
			Shot:       s.shot,
		}
		if s.resolve != nil {
			s.resolve(rnd, &u)
		}
		u.Done = i == len(p.stages)-1 || u.Failed

		// A lifetime that ended while the stage fired never sees its result.
		if ctx.Err() != nil {
			logging.LogSimulation(string(kind), gen, "cancelled")
			return
		}
		out <- u
		if u.Done {
			logging.LogSimulation(string(kind), gen, "done")
			return
		}
	}
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}
