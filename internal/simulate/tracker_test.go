package simulate

import (
	"testing"
	"time"
)

type fixedRand struct{ v float64 }

func (f fixedRand) Float64() float64 { return f.v }

func collect(t *testing.T, ch <-chan Update) []Update {
	t.Helper()
	var out []Update
	timeout := time.After(2 * time.Second)
	for {
		select {
		case u, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, u)
		case <-timeout:
			t.Fatal("timed out waiting for simulation")
			return nil
		}
	}
}

func TestStart_PowerOnCompletes(t *testing.T) {
	tr := NewTracker(WithScale(0))
	tok, ch := tr.Start(KindPowerOn)

	updates := collect(t, ch)
	if len(updates) != 1 {
		t.Fatalf("got %d updates, want 1", len(updates))
	}
	u := updates[0]
	if !u.Done || u.Failed {
		t.Errorf("update = %+v, want done and not failed", u)
	}
	if u.Generation != tok.Generation {
		t.Errorf("Generation = %d, want %d", u.Generation, tok.Generation)
	}
	if got := u.CompletionKey(); got != "power-confirmed" {
		t.Errorf("CompletionKey() = %q, want power-confirmed", got)
	}
	if !tr.Accept(u) {
		t.Error("Accept() = false for current lifetime")
	}
}

func TestStart_TestShotsRecordsThreeShots(t *testing.T) {
	tr := NewTracker(WithScale(0))
	_, ch := tr.Start(KindTestShots)

	updates := collect(t, ch)
	if len(updates) != 3 {
		t.Fatalf("got %d updates, want 3", len(updates))
	}
	want := TestShots()
	for i, u := range updates {
		if u.Shot == nil || *u.Shot != want[i] {
			t.Errorf("update %d shot = %+v, want %+v", i, u.Shot, want[i])
		}
		if u.Done != (i == 2) {
			t.Errorf("update %d Done = %v", i, u.Done)
		}
	}
	if want[1].Distance != 243 {
		t.Errorf("second shot distance = %d, want 243", want[1].Distance)
	}
}

func TestStart_AzimuthOutcome(t *testing.T) {
	tests := []struct {
		name       string
		rand       float64
		wantFailed bool
	}{
		// pitch/roll = 2*0.5-1 = 0, alignment needs > 0.5
		{"misaligned", 0.5, true},
		// pitch/roll = 2*0.6-1 = 0.2, aligned
		{"aligned", 0.6, false},
		// pitch/roll = 0.8, out of level
		{"out of level", 0.9, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(WithScale(0), WithRand(fixedRand{tt.rand}))
			_, ch := tr.Start(KindAzimuth)
			updates := collect(t, ch)
			if len(updates) != 1 {
				t.Fatalf("got %d updates, want 1", len(updates))
			}
			u := updates[0]
			if u.Failed != tt.wantFailed {
				t.Errorf("Failed = %v, want %v", u.Failed, tt.wantFailed)
			}
			if u.Orientation == nil {
				t.Fatal("Orientation = nil")
			}
			if tt.wantFailed {
				if u.Detail != AdjustmentMessage {
					t.Errorf("Detail = %q", u.Detail)
				}
				if u.CompletionKey() != "" {
					t.Error("failed run must not yield a completion key")
				}
			}
		})
	}
}

func TestStart_CalibrationWarnings(t *testing.T) {
	tr := NewTracker(WithScale(0), WithRand(fixedRand{0.9}))
	_, ch := tr.Start(KindCalibration)
	updates := collect(t, ch)

	if len(updates) != 11 {
		t.Fatalf("got %d updates, want 11", len(updates))
	}
	if len(updates[0].Warnings) != 2 {
		t.Errorf("environment warnings = %v, want 2", updates[0].Warnings)
	}
	last := updates[len(updates)-1]
	if last.Progress != 1 || !last.Done {
		t.Errorf("last update = %+v, want progress 1 and done", last)
	}
	if last.CompletionKey() != "calibration-complete" {
		t.Errorf("CompletionKey() = %q", last.CompletionKey())
	}
}

func TestMount_CancelsPendingRuns(t *testing.T) {
	tr := NewTracker(WithScale(1))
	old := tr.Current()
	_, ch := tr.Start(KindPowerOn)

	next := tr.Mount()
	updates := collect(t, ch)

	if len(updates) != 0 {
		t.Errorf("cancelled run emitted %d updates", len(updates))
	}
	if tr.Valid(old) {
		t.Error("previous token still valid after Mount()")
	}
	if !tr.Valid(next) {
		t.Error("new token not valid")
	}
	tr.Wait()
}

func TestUnmount_InvalidatesToken(t *testing.T) {
	tr := NewTracker()
	tok := tr.Current()
	tr.Unmount()
	if tr.Valid(tok) {
		t.Error("token valid after Unmount()")
	}
	if tr.Accept(Update{Generation: tok.Generation}) {
		t.Error("Accept() = true for stale update")
	}
}

func TestProfiles(t *testing.T) {
	for _, k := range Kinds() {
		if CompletionKey(k) == "" {
			t.Errorf("CompletionKey(%q) is empty", k)
		}
		if Duration(k) <= 0 {
			t.Errorf("Duration(%q) = %v", k, Duration(k))
		}
	}
	if got := Duration(KindPowerOn); got != 2*time.Second {
		t.Errorf("Duration(power-on) = %v, want 2s", got)
	}
	if got := Duration(KindTestShots); got != 9*time.Second {
		t.Errorf("Duration(test-shots) = %v, want 9s", got)
	}
}

func TestStart_UnknownKindPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Start(unknown) did not panic")
		}
	}()
	NewTracker().Start(Kind("nope"))
}

func TestSummary_KeepsWarningsFromEarlyStages(t *testing.T) {
	tr := NewTracker(WithScale(0), WithRand(fixedRand{0.9}))
	_, ch := tr.Start(KindCalibration)

	var sum Summary
	for _, u := range collect(t, ch) {
		sum.Add(u)
	}

	if !sum.Last.Done || sum.Last.CompletionKey() != "calibration-complete" {
		t.Errorf("Last = %+v", sum.Last)
	}
	if len(sum.Last.Warnings) != 0 {
		t.Fatalf("final update carries warnings %v; summary must not rely on it", sum.Last.Warnings)
	}
	want := []string{"Glare detected in hitting zone", "Camera view partially obstructed"}
	if len(sum.Warnings) != len(want) {
		t.Fatalf("Warnings = %v, want %v", sum.Warnings, want)
	}
	for i := range want {
		if sum.Warnings[i] != want[i] {
			t.Errorf("Warnings[%d] = %q, want %q", i, sum.Warnings[i], want[i])
		}
	}
}

func TestSummary_DeduplicatesWarnings(t *testing.T) {
	var sum Summary
	sum.Add(Update{Warnings: []string{"a", "b"}})
	sum.Add(Update{Warnings: []string{"b", "c"}})
	sum.Add(Update{Done: true})

	if got := len(sum.Warnings); got != 3 {
		t.Errorf("Warnings = %v, want [a b c]", sum.Warnings)
	}
	if !sum.Last.Done {
		t.Error("Last is not the final update")
	}
}
