package editor

import (
	"errors"
	"testing"
	"time"
)

func TestPhaseTimerRecordsRegionsAndErrors(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	timer := PhaseTimer{now: func() time.Time { return clock }}
	errErase := errors.New("erase failed")

	err := timer.Run("snapshot", 3, func() error {
		clock = clock.Add(40 * time.Millisecond)
		return nil
	})
	if err != nil {
		t.Fatalf("snapshot phase returned %v", err)
	}
	err = timer.Run("erase", 2, func() error {
		clock = clock.Add(10 * time.Millisecond)
		return errErase
	})
	if !errors.Is(err, errErase) {
		t.Fatalf("erase phase returned %v, want %v", err, errErase)
	}

	phases := timer.Phases()
	if len(phases) != 2 {
		t.Fatalf("expected 2 phases, got %+v", phases)
	}
	if phases[0].Name != "snapshot" || phases[0].Regions != 3 || phases[0].Elapsed != 40*time.Millisecond || phases[0].Failed() {
		t.Errorf("unexpected snapshot phase %+v", phases[0])
	}
	if phases[1].Name != "erase" || phases[1].Regions != 2 || phases[1].Elapsed != 10*time.Millisecond || !errors.Is(phases[1].Err, errErase) {
		t.Errorf("unexpected erase phase %+v", phases[1])
	}
	if total := timer.Total(); total != 50*time.Millisecond {
		t.Errorf("Total() = %s, want 50ms", total)
	}
	failed, ok := timer.Failed()
	if !ok || failed.Name != "erase" {
		t.Errorf("Failed() = %+v, %v", failed, ok)
	}
}

func TestZeroPhaseTimer(t *testing.T) {
	var timer PhaseTimer
	if _, ok := timer.Failed(); ok {
		t.Error("empty timer reports a failed phase")
	}
	if timer.Total() != 0 || len(timer.Phases()) != 0 {
		t.Errorf("empty timer has phases: %+v", timer.Phases())
	}
	if err := timer.Run("release", 0, func() error { return nil }); err != nil {
		t.Fatal(err)
	}
	if p := timer.Phases(); len(p) != 1 || p[0].Elapsed < 0 {
		t.Errorf("unexpected phases %+v", p)
	}
}
