package worldlock

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// newTestGuard creates a world with a session.lock stamped at base and a guard
// whose clock is controlled by the returned pointer.
func newTestGuard(t *testing.T) (*Guard, *time.Time) {
	t.Helper()
	world := t.TempDir()
	touchLock(t, filepath.Join(world, SessionLockName), base)

	g, err := Open(world)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	clock := base
	g.now = func() time.Time { return clock }
	return g, &clock
}

func touchLock(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, []byte{0, 0, 0, 0, 0, 0, 0, 1}, 0644); err != nil {
			t.Fatalf("failed to create session lock: %v", err)
		}
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("failed to set lock mtime: %v", err)
	}
}

// recorder is a ConfirmFunc that logs every call.
type recorder struct {
	answer bool
	calls  []bool
}

func (r *recorder) confirm(first bool) bool {
	r.calls = append(r.calls, first)
	return r.answer
}

func mustLock(t *testing.T, ok bool, err error, want bool) {
	t.Helper()
	if err != nil {
		t.Fatalf("TryLock error: %v", err)
	}
	if ok != want {
		t.Fatalf("TryLock = %v, want %v", ok, want)
	}
}

func TestOpenRequiresSessionLock(t *testing.T) {
	if _, err := Open(t.TempDir()); !errors.Is(err, ErrNoSessionLock) {
		t.Fatalf("expected ErrNoSessionLock, got %v", err)
	}
}

func TestFirstConfirmationOnlyOnce(t *testing.T) {
	g, clock := newTestGuard(t)
	rec := &recorder{answer: true}

	// t0: never validated, user confirms
	*clock = base.Add(time.Second)
	ok, err := g.TryLock(rec.confirm)
	mustLock(t, ok, err, true)

	// still fresh: no prompt
	ok, err = g.TryLock(rec.confirm)
	mustLock(t, ok, err, true)
	if len(rec.calls) != 1 {
		t.Fatalf("fresh guard prompted again: %v", rec.calls)
	}

	// t1: external process touches the lock; t2: next edit
	for i := 2; i < 6; i += 2 {
		touchLock(t, g.Path(), base.Add(time.Duration(i)*time.Second))
		*clock = base.Add(time.Duration(i+1) * time.Second)
		ok, err = g.TryLock(rec.confirm)
		mustLock(t, ok, err, true)
	}

	want := []bool{true, false, false}
	if len(rec.calls) != len(want) {
		t.Fatalf("confirm calls = %v, want %v", rec.calls, want)
	}
	for i := range want {
		if rec.calls[i] != want[i] {
			t.Errorf("call %d first=%v, want %v", i, rec.calls[i], want[i])
		}
	}
}

func TestDeclineKeepsGuardStale(t *testing.T) {
	g, clock := newTestGuard(t)
	*clock = base.Add(time.Second)

	rec := &recorder{answer: false}
	ok, err := g.TryLock(rec.confirm)
	mustLock(t, ok, err, false)
	if fresh, _ := g.IsFresh(); fresh {
		t.Fatal("declined guard must stay stale")
	}

	rec.answer = true
	ok, err = g.TryLock(rec.confirm)
	mustLock(t, ok, err, true)
	if len(rec.calls) != 2 || rec.calls[0] != true || rec.calls[1] != false {
		t.Errorf("confirm calls = %v, want [true false]", rec.calls)
	}
}

func TestFreshnessIsStrict(t *testing.T) {
	g, clock := newTestGuard(t)
	rec := &recorder{answer: true}

	// validated at the same instant the lock was written: still stale
	*clock = base
	ok, err := g.TryLock(rec.confirm)
	mustLock(t, ok, err, true)
	if fresh, err := g.IsFresh(); err != nil || fresh {
		t.Errorf("IsFresh = %v, %v; want stale when times are equal", fresh, err)
	}

	*clock = base.Add(time.Nanosecond)
	if _, err := g.TryLock(rec.confirm); err != nil {
		t.Fatal(err)
	}
	if fresh, err := g.IsFresh(); err != nil || !fresh {
		t.Errorf("IsFresh = %v, %v; want fresh", fresh, err)
	}

	g.Invalidate()
	if fresh, _ := g.IsFresh(); fresh {
		t.Error("Invalidate should make the guard stale")
	}
}

func TestTryLockNormalDoesNotEscalate(t *testing.T) {
	g, clock := newTestGuard(t)
	rec := &recorder{answer: true}

	for i := 1; i <= 3; i++ {
		touchLock(t, g.Path(), base.Add(time.Duration(2*i)*time.Second))
		*clock = base.Add(time.Duration(2*i+1) * time.Second)
		ok, err := g.TryLockNormal(rec.confirm)
		mustLock(t, ok, err, true)
	}
	for i, first := range rec.calls {
		if !first {
			t.Errorf("TryLockNormal call %d was escalated", i)
		}
	}

	// the escalating path still gets its first warning
	touchLock(t, g.Path(), base.Add(10*time.Second))
	*clock = base.Add(11 * time.Second)
	ok, err := g.TryLock(rec.confirm)
	mustLock(t, ok, err, true)
	if last := rec.calls[len(rec.calls)-1]; !last {
		t.Error("TryLock after TryLockNormal should still be a first confirmation")
	}
}

func TestMissingLockIsStale(t *testing.T) {
	g, clock := newTestGuard(t)
	*clock = base.Add(time.Second)
	rec := &recorder{answer: true}
	if _, err := g.TryLock(rec.confirm); err != nil {
		t.Fatal(err)
	}

	if err := os.Remove(g.Path()); err != nil {
		t.Fatal(err)
	}
	if fresh, err := g.IsFresh(); err != nil || fresh {
		t.Errorf("IsFresh = %v, %v; want stale without a lock file", fresh, err)
	}
}
