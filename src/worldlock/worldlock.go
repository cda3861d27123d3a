package worldlock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const SessionLockName = "session.lock"

var ErrNoSessionLock = errors.New("world has no session.lock")

// ConfirmFunc asks the user whether an edit may proceed on a world that was
// touched outside the editor. firstConfirmation is false once the user has
// already been warned by this guard.
type ConfirmFunc func(firstConfirmation bool) bool

// Guard detects external modification of a world through the mtime of its
// session.lock. The game rewrites the lock whenever it opens the world, so a
// lock newer than the last validated edit means the files may have changed
// underneath the editor.
type Guard struct {
	lockPath string
	now      func() time.Time

	mu        sync.Mutex
	validTime time.Time
	warned    bool
}

// Open returns a guard for the world rooted at worldDir.
func Open(worldDir string) (*Guard, error) {
	lockPath := filepath.Join(worldDir, SessionLockName)
	info, err := os.Stat(lockPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", worldDir, ErrNoSessionLock)
		}
		return nil, fmt.Errorf("failed to stat session lock: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory: %w", lockPath, ErrNoSessionLock)
	}
	return New(lockPath), nil
}

func New(lockPath string) *Guard {
	return &Guard{lockPath: lockPath, now: time.Now}
}

func (g *Guard) Path() string {
	return g.lockPath
}

// IsFresh reports whether the last validation happened strictly after the
// lock's current mtime. A guard that was never validated, or whose lock has
// disappeared, is stale.
func (g *Guard) IsFresh() (bool, error) {
	g.mu.Lock()
	validTime := g.validTime
	g.mu.Unlock()

	if validTime.IsZero() {
		return false, nil
	}
	info, err := os.Stat(g.lockPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat session lock: %w", err)
	}
	return validTime.After(info.ModTime()), nil
}

// TryLock succeeds immediately while fresh. Otherwise it asks confirm, telling
// it whether this is the first warning this guard has shown, and on approval
// marks the world validated as of now. It returns false when the user declines.
func (g *Guard) TryLock(confirm ConfirmFunc) (bool, error) {
	return g.tryLock(confirm, true)
}

// TryLockNormal is TryLock without escalation: confirm always sees a first
// confirmation and the warning is not counted against later TryLock calls.
func (g *Guard) TryLockNormal(confirm ConfirmFunc) (bool, error) {
	return g.tryLock(confirm, false)
}

func (g *Guard) tryLock(confirm ConfirmFunc, escalate bool) (bool, error) {
	fresh, err := g.IsFresh()
	if err != nil {
		return false, err
	}
	if fresh {
		return true, nil
	}

	first := true
	if escalate {
		g.mu.Lock()
		first = !g.warned
		g.warned = true
		g.mu.Unlock()
	}

	// confirm may block on the user; the guard stays unlocked meanwhile
	if !confirm(first) {
		return false, nil
	}

	g.mu.Lock()
	g.validTime = g.now()
	g.mu.Unlock()
	return true, nil
}

// Invalidate forgets the last validation so the next TryLock asks again.
func (g *Guard) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.validTime = time.Time{}
}
