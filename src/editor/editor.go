package editor

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/danmuck/region_editor/src/history"
	"github.com/danmuck/region_editor/src/region"
	"github.com/danmuck/region_editor/src/snapshot"
	"github.com/danmuck/region_editor/src/worldlock"
	logs "github.com/danmuck/smplog"
)

var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
	ErrBaselineDrift = errors.New("region data changed outside the editor; header restore skipped")
)

// Listener is told which regions and chunks a finished task changed so any
// cached view of the world can reload them.
type Listener interface {
	RegionsChanged(regions []region.Pos)
	ChunksDeleted(chunks map[region.Pos][]region.ChunkPos)
}

// Dispatcher runs listener callbacks on the context that owns the listener.
// The default runs them inline on the worker.
type Dispatcher func(func())

type Option func(*Editor)

func WithListener(l Listener) Option {
	return func(e *Editor) { e.listener = l }
}

func WithDispatcher(d Dispatcher) Option {
	return func(e *Editor) { e.dispatch = d }
}

// Editor serialises chunk deletion and undo/redo of one world on a single
// worker, keeping a snapshot history of every region it touches.
type Editor struct {
	cfg     Config
	dir     region.Dir
	guard   *worldlock.Guard
	spool   *snapshot.Spool
	tracker *history.Tracker
	queue   *queue

	listener Listener
	dispatch Dispatcher

	closeOnce sync.Once
	closeErr  error
}

// Stats is the history accounting shown to the user.
type Stats struct {
	States      int
	Cursor      int
	MemoryBytes int64
	DiskBytes   int64
	SpoolFiles  int
	CanUndo     bool
	CanRedo     bool
}

// New opens the world at cfg.WorldDir. The world must have a region directory
// and a session.lock.
func New(cfg Config, opts ...Option) (*Editor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.QueueDepth == 0 {
		cfg.QueueDepth = DefaultQueueDepth
	}

	dir := region.WorldDir(cfg.WorldDir)
	if info, err := os.Stat(dir.Root()); err != nil {
		return nil, fmt.Errorf("failed to open region directory: %w", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir.Root())
	}

	guard, err := worldlock.Open(cfg.WorldDir)
	if err != nil {
		return nil, err
	}

	var spool *snapshot.Spool
	if cfg.SpoolToDisk {
		spool, err = snapshot.OpenSpool(cfg.spoolConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to open snapshot spool: %w", err)
		}
	}

	e := &Editor{
		cfg:   cfg,
		dir:   dir,
		guard: guard,
		spool: spool,
		tracker: history.NewTracker(dir, spool, history.Options{
			SpoolToDisk: cfg.SpoolToDisk,
			Verbose:     cfg.Verbose,
		}),
		queue:    newQueue(cfg.QueueDepth),
		dispatch: func(fn func()) { fn() },
	}
	for _, opt := range opts {
		opt(e)
	}

	if cfg.Verbose {
		logs.Infof("editing world %s (spool=%s)", cfg.WorldDir, spool.Dir())
	}
	return e, nil
}

func (e *Editor) Dir() region.Dir {
	return e.dir
}

func (e *Editor) Config() Config {
	return e.cfg
}

func (e *Editor) submit(name string, fn func(*PhaseTimer) Outcome) (*Task, error) {
	task := newTask(name)
	err := e.queue.submit(func() {
		var timer PhaseTimer
		out := fn(&timer)
		out.Phases = timer.Phases()
		out.Elapsed = timer.Total()
		if out.Err != nil {
			logs.Warnf("%s finished with errors: %v", name, out.Err)
		} else if e.cfg.Verbose {
			logs.Infof("%s finished in %s (applied=%v)", name, out.Elapsed, out.Applied)
		}
		task.finish(out)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (e *Editor) notify(fn func(Listener)) {
	if e.listener == nil {
		return
	}
	l := e.listener
	e.dispatch(func() { fn(l) })
}

// DeleteChunks erases chunks from their regions' headers. The regions are
// snapshotted before and after the edit so the deletion can be undone.
func (e *Editor) DeleteChunks(chunks []region.ChunkPos, confirm worldlock.ConfirmFunc) (*Task, error) {
	selection := region.Group(chunks)
	return e.submit("delete", func(timer *PhaseTimer) Outcome {
		return e.deleteChunks(selection, confirm, timer)
	})
}

func (e *Editor) deleteChunks(selection map[region.Pos][]region.ChunkPos, confirm worldlock.ConfirmFunc, timer *PhaseTimer) Outcome {
	positions := region.SortedPositions(selection)
	if len(positions) == 0 {
		return Outcome{}
	}

	var locked bool
	if err := timer.Run("lock", len(positions), func() (err error) {
		locked, err = e.guard.TryLock(confirm)
		return err
	}); err != nil {
		return Outcome{Err: fmt.Errorf("failed to check world lock: %w", err)}
	}
	if !locked {
		logs.Infof("deletion in %d region(s) declined", len(positions))
		return Outcome{}
	}

	// a baseline must exist before anything is erased
	if err := timer.Run("snapshot", len(positions), func() error {
		if e.tracker.HasState() {
			return e.tracker.SnapshotCurrentState(positions)
		}
		return e.tracker.SnapshotState(positions)
	}); err != nil {
		return Outcome{Err: fmt.Errorf("failed to snapshot regions before deletion: %w", err)}
	}

	var result region.EraseResult
	eraseErr := timer.Run("erase", len(positions), func() (err error) {
		result, err = region.Erase(e.dir, selection)
		return err
	})
	recordErr := timer.Run("record", len(positions), func() error {
		return e.tracker.SnapshotStateNoFail(positions)
	})

	if len(result.Erased) > 0 {
		erased := result.Erased
		e.notify(func(l Listener) { l.ChunksDeleted(erased) })
	}
	return Outcome{
		Applied: true,
		Regions: region.SortedPositions(result.Erased),
		Chunks:  result.ChunkCount(),
		Err:     errors.Join(eraseErr, recordErr),
	}
}

// Undo restores the previous history state.
func (e *Editor) Undo(confirm worldlock.ConfirmFunc) (*Task, error) {
	return e.submit("undo", func(timer *PhaseTimer) Outcome {
		return e.navigate(timer, confirm, e.tracker.HasPreviousState, e.tracker.PreviousState, ErrNothingToUndo)
	})
}

// Redo reapplies the state undone last.
func (e *Editor) Redo(confirm worldlock.ConfirmFunc) (*Task, error) {
	return e.submit("redo", func(timer *PhaseTimer) Outcome {
		return e.navigate(timer, confirm, e.tracker.HasNextState, e.tracker.NextState, ErrNothingToRedo)
	})
}

func (e *Editor) navigate(timer *PhaseTimer, confirm worldlock.ConfirmFunc, has func() bool, step func() *history.StateGroup, empty error) Outcome {
	if !has() {
		return Outcome{Err: empty}
	}

	var locked bool
	if err := timer.Run("lock", 0, func() (err error) {
		locked, err = e.guard.TryLockNormal(confirm)
		return err
	}); err != nil {
		return Outcome{Err: fmt.Errorf("failed to check world lock: %w", err)}
	}
	if !locked {
		return Outcome{}
	}

	state := step()
	var restored []region.Pos
	err := timer.Run("replay", state.Len(), func() (err error) {
		restored, err = e.replay(state)
		return err
	})

	if len(restored) > 0 {
		e.notify(func(l Listener) { l.RegionsChanged(restored) })
	}
	return Outcome{Applied: true, Regions: restored, Err: err}
}

// replay writes every snapshot of state back to its region. Header snapshots
// are only written while the region's data still matches their baseline.
func (e *Editor) replay(state *history.StateGroup) ([]region.Pos, error) {
	var restored []region.Pos
	var errs region.Collector

	for _, pos := range state.Positions() {
		snap, _ := state.Get(pos)
		if snap.IsHeader() {
			ok, err := e.tracker.BaselineMatches(pos)
			if err != nil {
				errs.Add(pos, "restore", err)
				continue
			}
			if !ok {
				logs.Warnf("region %s changed outside the editor, not restoring its header", pos.FileName())
				errs.Add(pos, "restore", ErrBaselineDrift)
				continue
			}
		}
		if err := snap.WriteState(e.dir.Path(pos)); err != nil {
			errs.Add(pos, "restore", err)
			continue
		}
		restored = append(restored, pos)
	}
	return restored, errs.Err()
}

// ClearHistory drops every recorded state and frees its snapshots.
func (e *Editor) ClearHistory() (*Task, error) {
	return e.submit("clear", func(timer *PhaseTimer) Outcome {
		_ = timer.Run("release", 0, func() error {
			e.tracker.RemoveAllStates()
			return nil
		})
		return Outcome{Applied: true}
	})
}

func (e *Editor) Stats() Stats {
	return Stats{
		States:      e.tracker.StateCount(),
		Cursor:      e.tracker.Cursor(),
		MemoryBytes: e.tracker.StatesSizeBytes(),
		DiskBytes:   e.tracker.StatesDiskSizeBytes(),
		SpoolFiles:  e.spool.Files(),
		CanUndo:     e.tracker.HasPreviousState(),
		CanRedo:     e.tracker.HasNextState(),
	}
}

// Close waits for queued tasks, releases the history and removes the spool
// session directory.
func (e *Editor) Close() error {
	e.closeOnce.Do(func() {
		e.queue.close()
		e.tracker.RemoveAllStates()
		if e.spool != nil {
			e.closeErr = e.spool.Close()
		}
	})
	return e.closeErr
}
