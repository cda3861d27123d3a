package history

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/danmuck/region_editor/src/region"
	"github.com/danmuck/region_editor/src/snapshot"
	logs "github.com/danmuck/smplog"
)

const noState = -1

var (
	ErrNoPreviousState = errors.New("no previous history state")
	ErrNoNextState     = errors.New("no next history state")
)

type Options struct {
	SpoolToDisk bool // spool full snapshots of older states through the payload spool
	Verbose     bool
}

// Tracker is a linear undo/redo history of region snapshots. Entries after the
// cursor are redo states and are discarded whenever a new state is recorded.
//
// A region that did not change since its latest snapshot is recorded as a
// shared reference to that snapshot, so the tracker counts references and only
// releases a payload once no state holds it.
type Tracker struct {
	dir   region.Dir
	spool *snapshot.Spool
	opts  Options
	lock  sync.RWMutex

	states  []*StateGroup
	current int
	refs    map[*snapshot.Snapshot]int
}

func NewTracker(dir region.Dir, spool *snapshot.Spool, opts Options) *Tracker {
	return &Tracker{
		dir:     dir,
		spool:   spool,
		opts:    opts,
		current: noState,
		refs:    make(map[*snapshot.Snapshot]int),
	}
}

// SnapshotCurrentState captures positions into the state at the cursor without
// growing the history. Regions not named keep their existing snapshots. With
// no history yet it records the first state. Any capture failure other than a
// missing or short region aborts the batch and records nothing.
func (t *Tracker) SnapshotCurrentState(positions []region.Pos) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.removeFutureStates()
	if t.current == noState {
		group, err := t.capture(positions, noState, false)
		if err != nil {
			return err
		}
		t.push(group)
		return nil
	}

	group, err := t.capture(positions, t.current, false)
	if err != nil {
		return err
	}
	t.merge(group)
	return nil
}

// SnapshotState appends a new state for positions and advances the cursor.
// Any capture failure other than a missing or short region aborts the batch
// and records nothing.
func (t *Tracker) SnapshotState(positions []region.Pos) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.removeFutureStates()
	group, err := t.capture(positions, noState, false)
	if err != nil {
		return err
	}
	t.push(group)
	return nil
}

// SnapshotStateNoFail appends a new state holding every region that could be
// captured. Per-region failures are joined into the returned error after all
// regions were attempted; the state is recorded either way.
func (t *Tracker) SnapshotStateNoFail(positions []region.Pos) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.removeFutureStates()
	group, err := t.capture(positions, noState, true)
	t.push(group)
	return err
}

// capture builds a state for positions. overwriting names the state about to
// be replaced by a merge; its full snapshots cannot serve as a baseline for a
// header-only capture.
func (t *Tracker) capture(positions []region.Pos, overwriting int, noFail bool) (*StateGroup, error) {
	group := newStateGroup()
	var owned []*snapshot.Snapshot
	var errs region.Collector

	for _, pos := range uniquePositions(positions) {
		s, fresh, err := t.captureRegion(pos, overwriting)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, region.ErrShortRegion) {
				logs.Warnf("skipping snapshot of region %s: %v", pos.FileName(), err)
				continue
			}
			if !noFail {
				for _, s := range owned {
					s.Release()
				}
				return nil, &region.Error{Pos: pos, Op: "snapshot", Err: err}
			}
			errs.Add(pos, "snapshot", err)
			continue
		}
		if fresh {
			owned = append(owned, s)
		}
		group.set(pos, s)
	}
	return group, errs.Err()
}

// captureRegion reads the region in full and decides how much of it has to be
// kept. fresh is false when an existing snapshot is reused.
func (t *Tracker) captureRegion(pos region.Pos, overwriting int) (s *snapshot.Snapshot, fresh bool, err error) {
	full, err := snapshot.CaptureFull(t.dir.Path(pos), t.spool)
	if err != nil {
		return nil, false, err
	}
	if t.current == noState {
		return full, true, nil
	}

	latest, _ := t.latest(pos, false)
	baseline, baselineAt := t.latest(pos, true)
	if latest == nil || baseline == nil || !full.DataMatches(baseline) {
		t.debugf("region %s: full snapshot (%d bytes)", pos.FileName(), full.Len())
		return full, true, nil
	}

	if full.HeaderMatches(latest) {
		full.Release()
		t.debugf("region %s: unchanged, sharing %s snapshot", pos.FileName(), latest.Kind())
		return latest, false, nil
	}

	if baselineAt == overwriting {
		// the only baseline is being replaced; keep the whole file
		return full, true, nil
	}

	header := full.AsHeader()
	full.Release()
	t.debugf("region %s: header-only snapshot", pos.FileName())
	return header, true, nil
}

// latest scans backwards from the cursor for pos. With fullOnly it skips
// header snapshots.
func (t *Tracker) latest(pos region.Pos, fullOnly bool) (*snapshot.Snapshot, int) {
	for i := t.current; i >= 0; i-- {
		s, ok := t.states[i].Get(pos)
		if !ok || (fullOnly && s.IsHeader()) {
			continue
		}
		return s, i
	}
	return nil, noState
}

func (t *Tracker) push(group *StateGroup) {
	for _, s := range group.snapshots {
		t.retain(s)
	}
	t.states = append(t.states, group)
	t.current = len(t.states) - 1
	t.debugf("recorded state %d: %d region(s), full=%v", t.current, group.Len(), group.HasFull())
	t.spoolOlderStates()
}

func (t *Tracker) merge(group *StateGroup) {
	target := t.states[t.current]
	for pos, s := range group.snapshots {
		t.retain(s)
		if old := target.set(pos, s); old != nil {
			t.drop(old)
		}
	}
	t.debugf("merged %d region(s) into state %d", group.Len(), t.current)
}

func (t *Tracker) retain(s *snapshot.Snapshot) {
	t.refs[s]++
}

func (t *Tracker) drop(s *snapshot.Snapshot) {
	t.refs[s]--
	if t.refs[s] > 0 {
		return
	}
	delete(t.refs, s)
	s.Release()
}

func (t *Tracker) dropGroup(g *StateGroup) {
	for _, s := range g.snapshots {
		t.drop(s)
	}
}

// spoolOlderStates lets full snapshots behind the newest state move to disk.
func (t *Tracker) spoolOlderStates() {
	if !t.opts.SpoolToDisk {
		return
	}
	for _, g := range t.states[:len(t.states)-1] {
		for pos, s := range g.snapshots {
			if s.IsHeader() || s.OnDisk() {
				continue
			}
			if err := s.AllowToDisk(); err != nil {
				logs.Warnf("keeping snapshot of region %s in memory: %v", pos.FileName(), err)
			}
		}
	}
}

func (t *Tracker) debugf(format string, args ...any) {
	if t.opts.Verbose {
		logs.Debugf(format, args...)
	}
}

func (t *Tracker) HasState() bool {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return len(t.states) > 0
}

func (t *Tracker) HasPreviousState() bool {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.current > 0
}

// PreviousState moves the cursor back one state and returns it. Calling it
// without a previous state panics with ErrNoPreviousState.
func (t *Tracker) PreviousState() *StateGroup {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.current <= 0 {
		panic(fmt.Errorf("PreviousState at cursor %d: %w", t.current, ErrNoPreviousState))
	}
	t.current--
	return t.states[t.current]
}

func (t *Tracker) HasNextState() bool {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.current != noState && t.current < len(t.states)-1
}

// NextState moves the cursor forward one state and returns it. Calling it
// without a next state panics with ErrNoNextState.
func (t *Tracker) NextState() *StateGroup {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.current == noState || t.current >= len(t.states)-1 {
		panic(fmt.Errorf("NextState at cursor %d of %d: %w", t.current, len(t.states), ErrNoNextState))
	}
	t.current++
	return t.states[t.current]
}

// Current returns the state at the cursor, or nil without history.
func (t *Tracker) Current() *StateGroup {
	t.lock.RLock()
	defer t.lock.RUnlock()
	if t.current == noState {
		return nil
	}
	return t.states[t.current]
}

// Cursor is the index of the current state, or -1 without history.
func (t *Tracker) Cursor() int {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.current
}

// RemoveFutureStates discards every state after the cursor.
func (t *Tracker) RemoveFutureStates() {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.removeFutureStates()
}

func (t *Tracker) removeFutureStates() {
	if t.current == noState {
		return
	}
	for i := t.current + 1; i < len(t.states); i++ {
		t.dropGroup(t.states[i])
		t.states[i] = nil
	}
	t.states = t.states[:t.current+1]
}

// RemoveAllStates releases every snapshot and resets the history.
func (t *Tracker) RemoveAllStates() {
	t.lock.Lock()
	defer t.lock.Unlock()

	for _, g := range t.states {
		t.dropGroup(g)
	}
	t.states = nil
	t.current = noState
	t.refs = make(map[*snapshot.Snapshot]int)
}

func (t *Tracker) StateCount() int {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return len(t.states)
}

// StatesSizeBytes is the in-memory footprint of the history, each distinct
// snapshot counted once.
func (t *Tracker) StatesSizeBytes() int64 {
	t.lock.RLock()
	defer t.lock.RUnlock()
	var total int64
	for s := range t.refs {
		total += s.Size()
	}
	return total
}

// StatesDiskSizeBytes is the spooled footprint of the history.
func (t *Tracker) StatesDiskSizeBytes() int64 {
	t.lock.RLock()
	defer t.lock.RUnlock()
	var total int64
	for s := range t.refs {
		total += s.OnDiskSize()
	}
	return total
}

// BaselineMatches reports whether the region's bytes past the header still
// equal the latest full snapshot at or before the cursor. A header snapshot is
// only a faithful restore while this holds.
func (t *Tracker) BaselineMatches(pos region.Pos) (bool, error) {
	t.lock.RLock()
	defer t.lock.RUnlock()

	baseline, _ := t.latest(pos, true)
	if baseline == nil {
		return false, nil
	}
	current, err := snapshot.CaptureFull(t.dir.Path(pos), nil)
	if err != nil {
		return false, fmt.Errorf("failed to read region %s: %w", pos.FileName(), err)
	}
	defer current.Release()
	return current.DataMatches(baseline), nil
}

func uniquePositions(positions []region.Pos) []region.Pos {
	set := make(map[region.Pos]struct{}, len(positions))
	for _, pos := range positions {
		set[pos] = struct{}{}
	}
	return region.SortedPositions(set)
}
