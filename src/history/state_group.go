package history

import (
	"github.com/danmuck/region_editor/src/region"
	"github.com/danmuck/region_editor/src/snapshot"
)

// StateGroup is one point in the undo timeline: the snapshots captured
// together for a batch of regions.
type StateGroup struct {
	snapshots map[region.Pos]*snapshot.Snapshot
}

func newStateGroup() *StateGroup {
	return &StateGroup{snapshots: make(map[region.Pos]*snapshot.Snapshot)}
}

func (g *StateGroup) Get(pos region.Pos) (*snapshot.Snapshot, bool) {
	s, ok := g.snapshots[pos]
	return s, ok
}

// Positions returns the covered regions in deterministic order.
func (g *StateGroup) Positions() []region.Pos {
	return region.SortedPositions(g.snapshots)
}

func (g *StateGroup) Len() int {
	return len(g.snapshots)
}

// HasFull reports whether any snapshot in the group holds a whole file.
func (g *StateGroup) HasFull() bool {
	for _, s := range g.snapshots {
		if !s.IsHeader() {
			return true
		}
	}
	return false
}

// Size is the in-memory footprint of the group's snapshots. Snapshots shared
// with other groups are counted here too.
func (g *StateGroup) Size() int64 {
	var total int64
	for _, s := range g.snapshots {
		total += s.Size()
	}
	return total
}

func (g *StateGroup) OnDiskSize() int64 {
	var total int64
	for _, s := range g.snapshots {
		total += s.OnDiskSize()
	}
	return total
}

func (g *StateGroup) set(pos region.Pos, s *snapshot.Snapshot) *snapshot.Snapshot {
	old := g.snapshots[pos]
	g.snapshots[pos] = s
	return old
}
