package editor

import (
	"time"
)

// Phase is one timed step of a task and the regions it covered.
type Phase struct {
	Name    string
	Regions int
	Elapsed time.Duration
	Err     error
}

func (p Phase) Failed() bool {
	return p.Err != nil
}

// PhaseTimer records the steps of one task in order. The zero value uses the
// wall clock.
type PhaseTimer struct {
	now    func() time.Time
	phases []Phase
}

func (pt *PhaseTimer) clock() time.Time {
	if pt.now == nil {
		return time.Now()
	}
	return pt.now()
}

// Run times fn as a phase over regions and passes its error through.
func (pt *PhaseTimer) Run(name string, regions int, fn func() error) error {
	started := pt.clock()
	err := fn()
	pt.phases = append(pt.phases, Phase{
		Name:    name,
		Regions: regions,
		Elapsed: pt.clock().Sub(started),
		Err:     err,
	})
	return err
}

func (pt *PhaseTimer) Total() time.Duration {
	var total time.Duration
	for _, p := range pt.phases {
		total += p.Elapsed
	}
	return total
}

// Failed returns the first phase that ended in an error.
func (pt *PhaseTimer) Failed() (Phase, bool) {
	for _, p := range pt.phases {
		if p.Failed() {
			return p, true
		}
	}
	return Phase{}, false
}

func (pt *PhaseTimer) Phases() []Phase {
	return pt.phases
}
