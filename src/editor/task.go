package editor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/danmuck/region_editor/src/region"
)

var ErrEditorClosed = errors.New("editor is closed")

// Outcome summarises one finished task. A task the user declined at the
// confirmation prompt finishes with Applied false and a nil Err.
type Outcome struct {
	Applied bool
	Regions []region.Pos // regions written by the task
	Chunks  int          // chunks erased, deletions only
	Phases  []Phase
	Elapsed time.Duration
	Err     error // joined per-region failures, or the reason the task aborted
}

// Task is the handle for work submitted to the editor's worker.
type Task struct {
	name    string
	done    chan struct{}
	once    sync.Once
	outcome Outcome
}

func newTask(name string) *Task {
	return &Task{name: name, done: make(chan struct{})}
}

func (t *Task) Name() string {
	return t.name
}

// Done is closed once the task has finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finishes or ctx is done. The returned error is
// ctx.Err() when waiting was cut short, otherwise the outcome's Err. The task
// itself keeps running either way.
func (t *Task) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-t.done:
		return t.outcome, t.outcome.Err
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (t *Task) finish(out Outcome) {
	t.once.Do(func() {
		t.outcome = out
		close(t.done)
	})
}

// queue runs jobs one at a time on a single worker goroutine.
type queue struct {
	mu     sync.RWMutex
	jobs   chan func()
	closed bool
	done   chan struct{}
}

func newQueue(depth int) *queue {
	q := &queue{
		jobs: make(chan func(), depth),
		done: make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *queue) run() {
	defer close(q.done)
	for job := range q.jobs {
		job()
	}
}

// submit enqueues job, blocking while the queue is full.
func (q *queue) submit(job func()) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrEditorClosed
	}
	q.jobs <- job
	return nil
}

// close stops accepting jobs and waits for queued ones to finish.
func (q *queue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()
	<-q.done
}
