package schedule

import (
	"context"
	"time"
)

// oneShot is a pending task. It is owned exclusively by the queue and is
// destroyed once fired or once the queue is cleared.
type oneShot struct {
	name      string
	remaining time.Duration
	fire      func(ctx context.Context)
}

// taskQueue is a small ordered list of one-shot tasks. At most two tasks are
// ever pending here, so linear scans beat any fancier structure.
type taskQueue struct {
	tasks []oneShot
}

func (q *taskQueue) schedule(name string, after time.Duration, fire func(ctx context.Context)) {
	q.tasks = append(q.tasks, oneShot{name: name, remaining: after, fire: fire})
}

func (q *taskQueue) cancelAll() {
	q.tasks = nil
}

func (q *taskQueue) pending() int { return len(q.tasks) }

// collectDue subtracts elapsed from every pending task and removes and
// returns the tasks whose remaining delay reached zero or below, in the
// order they were scheduled. The caller fires them.
func (q *taskQueue) collectDue(elapsed time.Duration) []oneShot {
	if len(q.tasks) == 0 || elapsed <= 0 {
		return nil
	}

	var due []oneShot
	keep := q.tasks[:0]
	for _, t := range q.tasks {
		t.remaining -= elapsed
		if t.remaining <= 0 {
			due = append(due, t)
		} else {
			keep = append(keep, t)
		}
	}
	q.tasks = keep
	return due
}
