package schedule

import (
	"context"
	"testing"
	"time"
)

func TestQueueFIFOAmongDue(t *testing.T) {
	t.Parallel()
	var q taskQueue
	var fired []string
	q.schedule("a", time.Second, func(context.Context) { fired = append(fired, "a") })
	q.schedule("b", time.Second, func(context.Context) { fired = append(fired, "b") })

	due := q.collectDue(2 * time.Second)
	for _, task := range due {
		task.fire(context.Background())
	}
	if len(fired) != 2 || fired[0] != "a" || fired[1] != "b" {
		t.Fatalf("fired = %v, want [a b]", fired)
	}
	if q.pending() != 0 {
		t.Fatalf("pending = %d, want 0", q.pending())
	}
}

func TestQueuePartialDue(t *testing.T) {
	t.Parallel()
	var q taskQueue
	q.schedule("soon", time.Second, func(context.Context) {})
	q.schedule("later", 10*time.Second, func(context.Context) {})

	due := q.collectDue(time.Second)
	if len(due) != 1 || due[0].name != "soon" {
		t.Fatalf("due = %v", due)
	}
	if q.pending() != 1 {
		t.Fatalf("pending = %d, want 1", q.pending())
	}

	// Remaining delay must account for the elapsed time already applied.
	due = q.collectDue(9 * time.Second)
	if len(due) != 1 || due[0].name != "later" {
		t.Fatalf("due = %v", due)
	}
}

func TestQueueZeroElapsedIsNoop(t *testing.T) {
	t.Parallel()
	var q taskQueue
	q.schedule("task", time.Second, func(context.Context) {})
	if due := q.collectDue(0); due != nil {
		t.Fatalf("collectDue(0) = %v, want nil", due)
	}
	if q.pending() != 1 {
		t.Fatalf("pending = %d, want 1", q.pending())
	}
}

func TestQueueCancelAll(t *testing.T) {
	t.Parallel()
	var q taskQueue
	q.schedule("a", time.Second, func(context.Context) {})
	q.schedule("b", time.Second, func(context.Context) {})
	q.cancelAll()
	if q.pending() != 0 {
		t.Fatalf("pending = %d, want 0", q.pending())
	}
	if due := q.collectDue(time.Hour); due != nil {
		t.Fatalf("due after cancelAll = %v", due)
	}
}
