package announce

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	logx "shutdownd/pkg/logx"
)

type fakeSink struct {
	name string
	err  error

	mu   sync.Mutex
	got  []string
	seen chan struct{}
}

func newFakeSink(name string) *fakeSink {
	return &fakeSink{name: name, seen: make(chan struct{}, 16)}
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Send(_ context.Context, message string) error {
	f.mu.Lock()
	f.got = append(f.got, message)
	f.mu.Unlock()
	f.seen <- struct{}{}
	return f.err
}

func (f *fakeSink) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.got...)
}

func waitSeen(t *testing.T, f *fakeSink) {
	t.Helper()
	select {
	case <-f.seen:
	case <-time.After(2 * time.Second):
		t.Fatalf("sink %s: no delivery", f.name)
	}
}

func TestBroadcastDelivers(t *testing.T) {
	t.Parallel()
	sink := newFakeSink("test")
	svc := New(logx.Nop(), sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() { _ = svc.Run(ctx); close(done) }()

	if err := svc.Broadcast(ctx, "restart in 30 minutes"); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	waitSeen(t, sink)
	if got := sink.messages(); len(got) != 1 || got[0] != "restart in 30 minutes" {
		t.Fatalf("messages = %v", got)
	}

	cancel()
	<-done
}

func TestBroadcastFansOut(t *testing.T) {
	t.Parallel()
	a, b := newFakeSink("a"), newFakeSink("b")
	// A failing sink must not stop delivery to the others.
	a.err = errors.New("boom")
	svc := New(logx.Nop(), a, b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = svc.Run(ctx) }()

	if err := svc.Broadcast(ctx, "hello"); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	waitSeen(t, a)
	waitSeen(t, b)
	if len(a.messages()) != 1 || len(b.messages()) != 1 {
		t.Fatalf("fan-out incomplete: a=%v b=%v", a.messages(), b.messages())
	}
}

func TestBroadcastNoSinks(t *testing.T) {
	t.Parallel()
	svc := New(logx.Nop())
	if err := svc.Broadcast(context.Background(), "x"); !errors.Is(err, ErrNoSinks) {
		t.Fatalf("err = %v, want ErrNoSinks", err)
	}
}

func TestBroadcastQueueFull(t *testing.T) {
	t.Parallel()
	// No Run worker draining, so the queue fills up.
	svc := New(logx.Nop(), newFakeSink("idle"))
	ctx := context.Background()

	var err error
	for i := 0; i < 100; i++ {
		if err = svc.Broadcast(ctx, "x"); err != nil {
			break
		}
	}
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
}

func TestSetSinksHotSwap(t *testing.T) {
	t.Parallel()
	old := newFakeSink("old")
	svc := New(logx.Nop(), old)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = svc.Run(ctx) }()

	replacement := newFakeSink("new")
	svc.SetSinks([]Sink{replacement})

	if err := svc.Broadcast(ctx, "after swap"); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	waitSeen(t, replacement)
	if len(old.messages()) != 0 {
		t.Fatalf("replaced sink still received: %v", old.messages())
	}
}
