package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"shutdownd/internal/eventbus"
	"shutdownd/internal/schedule"
	"shutdownd/internal/storage"
	logx "shutdownd/pkg/logx"
)

func TestToRow(t *testing.T) {
	t.Parallel()
	at := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)
	shutdownAt := at.Add(time.Hour)

	cases := []struct {
		name string
		in   eventbus.Event
		want storage.Event
		ok   bool
	}{
		{
			name: "armed",
			in: eventbus.Event{Type: schedule.EventArmed, Time: at, Data: schedule.ArmedData{
				ShutdownAt: shutdownAt, Remaining: time.Hour,
			}},
			want: storage.Event{At: at, Kind: schedule.EventArmed, ShutdownAt: shutdownAt, RemainingSec: 3600},
			ok:   true,
		},
		{
			name: "disabled",
			in:   eventbus.Event{Type: schedule.EventDisabled, Time: at, Data: schedule.DisabledData{Reason: "disabled in config"}},
			want: storage.Event{At: at, Kind: schedule.EventDisabled, Detail: "disabled in config"},
			ok:   true,
		},
		{
			name: "announced",
			in: eventbus.Event{Type: schedule.EventAnnounced, Time: at, Data: schedule.AnnouncedData{
				Message: "restart in 30 minutes", Lead: 30 * time.Minute,
			}},
			want: storage.Event{At: at, Kind: schedule.EventAnnounced, Detail: "restart in 30 minutes", RemainingSec: 1800},
			ok:   true,
		},
		{
			name: "shutdown requested",
			in:   eventbus.Event{Type: schedule.EventShutdownRequested, Time: at, Data: schedule.ShutdownRequestedData{Grace: 10 * time.Second}},
			want: storage.Event{At: at, Kind: schedule.EventShutdownRequested, RemainingSec: 10},
			ok:   true,
		},
		{
			name: "unknown type skipped",
			in:   eventbus.Event{Type: "config.reloaded", Time: at},
			ok:   false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := toRow(tc.in)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if !ok {
				return
			}
			if got != tc.want {
				t.Fatalf("row = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestRecorderPersistsBusEvents(t *testing.T) {
	t.Parallel()
	st, err := storage.Open(storage.Config{
		Driver: "file",
		Path:   filepath.Join(t.TempDir(), "history.jsonl"),
	}, logx.Nop())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	defer st.Close()

	bus := eventbus.New()
	rec := NewRecorder(bus, st, Config{}, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() { _ = rec.Run(ctx); close(done) }()

	// Give Run a moment to subscribe before publishing.
	deadline := time.Now().Add(2 * time.Second)
	at := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)
	for {
		bus.Publish(eventbus.Event{Type: schedule.EventAnnounced, Time: at, Data: schedule.AnnouncedData{
			Message: "restart in 30 minutes", Lead: 30 * time.Minute,
		}})
		rows, err := rec.Recent(ctx, 10)
		if err != nil {
			t.Fatalf("Recent: %v", err)
		}
		if len(rows) > 0 {
			if rows[0].Kind != schedule.EventAnnounced || rows[0].Detail != "restart in 30 minutes" {
				t.Fatalf("row = %+v", rows[0])
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("event never persisted")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	<-done
}

func TestRecorderWithoutStoreIdles(t *testing.T) {
	t.Parallel()
	rec := NewRecorder(eventbus.New(), nil, Config{}, logx.Nop())

	if _, err := rec.Recent(context.Background(), 10); err != storage.ErrDisabled {
		t.Fatalf("err = %v, want ErrDisabled", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { _ = rec.Run(ctx); close(done) }()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return on cancel")
	}
}
