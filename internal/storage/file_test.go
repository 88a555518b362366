package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "shutdownd/pkg/logx"
)

func openTestFileStore(t *testing.T) Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.jsonl")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none", "  none  "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%q): %v", driver, err)
		}
		if st != nil {
			t.Fatalf("Open(%q) should return a nil store", driver)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatal("unknown driver should fail")
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()
	st := openTestFileStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 10, 4, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		e := Event{
			At:   base.Add(time.Duration(i) * time.Minute),
			Kind: "schedule.armed",
		}
		if err := st.AppendEvent(ctx, e); err != nil {
			t.Fatalf("AppendEvent: %v", err)
		}
	}

	got, err := st.RecentEvents(ctx, 3)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	// Newest first.
	if !got[0].At.Equal(base.Add(4 * time.Minute)) {
		t.Fatalf("got[0].At = %v, want newest", got[0].At)
	}
	if !got[0].At.After(got[1].At) || !got[1].At.After(got[2].At) {
		t.Fatalf("events not newest-first: %v", got)
	}
}

func TestFileStorePrune(t *testing.T) {
	t.Parallel()
	st := openTestFileStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 10, 4, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		e := Event{At: base.AddDate(0, 0, i), Kind: "schedule.announced"}
		if err := st.AppendEvent(ctx, e); err != nil {
			t.Fatalf("AppendEvent: %v", err)
		}
	}

	removed, err := st.PruneBefore(ctx, base.AddDate(0, 0, 3))
	if err != nil {
		t.Fatalf("PruneBefore: %v", err)
	}
	if removed != 3 {
		t.Fatalf("removed = %d, want 3", removed)
	}

	got, err := st.RecentEvents(ctx, 0)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("survivors = %d, want 3", len(got))
	}
	for _, e := range got {
		if e.At.Before(base.AddDate(0, 0, 3)) {
			t.Fatalf("pruned event survived: %v", e.At)
		}
	}

	// The store must stay usable after the compaction rename.
	if err := st.AppendEvent(ctx, Event{At: base.AddDate(0, 0, 10), Kind: "schedule.armed"}); err != nil {
		t.Fatalf("AppendEvent after prune: %v", err)
	}
	got, err = st.RecentEvents(ctx, 0)
	if err != nil || len(got) != 4 {
		t.Fatalf("after prune+append: %d events, err %v", len(got), err)
	}
}

func TestFileStoreSkipsCorruptLines(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "history.jsonl")
	content := `{"at":"2026-03-10T04:00:00Z","kind":"schedule.armed"}
{"at": "torn line
{"at":"2026-03-10T05:00:00Z","kind":"schedule.announced"}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	got, err := st.RecentEvents(context.Background(), 0)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (corrupt line skipped)", len(got))
	}
}

func TestFileStoreRequiresPath(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatal("file driver without path should fail")
	}
}
