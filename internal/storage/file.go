package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "shutdownd/pkg/logx"
)

// fileStore is a dependency-free persistence backend: a single append-only
// JSON Lines file. Pruning rewrites the file in place under the lock; event
// volume here is a handful of rows per day, so that is plenty.
type fileStore struct {
	log  logx.Logger
	path string

	mu   sync.Mutex
	file *os.File
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &fileStore{log: log, path: path, file: f}, nil
}

func (s *fileStore) AppendEvent(_ context.Context, e Event) error {
	if s == nil || s.file == nil {
		return ErrDisabled
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	b = append(b, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.file.Write(b)
	return err
}

func (s *fileStore) RecentEvents(_ context.Context, limit int) ([]Event, error) {
	if s == nil {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		limit = 50
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.readAllLocked()
	if err != nil {
		return nil, err
	}
	if len(events) > limit {
		events = events[len(events)-limit:]
	}
	// newest first
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

func (s *fileStore) PruneBefore(_ context.Context, cutoff time.Time) (int64, error) {
	if s == nil {
		return 0, ErrDisabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.readAllLocked()
	if err != nil {
		return 0, err
	}

	keep := events[:0]
	for _, e := range events {
		if !e.At.Before(cutoff) {
			keep = append(keep, e)
		}
	}
	removed := int64(len(events) - len(keep))
	if removed == 0 {
		return 0, nil
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	w := bufio.NewWriter(f)
	for _, e := range keep {
		b, err := json.Marshal(e)
		if err != nil {
			_ = f.Close()
			return 0, err
		}
		b = append(b, '\n')
		if _, err := w.Write(b); err != nil {
			_ = f.Close()
			return 0, err
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, err
	}

	// Swap the active file handle to the compacted file.
	if s.file != nil {
		_ = s.file.Close()
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return 0, err
	}
	nf, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return removed, err
	}
	s.file = nf
	return removed, nil
}

func (s *fileStore) readAllLocked() ([]Event, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var events []Event
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var e Event
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			// Skip torn lines (e.g. crash mid-append) instead of failing reads.
			s.log.Warn("skipping corrupt history line", logx.Err(err))
			continue
		}
		events = append(events, e)
	}
	return events, sc.Err()
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
