// Package announce delivers shutdown announcements to the configured sinks.
//
// The schedule service fires synchronously inside its tick; Broadcast
// therefore only enqueues, and a single worker goroutine drains the queue
// and talks to sinks (which may hit the network).
package announce

import (
	"context"
	"errors"
	"sync"
	"time"

	logx "shutdownd/pkg/logx"
)

var (
	ErrQueueFull = errors.New("announce queue full")
	ErrNoSinks   = errors.New("no announce sinks configured")
)

const sendTimeout = 10 * time.Second

// Sink is a single announcement destination.
type Sink interface {
	Name() string
	Send(ctx context.Context, message string) error
}

type Service struct {
	log logx.Logger

	mu    sync.Mutex
	sinks []Sink

	queue chan string
}

func New(log logx.Logger, sinks ...Sink) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:   log,
		sinks: sinks,
		queue: make(chan string, 64),
	}
}

// SetSinks replaces the sink set (config hot reload).
func (s *Service) SetSinks(sinks []Sink) {
	s.mu.Lock()
	s.sinks = sinks
	s.mu.Unlock()
}

func (s *Service) snapshotSinks() []Sink {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Sink(nil), s.sinks...)
}

// Broadcast enqueues a message for delivery. It never blocks; when the queue
// is full the message is dropped and ErrQueueFull returned.
func (s *Service) Broadcast(_ context.Context, message string) error {
	if len(s.snapshotSinks()) == 0 {
		return ErrNoSinks
	}
	select {
	case s.queue <- message:
		return nil
	default:
		s.log.Warn("announce queue full, dropping message")
		return ErrQueueFull
	}
}

// Run drains the queue until ctx is cancelled. Intended to be driven by the
// app supervisor.
func (s *Service) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-s.queue:
			s.deliver(ctx, msg)
		}
	}
}

func (s *Service) deliver(ctx context.Context, message string) {
	for _, sink := range s.snapshotSinks() {
		sctx, cancel := context.WithTimeout(ctx, sendTimeout)
		err := sink.Send(sctx, message)
		cancel()
		if err != nil {
			s.log.Warn("announce sink failed",
				logx.String("sink", sink.Name()), logx.Err(err))
		}
	}
}
