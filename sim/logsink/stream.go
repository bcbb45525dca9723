package logsink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/sir-sim/sim/trace"
)

// Default Stream tuning.
const (
	DefaultFlushRecords  = 10_000
	DefaultFlushInterval = time.Second

	// maxBufferedRecords is the point at which RecordStep flushes on the
	// caller's goroutine instead of waiting for the background loop.
	maxBufferedRecords = 100_000
)

// StreamOption configures a Stream.
type StreamOption func(*Stream)

// WithFlushRecords sets the buffered record count that triggers a flush.
func WithFlushRecords(n int) StreamOption {
	return func(s *Stream) {
		if n > 0 {
			s.flushRecords = n
		}
	}
}

// WithFlushInterval sets the maximum time a record stays buffered.
func WithFlushInterval(d time.Duration) StreamOption {
	return func(s *Stream) {
		if d > 0 {
			s.flushInterval = d
		}
	}
}

// Stream buffers step batches and writes them to a Store from a background
// loop, when either the buffered record count or the flush interval is
// reached. Flushes are serialized and write batches in recording order.
//
// A failed flush keeps its batches for the next attempt; until a flush
// succeeds, RecordStep rejects new batches with the flush error. Close stops
// the loop, performs a final flush and closes the store.
type Stream struct {
	store         Store
	flushRecords  int
	flushInterval time.Duration

	mu       sync.Mutex
	pending  []*trace.StepBatch
	records  int
	flushErr error
	closed   bool

	flushMu sync.Mutex // held for the duration of a store write

	flushCh    chan struct{}
	done       chan struct{}
	cancelLoop context.CancelFunc
}

// OpenStream creates a Stream over store and starts its flush loop. The
// caller must Close it to guarantee the final flush.
func OpenStream(ctx context.Context, store Store, opts ...StreamOption) *Stream {
	s := &Stream{
		store:         store,
		flushRecords:  DefaultFlushRecords,
		flushInterval: DefaultFlushInterval,
		flushCh:       make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancelLoop = cancel
	go s.flushLoop(loopCtx)
	return s
}

// RecordStep buffers the batch. It returns the last flush error, without
// accepting the batch, while the store is failing.
func (s *Stream) RecordStep(ctx context.Context, batch *trace.StepBatch) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.flushErr != nil {
		err := s.flushErr
		s.mu.Unlock()
		return fmt.Errorf("logsink: store unavailable: %w", err)
	}
	s.pending = append(s.pending, batch)
	s.records += batch.Len()
	records := s.records
	s.mu.Unlock()

	if records >= maxBufferedRecords {
		// The batch is already accepted; a failure here surfaces on the next call.
		_ = s.flush(ctx)
		return nil
	}
	if records >= s.flushRecords {
		select {
		case s.flushCh <- struct{}{}:
		default:
		}
	}
	return nil
}

// Flush writes every buffered batch now.
func (s *Stream) Flush(ctx context.Context) error {
	return s.flush(ctx)
}

// Buffered returns the number of records waiting to be written.
func (s *Stream) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records
}

func (s *Stream) flushLoop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.flush(ctx)
		case <-s.flushCh:
			_ = s.flush(ctx)
		}
	}
}

func (s *Stream) flush(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return nil
	}
	batches := s.pending
	count := s.records
	s.pending = nil
	s.records = 0
	s.mu.Unlock()

	var states []trace.AgentStateRecord
	var infections []trace.InfectionEventRecord
	for _, b := range batches {
		states = append(states, b.States...)
		infections = append(infections, b.Infections...)
	}

	start := time.Now()
	err := s.store.Write(ctx, states, infections)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		logrus.WithError(err).WithField("records", count).Error("logsink: flush failed, batches kept for retry")
		s.pending = append(batches, s.pending...)
		s.records += count
		s.flushErr = err
		return err
	}
	s.flushErr = nil
	logrus.WithFields(logrus.Fields{
		"records":           count,
		"flush_duration_ms": time.Since(start).Milliseconds(),
	}).Debug("logsink: batch flushed")
	return nil
}

// Close stops the flush loop, writes every buffered batch and closes the
// store. ctx bounds the final flush.
func (s *Stream) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.closed = true
	s.mu.Unlock()

	s.cancelLoop()
	select {
	case <-s.done:
	case <-ctx.Done():
		logrus.Warn("logsink: close timed out waiting for flush loop")
	}

	flushErr := s.flush(ctx)
	if flushErr != nil {
		flushErr = fmt.Errorf("logsink: final flush: %w", flushErr)
	}
	return errors.Join(flushErr, s.store.Close())
}
