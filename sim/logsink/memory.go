package logsink

import (
	"context"
	"sync"

	"github.com/inference-sim/sir-sim/sim/trace"
)

// Memory accumulates step batches in memory. It is the per-run partition
// used by the batch runner and the default sink for library callers.
type Memory struct {
	mu      sync.Mutex
	batches []*trace.StepBatch
	closed  bool
}

// NewMemory creates an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{batches: make([]*trace.StepBatch, 0)}
}

// RecordStep appends the batch. The sink keeps a reference to it; callers
// must not modify a batch after recording it.
func (m *Memory) RecordStep(_ context.Context, batch *trace.StepBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.batches = append(m.batches, batch)
	return nil
}

// Batches returns the recorded batches in recording order.
func (m *Memory) Batches() []*trace.StepBatch {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*trace.StepBatch, len(m.batches))
	copy(out, m.batches)
	return out
}

// Log flattens the recorded batches into two record streams.
func (m *Memory) Log() *trace.Log {
	l := trace.NewLog()
	for _, b := range m.Batches() {
		l.AppendBatch(b)
	}
	return l
}

// Close marks the sink closed. Recorded data stays readable.
func (m *Memory) Close(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
