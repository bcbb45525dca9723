package logsink

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/sir-sim/sim/trace"
)

// recordingStore keeps every successful write and fails the first failN writes.
type recordingStore struct {
	mu         sync.Mutex
	failN      int
	writes     int
	states     []trace.AgentStateRecord
	infections []trace.InfectionEventRecord
	closed     bool
}

var errStoreDown = errors.New("store down")

func (s *recordingStore) Write(_ context.Context, states []trace.AgentStateRecord, infections []trace.InfectionEventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.failN > 0 {
		s.failN--
		return errStoreDown
	}
	s.states = append(s.states, states...)
	s.infections = append(s.infections, infections...)
	return nil
}

func (s *recordingStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingStore) snapshot() ([]trace.AgentStateRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]trace.AgentStateRecord, len(s.states))
	copy(out, s.states)
	return out, s.closed
}

// openQuietStream opens a stream whose background loop never fires during a test.
func openQuietStream(t *testing.T, store Store) *Stream {
	t.Helper()
	return OpenStream(context.Background(), store, WithFlushRecords(1_000_000), WithFlushInterval(time.Hour))
}

func TestStream_Close_FlushesEverything(t *testing.T) {
	// GIVEN a stream with buffered steps
	store := &recordingStore{}
	s := openQuietStream(t, store)
	ctx := context.Background()
	for step := 0; step < 4; step++ {
		require.NoError(t, s.RecordStep(ctx, sampleBatch(0, step)))
	}
	assert.Equal(t, 4*3+3, s.Buffered())

	// WHEN the stream is closed
	require.NoError(t, s.Close(ctx))

	// THEN every record reached the store in order and the store is closed
	states, closed := store.snapshot()
	require.Len(t, states, 12)
	for i, r := range states {
		assert.Equal(t, i/3, r.Step)
	}
	assert.True(t, closed)
	assert.Equal(t, 0, s.Buffered())
}

func TestStream_FailedFlush_KeepsBatchesAndRejectsNewSteps(t *testing.T) {
	// GIVEN a store that fails its first write
	store := &recordingStore{failN: 1}
	s := openQuietStream(t, store)
	ctx := context.Background()
	require.NoError(t, s.RecordStep(ctx, sampleBatch(0, 0)))

	// WHEN a flush fails
	err := s.Flush(ctx)
	require.ErrorIs(t, err, errStoreDown)

	// THEN the batch is still buffered and new steps are rejected
	assert.Equal(t, 3, s.Buffered())
	err = s.RecordStep(ctx, sampleBatch(0, 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, errStoreDown)

	// WHEN the store recovers
	require.NoError(t, s.Flush(ctx))

	// THEN the retained batch is written and steps are accepted again
	states, _ := store.snapshot()
	assert.Len(t, states, 3)
	require.NoError(t, s.RecordStep(ctx, sampleBatch(0, 1)))
	require.NoError(t, s.Close(ctx))
	states, _ = store.snapshot()
	assert.Len(t, states, 6)
}

func TestStream_RecordCountTriggersBackgroundFlush(t *testing.T) {
	// GIVEN a stream that flushes every 3 records
	store := &recordingStore{}
	s := OpenStream(context.Background(), store, WithFlushRecords(3), WithFlushInterval(time.Hour))
	defer func() { _ = s.Close(context.Background()) }()

	// WHEN one 3-record step is recorded
	require.NoError(t, s.RecordStep(context.Background(), sampleBatch(0, 0)))

	// THEN the background loop writes it without an explicit flush
	assert.Eventually(t, func() bool {
		states, _ := store.snapshot()
		return len(states) == 3
	}, 2*time.Second, 5*time.Millisecond)
}

func TestStream_Close_Twice(t *testing.T) {
	s := openQuietStream(t, &recordingStore{})
	require.NoError(t, s.Close(context.Background()))
	assert.ErrorIs(t, s.Close(context.Background()), ErrClosed)
	assert.ErrorIs(t, s.RecordStep(context.Background(), sampleBatch(0, 0)), ErrClosed)
}
