package trace

// StepBatch holds every record one simulation step produced. A sink accepts
// or rejects a batch as a whole.
type StepBatch struct {
	RunID      int
	Step       int
	States     []AgentStateRecord
	Infections []InfectionEventRecord
}

// Len returns the total number of records in the batch.
func (b *StepBatch) Len() int {
	return len(b.States) + len(b.Infections)
}

// Log is a pair of append-only record streams.
type Log struct {
	States     []AgentStateRecord
	Infections []InfectionEventRecord
}

// NewLog creates an empty Log ready for recording.
func NewLog() *Log {
	return &Log{
		States:     make([]AgentStateRecord, 0),
		Infections: make([]InfectionEventRecord, 0),
	}
}

// AppendBatch appends a step's records in order.
func (l *Log) AppendBatch(b *StepBatch) {
	l.States = append(l.States, b.States...)
	l.Infections = append(l.Infections, b.Infections...)
}

// Append appends another log's records after this log's records.
func (l *Log) Append(other *Log) {
	l.States = append(l.States, other.States...)
	l.Infections = append(l.Infections, other.Infections...)
}
