package logsink

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/inference-sim/sir-sim/sim/trace"
)

// Default file names used by CreateCSVStore.
const (
	AgentStatesFile     = "agent_states.csv"
	InfectionEventsFile = "infection_events.csv"
)

// CSVStore writes the two record streams as CSV, one header row each.
type CSVStore struct {
	mu         sync.Mutex
	states     *csv.Writer
	infections *csv.Writer
	closers    []io.Closer
}

// NewCSVStore writes to arbitrary writers. Headers are written immediately.
func NewCSVStore(states, infections io.Writer) (*CSVStore, error) {
	s := &CSVStore{
		states:     csv.NewWriter(states),
		infections: csv.NewWriter(infections),
	}
	if err := s.states.Write(stateColumns); err != nil {
		return nil, fmt.Errorf("csv: writing state header: %w", err)
	}
	if err := s.infections.Write(infectionColumns); err != nil {
		return nil, fmt.Errorf("csv: writing infection header: %w", err)
	}
	return s, nil
}

// CreateCSVStore creates dir if needed and writes AgentStatesFile and
// InfectionEventsFile inside it, truncating existing files.
func CreateCSVStore(dir string) (*CSVStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("csv: creating output dir: %w", err)
	}
	statesFile, err := os.Create(filepath.Join(dir, AgentStatesFile))
	if err != nil {
		return nil, fmt.Errorf("csv: creating agent state log: %w", err)
	}
	infectionsFile, err := os.Create(filepath.Join(dir, InfectionEventsFile))
	if err != nil {
		_ = statesFile.Close()
		return nil, fmt.Errorf("csv: creating infection log: %w", err)
	}
	s, err := NewCSVStore(statesFile, infectionsFile)
	if err != nil {
		_ = statesFile.Close()
		_ = infectionsFile.Close()
		return nil, err
	}
	s.closers = []io.Closer{statesFile, infectionsFile}
	return s, nil
}

// Write appends the records and flushes both writers.
func (s *CSVStore) Write(_ context.Context, states []trace.AgentStateRecord, infections []trace.InfectionEventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range states {
		if err := s.states.Write(formatRow(stateValues(r))); err != nil {
			return fmt.Errorf("csv: writing state row: %w", err)
		}
	}
	for _, r := range infections {
		if err := s.infections.Write(formatRow(infectionValues(r))); err != nil {
			return fmt.Errorf("csv: writing infection row: %w", err)
		}
	}
	s.states.Flush()
	s.infections.Flush()
	if err := errors.Join(s.states.Error(), s.infections.Error()); err != nil {
		return fmt.Errorf("csv: flushing: %w", err)
	}
	return nil
}

// Close flushes and closes any files opened by CreateCSVStore.
func (s *CSVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states.Flush()
	s.infections.Flush()
	errs := []error{s.states.Error(), s.infections.Error()}
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	s.closers = nil
	return errors.Join(errs...)
}

// formatRow renders ints and strings with integer formatting.
func formatRow(values []any) []string {
	row := make([]string, len(values))
	for i, v := range values {
		switch v := v.(type) {
		case int:
			row[i] = strconv.Itoa(v)
		case string:
			row[i] = v
		default:
			row[i] = fmt.Sprint(v)
		}
	}
	return row
}

// runCountColumns is the header of the per-run count files.
var runCountColumns = []string{"timestep", "num_susceptible", "num_infected", "num_recovered"}

// ExportRunCounts writes one run_<id>.csv per summary into dir with the S/I/R
// count of every step. Returns the written paths in run order.
func ExportRunCounts(dir string, summaries []trace.RunSummary) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("csv: creating output dir: %w", err)
	}
	paths := make([]string, 0, len(summaries))
	for _, s := range summaries {
		path := filepath.Join(dir, fmt.Sprintf("run_%d.csv", s.RunID))
		if err := writeRunCounts(path, s.Counts); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeRunCounts(path string, counts []trace.StepCounts) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csv: creating %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	writer := csv.NewWriter(file)
	if err := writer.Write(runCountColumns); err != nil {
		return fmt.Errorf("csv: writing header: %w", err)
	}
	for _, c := range counts {
		row := formatRow([]any{c.Step, c.Susceptible, c.Infected, c.Recovered})
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("csv: writing step %d: %w", c.Step, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("csv: flushing %s: %w", path, err)
	}
	return file.Close()
}
