package sim

import (
	"errors"
	"fmt"
)

// ErrRunComplete is returned by Step once all configured steps have executed.
var ErrRunComplete = errors.New("sim: run already complete")

// ConfigurationError reports an invalid simulation configuration. It is
// raised at construction time, before any random draw, and is never retried.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

func newConfigurationError(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// LogSinkWriteError reports that a step's records could not be recorded.
// The step's records were not accepted; the run stops at that step.
type LogSinkWriteError struct {
	RunID int
	Step  int
	Err   error
}

func (e *LogSinkWriteError) Error() string {
	return fmt.Sprintf("run %d step %d: recording step: %v", e.RunID, e.Step, e.Err)
}

func (e *LogSinkWriteError) Unwrap() error {
	return e.Err
}
