package pipeline

import (
	"errors"
	"fmt"
)

// ErrNoSpeech is returned when no usable speech could be extracted from the
// input audio, either by the speech gate or because every recognizer in the
// chain produced empty output.
var ErrNoSpeech = errors.New("no speech detected")

var errEmptyOutput = errors.New("backend returned empty output")

// ConfigError reports a request that cannot run with the active
// configuration, e.g. a language with no code mapping for a selected
// backend. It is raised before any backend is invoked.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

func newConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// BackendError reports a single failed backend attempt. Attempts that are
// followed by a fallback are logged only; the last attempt of a stage is
// wrapped in a StageError and surfaced to the caller.
type BackendError struct {
	Stage     Stage
	BackendID string
	Err       error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s backend %q: %s", e.Stage, e.BackendID, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// StageError reports a stage whose whole fallback chain has been exhausted.
// BackendID and Err refer to the last attempted backend.
type StageError struct {
	Stage     Stage
	BackendID string
	Err       error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: backend %q: %s", e.Stage, e.BackendID, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
