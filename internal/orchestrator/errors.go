package orchestrator

import (
	"errors"
	"fmt"
)

// Failure kinds. A *TurnError unwraps to one of these.
var (
	ErrTransport     = errors.New("transport failure")
	ErrTimeout       = errors.New("timeout")
	ErrPersistence   = errors.New("persistence failure")
	ErrConfiguration = errors.New("configuration failure")
	ErrGeneration    = errors.New("generation failure")
)

// TurnError reports a turn that ended without being spoken, or a session
// that could not start.
type TurnError struct {
	Kind  error
	Stage string
	Err   error
}

func (e *TurnError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
}

func (e *TurnError) Unwrap() []error { return []error{e.Kind, e.Err} }

func kindName(kind error) string {
	switch kind {
	case ErrTransport:
		return "transport"
	case ErrTimeout:
		return "timeout"
	case ErrPersistence:
		return "persistence"
	case ErrConfiguration:
		return "configuration"
	case ErrGeneration:
		return "generation"
	}
	return "unknown"
}
