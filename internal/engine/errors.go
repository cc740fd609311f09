package engine

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/roach88/tether/internal/physics"
)

// RuntimeError represents an error detected while applying an event.
//
// Runtime errors include:
//   - Unknown session: the event names a connection with no session
//   - Invalid event: the event type is not recognised
//   - Handler panic: applying the event panicked; the loop kept going
//   - Stopped: the engine is no longer accepting events
//
// None of them stop the Run loop.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// ConnectionID identifies the affected connection, if any.
	ConnectionID string

	// Event names the event being applied.
	Event string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeUnknownSession indicates the connection has no session.
	ErrCodeUnknownSession RuntimeErrorCode = "UNKNOWN_SESSION"

	// ErrCodeInvalidEvent indicates an event the engine cannot apply.
	ErrCodeInvalidEvent RuntimeErrorCode = "INVALID_EVENT"

	// ErrCodeHandlerPanic indicates applying the event panicked.
	ErrCodeHandlerPanic RuntimeErrorCode = "HANDLER_PANIC"

	// ErrCodeStopped indicates the engine has stopped.
	ErrCodeStopped RuntimeErrorCode = "STOPPED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.ConnectionID != "" && e.Event != "" {
		return fmt.Sprintf("%s: %s (event=%s, connection=%s)", e.Code, e.Message, e.Event, e.ConnectionID)
	}
	if e.Event != "" {
		return fmt.Sprintf("%s: %s (event=%s)", e.Code, e.Message, e.Event)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsUnknownSession returns true if the error is an unknown session error.
// Uses errors.As to handle wrapped errors.
func IsUnknownSession(err error) bool {
	return hasCode(err, ErrCodeUnknownSession)
}

// IsInvalidEvent returns true if the engine refused an event it cannot
// apply.
func IsInvalidEvent(err error) bool {
	return hasCode(err, ErrCodeInvalidEvent)
}

// IsStopped returns true if the engine refused work because it stopped.
func IsStopped(err error) bool {
	return hasCode(err, ErrCodeStopped)
}

// IsHandlerPanic returns true if the error wraps a recovered panic.
func IsHandlerPanic(err error) bool {
	return hasCode(err, ErrCodeHandlerPanic)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// NewUnknownSessionError creates a RuntimeError for an event whose
// connection has no session.
func NewUnknownSessionError(ev EventType, connectionID string) *RuntimeError {
	return &RuntimeError{
		Code:         ErrCodeUnknownSession,
		Message:      "no session for connection",
		ConnectionID: connectionID,
		Event:        ev.String(),
	}
}

// NewInvalidPointError creates a RuntimeError for an input position that
// is NaN or infinite. Such a point would poison every later snapshot.
func NewInvalidPointError(ev EventType, connectionID string, p physics.Vec) *RuntimeError {
	return &RuntimeError{
		Code:         ErrCodeInvalidEvent,
		Message:      "point is not finite",
		ConnectionID: connectionID,
		Event:        ev.String(),
		Details: map[string]string{
			"x": strconv.FormatFloat(p.X, 'g', -1, 64),
			"y": strconv.FormatFloat(p.Y, 'g', -1, 64),
		},
	}
}

// NewPanicError creates a RuntimeError for a recovered panic.
func NewPanicError(ev EventType, connectionID string, recovered any) *RuntimeError {
	return &RuntimeError{
		Code:         ErrCodeHandlerPanic,
		Message:      fmt.Sprintf("handler panicked: %v", recovered),
		ConnectionID: connectionID,
		Event:        ev.String(),
	}
}

// NewStoppedError creates a RuntimeError for work refused after shutdown.
func NewStoppedError() *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeStopped,
		Message: "engine stopped",
	}
}
