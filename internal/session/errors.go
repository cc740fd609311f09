package session

import (
	"errors"
	"fmt"
)

// ErrAuthentication is matched by every AuthError.
var ErrAuthentication = errors.New("authentication error")

// AuthError reports a connect attempt that carried no participant id.
// No session state exists for a refused connection.
type AuthError struct {
	ConnectionID string
	Reason       string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.ConnectionID != "" {
		return fmt.Sprintf("authentication error: %s (connection=%s)", e.Reason, e.ConnectionID)
	}
	return fmt.Sprintf("authentication error: %s", e.Reason)
}

// Is lets errors.Is(err, ErrAuthentication) match.
func (e *AuthError) Is(target error) bool {
	return target == ErrAuthentication
}

// IsAuthError returns true if err is, or wraps, an AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
