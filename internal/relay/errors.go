package relay

import (
	"errors"
	"fmt"
)

// ConnectionError reports that the mail store could not be reached or the
// connection dropped mid-cycle.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error (%s): %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// AuthError reports that the mail store rejected the configured credentials.
type AuthError struct {
	User string
	Err  error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %v", e.User, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ProtocolError reports a command the mail store answered with a failure.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error (%s): %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// DeliveryError reports that the chat service did not accept a message.
// RetryAfter is set when the service asked the caller to back off.
type DeliveryError struct {
	Channel    string
	RetryAfter int
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("delivery to %s failed (retry after %ds): %v", e.Channel, e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("delivery to %s failed: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// IsConnectionError reports whether err (or any error in its chain) is a ConnectionError.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsRecoverable reports whether err only aborts the current cycle. Anything
// else terminates the poll loop.
func IsRecoverable(err error) bool {
	var (
		connErr  *ConnectionError
		authErr  *AuthError
		protoErr *ProtocolError
	)
	return errors.As(err, &connErr) || errors.As(err, &authErr) || errors.As(err, &protoErr)
}
