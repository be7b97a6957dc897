package ae3gis

import (
	"errors"
	"fmt"
	"net"
)

var (
	// ErrNoPlanEntry is returned when a node needs a static address and the plan has none for it
	ErrNoPlanEntry = errors.New("no static plan entry")

	// ErrJobTimeout is recorded when a dispatched job runs past its deadline and is abandoned
	ErrJobTimeout = errors.New("job deadline exceeded")
)

type (
	// ConnectError wraps a failure to reach a node's console endpoint
	ConnectError struct {
		Host string
		Port int
		Err  error
	}

	// ParseError wraps a malformed config or plan file
	ParseError struct {
		Path string
		Err  error
	}

	// PersistenceError wraps a failed backup, write, or rename of a state file
	PersistenceError struct {
		Op   string
		Path string
		Err  error
	}
)

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s:%d: %s", e.Host, e.Port, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a deadline-style failure, either the dispatcher's own
// sentinel or a network timeout bubbled up from a console read or dial.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrJobTimeout) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
