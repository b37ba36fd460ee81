package agent

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	// KindStatus means the agent answered with a non-success HTTP status.
	KindStatus ErrorKind = "status"
	// KindTransport means no usable answer arrived.
	KindTransport ErrorKind = "transport"
)

// DispatchError is the only error shape returned by Client calls. Error bodies
// are not parsed.
type DispatchError struct {
	Op         string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *DispatchError) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("%s: agent returned http %d", e.Op, e.StatusCode)
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: transport failure", e.Op)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// AsDispatchError extracts a DispatchError from err's chain.
func AsDispatchError(err error) (*DispatchError, bool) {
	var de *DispatchError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// IsTransport reports whether err means the agent was unreachable.
func IsTransport(err error) bool {
	de, ok := AsDispatchError(err)
	return ok && de.Kind == KindTransport
}

func statusError(op string, code int) error {
	return &DispatchError{Op: op, Kind: KindStatus, StatusCode: code}
}

func transportError(op string, err error) error {
	return &DispatchError{Op: op, Kind: KindTransport, Err: err}
}
