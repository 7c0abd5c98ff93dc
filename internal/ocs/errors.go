package ocs

import (
	"errors"
	"fmt"

	"github.com/Azelphur/ownCloud-share-tools/internal/protocol"
)

// ErrNotFound is matched by errors.Is for any not-found API failure.
var ErrNotFound = errors.New("share not found")

// ErrShareDeleted is returned when operating on a share this process already deleted.
var ErrShareDeleted = errors.New("share has been deleted")

// TransportError is returned when no usable OCS envelope came back: the request
// failed, the HTTP status was not 200, or the body could not be decoded.
type TransportError struct {
	Method     string
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: http status %d: %v", e.Method, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError is returned when the server answered HTTP 200 but the envelope's
// status code is not the success sentinel.
type APIError struct {
	Status     string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s", e.StatusCode, e.Message)
}

// Is makes errors.Is(err, ErrNotFound) hold for 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == protocol.StatusNotFound
}

func newAPIError(m protocol.Meta) *APIError {
	return &APIError{Status: m.Status, StatusCode: m.StatusCode, Message: m.Message}
}

// NotFoundError is returned by GetShare when the share does not exist.
type NotFoundError struct {
	ID  int
	Err *APIError
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("share #%d not found: %v", e.ID, e.Err)
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// ValidationError is returned before any request is sent when arguments
// cannot produce a valid request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AsAPIError reports whether err carries an APIError and returns it.
func AsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
