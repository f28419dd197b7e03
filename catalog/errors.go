package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyCatalog is returned when a fetch yields no records at all.
	ErrEmptyCatalog = errors.New("catalog returned no records")

	// ErrMalformedResponse is returned when a catalog response cannot be decoded.
	ErrMalformedResponse = errors.New("malformed catalog response")

	// ErrUnexpectedStatus is returned for non-200 HTTP responses.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrEditionNotFound is returned when an edition lookup returns 404.
	ErrEditionNotFound = errors.New("edition not found")

	// ErrBaseURLRequired is returned when the client has no base URL.
	ErrBaseURLRequired = errors.New("catalog base URL required")

	// ErrClientRequired is returned when a fetcher has no client.
	ErrClientRequired = errors.New("catalog client required")
)

// StatusError carries the status code and a truncated body of a failed
// request.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %d: %s", ErrUnexpectedStatus, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}
