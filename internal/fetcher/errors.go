package fetcher

import (
	"errors"
	"fmt"
)

var (
	// ErrFetchFailure is returned when a playlist or guide cannot be retrieved.
	ErrFetchFailure = errors.New("fetch failed")
	// ErrParseFailure is returned when a guide document is not valid XML.
	ErrParseFailure = errors.New("parse failed")
)

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// Unwrap lets errors.Is(err, ErrFetchFailure) match status errors.
func (e *StatusError) Unwrap() error { return ErrFetchFailure }
