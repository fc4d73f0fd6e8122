package tle

import (
	"errors"
	"fmt"
)

// ErrParse is matched by every *ParseError.
var ErrParse = errors.New("tle: parse error")

// ErrFetch is matched by every *FetchError.
var ErrFetch = errors.New("tle: fetch error")

// ParseError reports a malformed field in an element set line.
type ParseError struct {
	Field string
	Line  int    // 1 or 2
	Span  [2]int // 0-based, half-open column range
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("tle: line %d field %s [%d,%d): %v", e.Line, e.Field, e.Span[0], e.Span[1], e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// FetchError reports a failure retrieving a TLE document. Status is the HTTP
// status code, or 0 when no response was received.
type FetchError struct {
	Locator string
	Status  int
	Err     error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("tle: fetching %s: status %d: %v", e.Locator, e.Status, e.Err)
	}
	return fmt.Sprintf("tle: fetching %s: %v", e.Locator, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }
