package tracker

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is matched by every *NotFoundError.
	ErrNotFound = errors.New("not found")
	// ErrNoObserver is returned by look-angle queries before the first fix.
	ErrNoObserver = errors.New("observer position not set")
	// ErrStopped is returned by loads after Stop.
	ErrStopped = errors.New("tracker stopped")
)

// Kind names what a NotFoundError failed to resolve.
type Kind string

const (
	KindGroup     Kind = "group"
	KindSubgroup  Kind = "subgroup"
	KindSatellite Kind = "satellite"
)

// NotFoundError reports an unknown group, subgroup or satellite name.
type NotFoundError struct {
	Kind Kind
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
