// Package errorhandling distinguishes errors that are fatal to the
// operation that produced them from errors a caller may retry, the same
// soft/critical split hornet/v2's pkg/common applies throughout its
// coordinator and gossip layers. This module is itself a node core, so
// rather than import hornet/v2 for two wrapper types it reimplements the
// same idiom in-house.
package errorhandling

import "github.com/pkg/errors"

// ErrNodeNotSynced is returned by operations that require a synced node
// (milestone issuance, checkpoint issuance) when it is not synced.
var ErrNodeNotSynced = errors.New("node is not synced")

// criticalError wraps an error that should cause the enclosing component
// to shut down rather than continue operating.
type criticalError struct {
	err error
}

func (c criticalError) Error() string {
	return c.err.Error()
}

func (c criticalError) Unwrap() error {
	return c.err
}

// softError wraps an error that a caller may retry without tearing down
// the enclosing component.
type softError struct {
	err error
}

func (s softError) Error() string {
	return s.err.Error()
}

func (s softError) Unwrap() error {
	return s.err
}

// CriticalError marks err as fatal to the operation that produced it.
func CriticalError(err error) error {
	if err == nil {
		return nil
	}

	return criticalError{err: err}
}

// SoftError marks err as retryable.
func SoftError(err error) error {
	if err == nil {
		return nil
	}

	return softError{err: err}
}

// IsCritical reports whether err (or any error it wraps) was marked
// critical via CriticalError.
func IsCritical(err error) bool {
	var c criticalError

	return errors.As(err, &c)
}

// IsSoft reports whether err (or any error it wraps) was marked soft via
// SoftError.
func IsSoft(err error) bool {
	var s softError

	return errors.As(err, &s)
}
