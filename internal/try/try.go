// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package try converts panics and deferred close failures into errors.
package try

import (
	"errors"
	"fmt"
	"io"
)

// PanicError wraps a value recovered from a panic.
type PanicError struct {
	Value any
}

// Error implements the [error] interface.
func (e PanicError) Error() string {
	return fmt.Sprintf("recovered from panic: %v", e.Value)
}

// Unwrap returns the recovered value if it is itself an error.
func (e PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// Recover must be deferred. Any recovered panic is stored in err,
// joined with whatever err already held.
func Recover(err *error) {
	r := recover()
	if r == nil {
		return
	}
	join(err, PanicError{Value: r})
}

// Call runs f and reports a panic inside f as a [PanicError].
func Call(f func() error) (err error) {
	defer Recover(&err)

	return f()
}

// CloseError is returned when a deferred Close fails.
type CloseError struct {
	Cause error
}

// Error implements the [error] interface.
func (e CloseError) Error() string {
	return fmt.Sprintf("failed to close: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e CloseError) Unwrap() error {
	return e.Cause
}

// Close closes v if it is an [io.Closer] and records any failure in err.
func Close(err *error, v any) {
	c, ok := v.(io.Closer)
	if !ok || c == nil {
		return
	}

	cerr := c.Close()
	if cerr == nil {
		return
	}
	join(err, CloseError{Cause: cerr})
}

func join(err *error, e error) {
	if *err == nil {
		*err = e
		return
	}
	*err = errors.Join(*err, e)
}
