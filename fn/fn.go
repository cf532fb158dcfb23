// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package fn defines the calling convention between the HTTP server and
// a user supplied function.
//
// A function receives an [Event] describing the request and a [Context]
// controlling the response. It may complete in any of three ways:
//
//   - return a value (or an error) directly
//   - return a [Deferred] value which completes later
//   - call the [Callback], [Context.Succeed] or [Context.Fail]
//
// Whichever completes first decides the response. Later completions
// are ignored.
package fn

import (
	"context"
)

// Event is the normalized form of an inbound request.
type Event struct {
	// Body is the parsed request body. Depending on the content type it
	// is a string, []byte, a decoded JSON value or a decoded form.
	// Requests without a body carry an empty map[string]any.
	Body any

	// Headers holds the request headers keyed by their lower case name.
	// Repeated headers are joined with ", ".
	Headers map[string]string

	Method string

	// Query holds the decoded query string. Values are a string, a
	// []string for repeated keys or a map[string]any for bracketed keys.
	Query map[string]any

	Path string
}

// Callback completes an invocation. A non-nil err fails it,
// otherwise value becomes the response.
type Callback func(err error, value any)

// Handler is implemented by user functions.
type Handler interface {
	Handle(ctx context.Context, event *Event, fc *Context, cb Callback) (any, error)
}

// HandlerFunc is a func variant of the [Handler] interface.
type HandlerFunc func(ctx context.Context, event *Event, fc *Context, cb Callback) (any, error)

// Handle implements the [Handler] interface.
func (f HandlerFunc) Handle(ctx context.Context, event *Event, fc *Context, cb Callback) (any, error) {
	return f(ctx, event, fc, cb)
}
