// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package fn

import (
	"errors"
	"maps"
	"net/http"
	"sync"
	"sync/atomic"
)

// ErrFailed is recorded when [Context.Fail] is called with a nil error.
var ErrFailed = errors.New("function failed")

// Outcome is the result of an invocation.
type Outcome struct {
	Value any
	Err   error

	// Status and Headers are captured from the [Context] when the
	// outcome is stored. Later changes to the Context do not affect them.
	Status  int
	Headers map[string]string
}

// Failed reports whether the invocation failed.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Context controls the response of a single invocation.
// It is safe for concurrent use.
type Context struct {
	mu      sync.Mutex
	status  int
	headers map[string]string

	calls   atomic.Int64
	once    sync.Once
	done    chan struct{}
	outcome Outcome
}

// NewContext returns a Context with status 200 and no headers.
func NewContext() *Context {
	return &Context{
		status:  http.StatusOK,
		headers: make(map[string]string),
		done:    make(chan struct{}),
	}
}

// Status returns the status code the response will be sent with.
func (c *Context) Status() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// SetStatus sets the response status code. Any value is stored as is,
// including 0.
func (c *Context) SetStatus(code int) *Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = code
	return c
}

// Headers returns a copy of the response headers.
func (c *Context) Headers() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.headers)
}

// SetHeaders replaces the response headers with a copy of h.
func (c *Context) SetHeaders(h map[string]string) *Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers = maps.Clone(h)
	if c.headers == nil {
		c.headers = make(map[string]string)
	}
	return c
}

// SetHeader sets a single response header.
func (c *Context) SetHeader(key, value string) *Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers[key] = value
	return c
}

// Succeed completes the invocation with value.
func (c *Context) Succeed(value any) {
	c.calls.Add(1)
	c.Settle(Outcome{Value: value})
}

// Fail completes the invocation with err. If this is the first
// completion, a status still at 200 is changed to 500.
func (c *Context) Fail(err error) {
	if err == nil {
		err = ErrFailed
	}

	c.calls.Add(1)
	c.settle(Outcome{Err: err}, true)
}

// Callback returns the [Callback] bound to this Context.
func (c *Context) Callback() Callback {
	return func(err error, value any) {
		if err != nil {
			c.Fail(err)
			return
		}
		c.Succeed(value)
	}
}

// Calls returns how many times the invocation was completed by the
// function, including calls that arrived after the first one.
func (c *Context) Calls() int {
	return int(c.calls.Load())
}

// Settle stores o unless an outcome was already stored. It reports
// whether o was the one kept. Unlike [Context.Succeed] and [Context.Fail]
// it is not counted by [Context.Calls]. The status and headers of o
// are replaced with those currently set on c.
func (c *Context) Settle(o Outcome) bool {
	return c.settle(o, false)
}

func (c *Context) settle(o Outcome, failed bool) bool {
	settled := false
	c.once.Do(func() {
		c.mu.Lock()
		if failed && c.status == http.StatusOK {
			c.status = http.StatusInternalServerError
		}
		o.Status = c.status
		o.Headers = maps.Clone(c.headers)
		c.mu.Unlock()

		c.outcome = o
		settled = true
		close(c.done)
	})
	return settled
}

// Done is closed once an outcome has been stored.
func (c *Context) Done() <-chan struct{} {
	return c.done
}

// Outcome returns the stored outcome and whether there is one yet.
func (c *Context) Outcome() (Outcome, bool) {
	select {
	case <-c.done:
		return c.outcome, true
	default:
		return Outcome{}, false
	}
}
