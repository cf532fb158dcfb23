// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package fn

import (
	"context"

	"github.com/z5labs/fnrun/internal/try"
)

// Deferred is a value which becomes available later.
// Returning one from [Handler.Handle] makes the server wait for it.
type Deferred interface {
	Await(ctx context.Context) (any, error)
}

type deferred struct {
	done  chan struct{}
	value any
	err   error
}

// Defer starts f on its own goroutine and returns a [Deferred] for its
// result. A panic in f becomes the Deferred's error.
func Defer(ctx context.Context, f func(context.Context) (any, error)) Deferred {
	d := &deferred{done: make(chan struct{})}
	go func() {
		defer close(d.done)

		d.err = try.Call(func() (err error) {
			d.value, err = f(ctx)
			return err
		})
	}()
	return d
}

func (d *deferred) Await(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-d.done:
		return d.value, d.err
	}
}

type pending struct{}

// Pending is returned by functions which complete only through the
// [Callback] or [Context], possibly from another goroutine.
var Pending Deferred = pending{}

func (pending) Await(ctx context.Context) (any, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// Resolve returns an already completed [Deferred].
func Resolve(value any, err error) Deferred {
	d := &deferred{done: make(chan struct{}), value: value, err: err}
	close(d.done)
	return d
}
