// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package lifecycle lets components register cleanup that must run once
// a [fnrun.App] has returned, e.g. flushing traces or closing watchers.
package lifecycle

import (
	"context"
	"errors"
	"sync"
)

// Hook is an action performed relative to an app's execution.
type Hook interface {
	Run(context.Context) error
}

// HookFunc is a func variant of the [Hook] interface.
type HookFunc func(context.Context) error

// Run implements the [Hook] interface.
func (f HookFunc) Run(ctx context.Context) error {
	return f(ctx)
}

type multiHook []Hook

func (mh multiHook) Run(ctx context.Context) error {
	var errs []error
	for _, h := range mh {
		err := h.Run(ctx)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MultiHook runs every hook in order, even when earlier ones fail,
// and joins their errors.
func MultiHook(hooks ...Hook) Hook {
	return multiHook(hooks)
}

// Context collects the hooks to run once the app returns.
type Context struct {
	mu       sync.Mutex
	postRuns []Hook
}

// OnPostRun registers hook. Hooks run in reverse registration order,
// so something registered while building can rely on what was
// registered before it still being available.
func (c *Context) OnPostRun(hook Hook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.postRuns = append(c.postRuns, hook)
}

// PostRun returns a single [Hook] running everything registered with [Context.OnPostRun].
func (c *Context) PostRun() Hook {
	c.mu.Lock()
	defer c.mu.Unlock()

	hooks := make(multiHook, len(c.postRuns))
	for i, h := range c.postRuns {
		hooks[len(hooks)-1-i] = h
	}
	return hooks
}

type contextKey struct{}

// NewContext returns a copy of parent carrying c.
func NewContext(parent context.Context, c *Context) context.Context {
	return context.WithValue(parent, contextKey{}, c)
}

// FromContext extracts the lifecycle [Context] carried by ctx.
func FromContext(ctx context.Context) (*Context, bool) {
	lc, ok := ctx.Value(contextKey{}).(*Context)
	return lc, ok
}
