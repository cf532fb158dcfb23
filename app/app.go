// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package app provides helpers for common fnrun.App implementation patterns.
package app

import (
	"context"
	"os"
	"os/signal"

	"github.com/z5labs/fnrun"
	"github.com/z5labs/fnrun/internal/try"

	"golang.org/x/sync/errgroup"
)

// Recover will wrap the give [fnrun.App] with panic recovery.
// If the recovered panic value implements [error] then it can be
// unwrapped from the returned [fnrun.PanicError].
func Recover(app fnrun.App) fnrun.App {
	return fnrun.AppFunc(func(ctx context.Context) (err error) {
		defer try.Recover(&err)

		return app.Run(ctx)
	})
}

// WithSignalNotifications wraps a given [fnrun.App] in an implementation
// that cancels the [context.Context] that's passed to app.Run if an [os.Signal]
// is received by the running process.
func WithSignalNotifications(app fnrun.App, signals ...os.Signal) fnrun.App {
	return fnrun.AppFunc(func(ctx context.Context) error {
		sigCtx, cancel := signal.NotifyContext(ctx, signals...)
		defer cancel()

		return app.Run(sigCtx)
	})
}

// Group runs every app concurrently. The first failure cancels the
// others and is returned once they have all returned.
func Group(apps ...fnrun.App) fnrun.App {
	return fnrun.AppFunc(func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		for _, app := range apps {
			app := app
			g.Go(func() error {
				return app.Run(gctx)
			})
		}
		return g.Wait()
	})
}
