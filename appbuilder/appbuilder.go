// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package appbuilder provides middleware for [fnrun.AppBuilder]s.
package appbuilder

import (
	"context"

	"github.com/z5labs/fnrun"
	"github.com/z5labs/fnrun/internal/try"
)

// Recover will wrap the given [fnrun.AppBuilder] with panic recovery.
func Recover[T any](builder fnrun.AppBuilder[T]) fnrun.AppBuilder[T] {
	return fnrun.AppBuilderFunc[T](func(ctx context.Context, cfg T) (_ fnrun.App, err error) {
		defer try.Recover(&err)

		return builder.Build(ctx, cfg)
	})
}
