// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package fnrun

import (
	"context"
	"errors"
	"fmt"

	"github.com/z5labs/fnrun/config"
	"github.com/z5labs/fnrun/internal/try"
	"github.com/z5labs/fnrun/lifecycle"
)

// App represents the entry point for user specific code.
type App interface {
	Run(context.Context) error
}

// AppFunc is a func variant of the [App] interface.
type AppFunc func(context.Context) error

// Run implements the [App] interface.
func (f AppFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// AppBuilder represents anything which can initialize an [App].
type AppBuilder[T any] interface {
	Build(ctx context.Context, cfg T) (App, error)
}

// AppBuilderFunc is a functional implementation of
// the AppBuilder interface.
type AppBuilderFunc[T any] func(context.Context, T) (App, error)

// Build implements the AppBuilder interface.
func (f AppBuilderFunc[T]) Build(ctx context.Context, cfg T) (App, error) {
	return f(ctx, cfg)
}

// PanicError is returned in place of a panic recovered from user code.
type PanicError = try.PanicError

// Run executes the application. It's responsible for reading the provided
// config sources, unmarshalling them into the generic config type, using
// the config and builder to build the users [App] and, lastly, running the
// returned [App].
//
// Hooks registered with the [lifecycle.Context] carried by the build
// context run once the [App] returns, or once building fails.
func Run[T any](ctx context.Context, builder AppBuilder[T], srcs ...config.Source) (err error) {
	m, err := config.Read(srcs...)
	if err != nil {
		return ConfigReadError{Cause: err}
	}

	var cfg T
	err = m.Unmarshal(&cfg)
	if err != nil {
		return ConfigUnmarshalError{Cause: err}
	}

	lc := &lifecycle.Context{}
	ctx = lifecycle.NewContext(ctx, lc)
	defer func() {
		// use a fresh context so hooks can still flush after a cancellation
		hookErr := lc.PostRun().Run(context.WithoutCancel(ctx))
		if hookErr != nil {
			err = errors.Join(err, PostRunError{Cause: hookErr})
		}
	}()

	app, err := builder.Build(ctx, cfg)
	if err != nil {
		return AppBuildError{Cause: err}
	}

	err = app.Run(ctx)
	if err != nil {
		return AppRunError{Cause: err}
	}
	return nil
}

// ConfigReadError
type ConfigReadError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e ConfigReadError) Error() string {
	return fmt.Sprintf("failed to read config source(s): %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ConfigReadError) Unwrap() error {
	return e.Cause
}

// ConfigUnmarshalError
type ConfigUnmarshalError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e ConfigUnmarshalError) Error() string {
	return fmt.Sprintf("failed to unmarshal read config source(s) into custom type: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ConfigUnmarshalError) Unwrap() error {
	return e.Cause
}

// AppBuildError
type AppBuildError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e AppBuildError) Error() string {
	return fmt.Sprintf("failed to build app: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e AppBuildError) Unwrap() error {
	return e.Cause
}

// AppRunError
type AppRunError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e AppRunError) Error() string {
	return fmt.Sprintf("failed to run app: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e AppRunError) Unwrap() error {
	return e.Cause
}

// PostRunError is returned when a cleanup hook fails.
type PostRunError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e PostRunError) Error() string {
	return fmt.Sprintf("failed to run post run hooks: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e PostRunError) Unwrap() error {
	return e.Cause
}
