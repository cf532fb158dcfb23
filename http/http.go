// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package http provides the HTTP server the function is exposed through.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/z5labs/fnrun/internal/logging"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

type runtimeOptions struct {
	port            uint
	mux             *http.ServeMux
	logHandler      slog.Handler
	readTimeout     time.Duration
	writeTimeout    time.Duration
	idleTimeout     time.Duration
	shutdownTimeout time.Duration
}

// RuntimeOption
type RuntimeOption func(*runtimeOptions)

// ListenOnPort will configure the HTTP server to listen on the given port.
//
// Default port is 3000.
func ListenOnPort(port uint) RuntimeOption {
	return func(ro *runtimeOptions) {
		ro.port = port
	}
}

// LogHandler
func LogHandler(h slog.Handler) RuntimeOption {
	return func(ro *runtimeOptions) {
		ro.logHandler = h
	}
}

// Handle registers a http.Handler for the given path pattern.
func Handle(pattern string, h http.Handler) RuntimeOption {
	return func(ro *runtimeOptions) {
		ro.mux.Handle(pattern, otelhttp.WithRouteTag(pattern, h))
	}
}

// ReadTimeout bounds reading an entire request, body included.
func ReadTimeout(d time.Duration) RuntimeOption {
	return func(ro *runtimeOptions) {
		ro.readTimeout = d
	}
}

// WriteTimeout bounds writing a response. Zero means no limit.
func WriteTimeout(d time.Duration) RuntimeOption {
	return func(ro *runtimeOptions) {
		ro.writeTimeout = d
	}
}

// IdleTimeout bounds how long keep-alive connections wait for the next request.
func IdleTimeout(d time.Duration) RuntimeOption {
	return func(ro *runtimeOptions) {
		ro.idleTimeout = d
	}
}

// ShutdownTimeout bounds how long in flight requests may take to
// finish once the server is asked to stop.
func ShutdownTimeout(d time.Duration) RuntimeOption {
	return func(ro *runtimeOptions) {
		ro.shutdownTimeout = d
	}
}

// Runtime serves HTTP until its context is cancelled.
type Runtime struct {
	port   uint
	listen func(string, string) (net.Listener, error)

	log *slog.Logger
	h   http.Handler

	readTimeout     time.Duration
	writeTimeout    time.Duration
	idleTimeout     time.Duration
	shutdownTimeout time.Duration
}

// NewRuntime
func NewRuntime(opts ...RuntimeOption) *Runtime {
	ros := &runtimeOptions{
		port:            3000,
		mux:             http.NewServeMux(),
		logHandler:      logging.NoopHandler{},
		readTimeout:     10 * time.Second,
		idleTimeout:     120 * time.Second,
		shutdownTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(ros)
	}

	return &Runtime{
		port:            ros.port,
		listen:          net.Listen,
		log:             slog.New(ros.logHandler),
		h:               ros.mux,
		readTimeout:     ros.readTimeout,
		writeTimeout:    ros.writeTimeout,
		idleTimeout:     ros.idleTimeout,
		shutdownTimeout: ros.shutdownTimeout,
	}
}

// Run listens on the configured port and serves until ctx is cancelled,
// at which point in flight requests are given the shutdown timeout to finish.
func (rt *Runtime) Run(ctx context.Context) error {
	ls, err := rt.listen("tcp", fmt.Sprintf(":%d", rt.port))
	if err != nil {
		rt.log.ErrorContext(ctx, "failed to listen for connections", logging.Error(err))
		return err
	}

	s := &http.Server{
		Handler: otelhttp.NewHandler(
			rt.h,
			"fnrun",
			otelhttp.WithMessageEvents(otelhttp.ReadEvents, otelhttp.WriteEvents),
		),
		ReadTimeout:  rt.readTimeout,
		WriteTimeout: rt.writeTimeout,
		IdleTimeout:  rt.idleTimeout,
		ErrorLog:     slog.NewLogLogger(rt.log.Handler(), slog.LevelError),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()

		ctx, cancel := context.WithTimeout(context.Background(), rt.shutdownTimeout)
		defer cancel()
		defer rt.log.Info("shut down server")

		rt.log.Info("shutting down server")
		return s.Shutdown(ctx)
	})
	g.Go(func() error {
		rt.log.Info("started server", slog.String("addr", ls.Addr().String()))
		return s.Serve(ls)
	})

	err = g.Wait()
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	rt.log.Error("server encountered unexpected error", logging.Error(err))
	return err
}
