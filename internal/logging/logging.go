// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package logging builds the [slog.Logger]s shared by the server and supervisor.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Config selects the level and output format of the process logger.
type Config struct {
	Level  string `config:"log_level"`
	Format string `config:"log_format"`
}

// UnknownLevelError is returned for a level name slog does not recognise.
type UnknownLevelError struct {
	Level string
}

// Error implements the [error] interface.
func (e UnknownLevelError) Error() string {
	return fmt.Sprintf("unknown log level: %s", e.Level)
}

// UnknownFormatError is returned for anything other than json or text.
type UnknownFormatError struct {
	Format string
}

// Error implements the [error] interface.
func (e UnknownFormatError) Error() string {
	return fmt.Sprintf("unknown log format: %s", e.Format)
}

// NewHandler returns a trace correlating [slog.Handler] writing to w.
func NewHandler(w io.Writer, cfg Config) (slog.Handler, error) {
	var lvl slog.Level
	if cfg.Level != "" {
		err := lvl.UnmarshalText([]byte(cfg.Level))
		if err != nil {
			return nil, UnknownLevelError{Level: cfg.Level}
		}
	}

	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return nil, UnknownFormatError{Format: cfg.Format}
	}
	return NewTraceHandler(h), nil
}

// TraceHandler adds the active span's trace and span ids to every record.
type TraceHandler struct {
	base slog.Handler
}

// NewTraceHandler
func NewTraceHandler(h slog.Handler) *TraceHandler {
	return &TraceHandler{base: h}
}

// Enabled implements the [slog.Handler] interface.
func (h *TraceHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.base.Enabled(ctx, lvl)
}

// Handle implements the [slog.Handler] interface.
func (h *TraceHandler) Handle(ctx context.Context, record slog.Record) error {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return h.base.Handle(ctx, record)
	}

	r := record.Clone()
	r.AddAttrs(
		slog.Group(
			"otel",
			slog.String("trace_id", spanCtx.TraceID().String()),
			slog.String("span_id", spanCtx.SpanID().String()),
		),
	)
	return h.base.Handle(ctx, r)
}

// WithAttrs implements the [slog.Handler] interface.
func (h *TraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewTraceHandler(h.base.WithAttrs(attrs))
}

// WithGroup implements the [slog.Handler] interface.
func (h *TraceHandler) WithGroup(name string) slog.Handler {
	return NewTraceHandler(h.base.WithGroup(name))
}

// NoopHandler discards every record.
type NoopHandler struct{}

func (NoopHandler) Enabled(_ context.Context, _ slog.Level) bool  { return false }
func (NoopHandler) Handle(_ context.Context, _ slog.Record) error { return nil }
func (h NoopHandler) WithAttrs(_ []slog.Attr) slog.Handler        { return h }
func (h NoopHandler) WithGroup(_ string) slog.Handler             { return h }

// Error returns an slog.Attr for an error.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

// Pid returns an slog.Attr for a process id.
func Pid(pid int) slog.Attr {
	return slog.Int("pid", pid)
}

// Signal returns an slog.Attr for a signal name.
func Signal(sig syscall.Signal) slog.Attr {
	return slog.String("signal", sig.String())
}

// Duration returns an slog.Attr for a time.Duration.
func Duration(key string, d time.Duration) slog.Attr {
	return slog.Duration(key, d)
}
