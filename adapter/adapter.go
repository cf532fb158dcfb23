// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package adapter turns HTTP requests into [fn.Handler] invocations
// and their outcomes back into HTTP responses.
package adapter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/z5labs/fnrun/fn"
	"github.com/z5labs/fnrun/http/httpvalidate"
	"github.com/z5labs/fnrun/internal/logging"
	"github.com/z5labs/fnrun/internal/try"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxSize is the body limit used when none is configured.
const DefaultMaxSize = 100 * 1024

// Methods lists the methods routed to the function. HEAD is served by
// the GET route and has its body discarded by net/http.
var Methods = []string{
	http.MethodPost,
	http.MethodGet,
	http.MethodHead,
	http.MethodPatch,
	http.MethodPut,
	http.MethodDelete,
	http.MethodOptions,
}

// StaticExtensions are answered with 404 without invoking the function.
var StaticExtensions = []string{
	".css", ".js", ".png", ".jpg", ".jpeg", ".gif", ".ico",
	".svg", ".woff", ".woff2", ".ttf", ".eot",
}

type options struct {
	logHandler slog.Handler
	limits     limits
	rawBody    bool
}

// Option
type Option func(*options)

// LogHandler
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = h
	}
}

// RawBody passes every request body to the function as []byte,
// regardless of its content type.
func RawBody(enabled bool) Option {
	return func(o *options) {
		o.rawBody = enabled
	}
}

// MaxRawSize limits bodies read in raw mode. Zero keeps the default.
func MaxRawSize(n int64) Option {
	return func(o *options) {
		setLimit(&o.limits.raw, n)
	}
}

// MaxJSONSize limits application/json bodies. Zero keeps the default.
func MaxJSONSize(n int64) Option {
	return func(o *options) {
		setLimit(&o.limits.json, n)
	}
}

// MaxTextSize limits text/* bodies. Zero keeps the default.
func MaxTextSize(n int64) Option {
	return func(o *options) {
		setLimit(&o.limits.text, n)
	}
}

// MaxFormSize limits url encoded form bodies. Zero keeps the default.
func MaxFormSize(n int64) Option {
	return func(o *options) {
		setLimit(&o.limits.form, n)
	}
}

func setLimit(dst *int64, n int64) {
	if n > 0 {
		*dst = n
	}
}

// Adapter is an [http.Handler] invoking a [fn.Handler] once per request.
type Adapter struct {
	fn      fn.Handler
	log     *slog.Logger
	tracer  trace.Tracer
	parser  bodyParser
	handler http.Handler
}

// New returns an Adapter for h.
func New(h fn.Handler, opts ...Option) *Adapter {
	o := &options{
		logHandler: logging.NoopHandler{},
		limits: limits{
			raw:  DefaultMaxSize,
			json: DefaultMaxSize,
			text: DefaultMaxSize,
			form: DefaultMaxSize,
		},
	}
	for _, opt := range opts {
		opt(o)
	}

	a := &Adapter{
		fn:     h,
		log:    slog.New(o.logHandler),
		tracer: otel.Tracer("github.com/z5labs/fnrun/adapter"),
		parser: bodyParser{limits: o.limits, raw: o.rawBody},
	}
	a.handler = httpvalidate.Request(
		http.HandlerFunc(a.serve),
		httpvalidate.RejectPathExtensions(StaticExtensions...),
		httpvalidate.ForMethods(Methods...),
	)
	return a
}

// ServeHTTP implements the [http.Handler] interface.
func (a *Adapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

func (a *Adapter) serve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Header.Get("Content-Type") == "" {
		r.Header.Set("Content-Type", "text/plain")
	}

	body, err := a.parser.parse(w, r)
	if err != nil {
		a.log.WarnContext(
			ctx,
			"failed to parse request body",
			slog.String("path", r.URL.Path),
			logging.Error(err),
		)

		var h http.Handler
		if errors.As(err, &h) {
			h.ServeHTTP(w, r)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	event := &fn.Event{
		Body:    body,
		Headers: flattenHeaders(r),
		Method:  r.Method,
		Query:   decodeValues(r.URL.Query()),
		Path:    r.URL.Path,
	}
	fc := fn.NewContext()

	spanCtx, span := a.tracer.Start(ctx, "fn.invoke", trace.WithAttributes(
		attribute.String("fn.method", event.Method),
		attribute.String("fn.path", event.Path),
	))
	defer span.End()

	go a.invoke(spanCtx, event, fc)

	select {
	case <-ctx.Done():
		a.log.WarnContext(
			spanCtx,
			"request cancelled before the function completed",
			slog.String("path", event.Path),
			logging.Error(ctx.Err()),
		)
		span.SetStatus(codes.Error, "cancelled")
		return
	case <-fc.Done():
	}

	outcome, _ := fc.Outcome()
	if outcome.Failed() {
		span.RecordError(outcome.Err)
		span.SetStatus(codes.Error, outcome.Err.Error())
	}
	a.respond(spanCtx, w, event, outcome)
}

// invoke runs the function and settles fc with whatever it produces,
// unless the function already completed through its callback.
func (a *Adapter) invoke(ctx context.Context, event *fn.Event, fc *fn.Context) {
	var value any
	err := try.Call(func() (err error) {
		value, err = a.fn.Handle(ctx, event, fc, fc.Callback())
		return err
	})
	if err != nil {
		fc.Settle(fn.Outcome{Err: err})
		return
	}

	d, ok := value.(fn.Deferred)
	if !ok {
		fc.Settle(fn.Outcome{Value: value})
		return
	}

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-fc.Done():
			cancel()
		case <-waitCtx.Done():
		}
	}()

	err = try.Call(func() (err error) {
		value, err = d.Await(waitCtx)
		return err
	})
	if err != nil {
		fc.Settle(fn.Outcome{Err: err})
		return
	}
	fc.Settle(fn.Outcome{Value: value})
}

func flattenHeaders(r *http.Request) map[string]string {
	headers := make(map[string]string, len(r.Header)+1)
	for name, values := range r.Header {
		headers[strings.ToLower(name)] = strings.Join(values, ", ")
	}
	if r.Host != "" {
		headers["host"] = r.Host
	}
	return headers
}
