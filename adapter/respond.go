// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"

	"github.com/z5labs/fnrun/fn"
	"github.com/z5labs/fnrun/internal/logging"
)

const (
	contentTypeJSON   = "application/json; charset=utf-8"
	contentTypeText   = "text/plain; charset=utf-8"
	contentTypeBinary = "application/octet-stream"
)

func (a *Adapter) respond(ctx context.Context, w http.ResponseWriter, event *fn.Event, o fn.Outcome) {
	if o.Failed() {
		a.fail(ctx, w, event, o.Status, o.Err)
		return
	}

	var (
		body        []byte
		stream      io.Reader
		contentType string
	)
	switch v := o.Value.(type) {
	case nil:
	case string:
		body, contentType = []byte(v), contentTypeText
	case []byte:
		body, contentType = v, contentTypeBinary
	case io.Reader:
		stream, contentType = v, contentTypeBinary
	default:
		if !isStructured(v) {
			body, contentType = []byte(scalarText(v)), contentTypeText
			break
		}

		b, err := encodeJSON(v)
		if err != nil {
			a.fail(ctx, w, event, o.Status, err)
			return
		}
		body, contentType = b, contentTypeJSON
	}

	header := w.Header()
	for k, v := range o.Headers {
		header.Set(k, v)
	}
	if contentType != "" && header.Get("Content-Type") == "" {
		header.Set("Content-Type", contentType)
	}
	w.WriteHeader(a.statusOf(ctx, o.Status, http.StatusOK))

	if stream != nil {
		if c, ok := stream.(io.Closer); ok {
			defer c.Close()
		}
		_, err := io.Copy(w, stream)
		if err != nil {
			a.log.ErrorContext(ctx, "failed to stream response body", slog.String("path", event.Path), logging.Error(err))
		}
		return
	}
	w.Write(body)
}

// fail writes err as plain text. Headers set through the context are
// not applied and a status still at 200 becomes 500.
func (a *Adapter) fail(ctx context.Context, w http.ResponseWriter, event *fn.Event, status int, err error) {
	a.log.ErrorContext(
		ctx,
		"function failed",
		slog.String("method", event.Method),
		slog.String("path", event.Path),
		logging.Error(err),
	)

	if status == http.StatusOK {
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", contentTypeText)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(a.statusOf(ctx, status, http.StatusInternalServerError))
	io.WriteString(w, err.Error())
}

// encodeJSON encodes v without escaping HTML characters and without
// the trailing newline added by [json.Encoder].
func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	err := enc.Encode(v)
	if err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// statusOf replaces codes net/http would panic on.
func (a *Adapter) statusOf(ctx context.Context, code, fallback int) int {
	if code >= 100 && code <= 999 {
		return code
	}
	a.log.WarnContext(ctx, "function set an invalid status code", slog.Int("status", code))
	return fallback
}

// isStructured reports whether v should be sent as JSON.
func isStructured(v any) bool {
	if _, ok := v.(json.Marshaler); ok {
		return true
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return true
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map, reflect.Struct, reflect.Array:
		return true
	case reflect.Slice:
		return rv.Type().Elem().Kind() != reflect.Uint8
	default:
		return false
	}
}

func scalarText(v any) string {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	return fmt.Sprint(rv.Interface())
}
