// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package adapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/dustin/go-humanize"
)

type limits struct {
	raw  int64
	json int64
	text int64
	form int64
}

type bodyParser struct {
	limits limits
	raw    bool
}

// PayloadTooLargeError is returned when a body exceeds its configured limit.
type PayloadTooLargeError struct {
	Limit int64
}

// Error implements the [error] interface.
func (e PayloadTooLargeError) Error() string {
	return fmt.Sprintf("request entity too large: limit is %s", humanize.IBytes(uint64(e.Limit)))
}

// ServeHTTP implements the [http.Handler] interface.
func (e PayloadTooLargeError) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	http.Error(w, e.Error(), http.StatusRequestEntityTooLarge)
}

// InvalidJSONError is returned for a JSON body which cannot be decoded
// or whose top level value is not an object or array.
type InvalidJSONError struct {
	Cause error
}

// Error implements the [error] interface.
func (e InvalidJSONError) Error() string {
	return fmt.Sprintf("invalid json body: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e InvalidJSONError) Unwrap() error {
	return e.Cause
}

// ServeHTTP implements the [http.Handler] interface.
func (e InvalidJSONError) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	http.Error(w, e.Error(), http.StatusBadRequest)
}

// InvalidFormError is returned for a url encoded body which cannot be decoded.
type InvalidFormError struct {
	Cause error
}

// Error implements the [error] interface.
func (e InvalidFormError) Error() string {
	return fmt.Sprintf("invalid form body: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e InvalidFormError) Unwrap() error {
	return e.Cause
}

// ServeHTTP implements the [http.Handler] interface.
func (e InvalidFormError) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	http.Error(w, e.Error(), http.StatusBadRequest)
}

// UnsupportedMediaTypeError is returned when the Content-Type header cannot be parsed.
type UnsupportedMediaTypeError struct {
	ContentType string
}

// Error implements the [error] interface.
func (e UnsupportedMediaTypeError) Error() string {
	return fmt.Sprintf("unsupported content type: %s", e.ContentType)
}

// ServeHTTP implements the [http.Handler] interface.
func (e UnsupportedMediaTypeError) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	http.Error(w, e.Error(), http.StatusUnsupportedMediaType)
}

var errNotContainer = errors.New("top level value must be an object or array")

func hasBody(r *http.Request) bool {
	return len(r.TransferEncoding) > 0 || r.ContentLength > 0 || r.Header.Get("Content-Length") != ""
}

func (p bodyParser) parse(w http.ResponseWriter, r *http.Request) (any, error) {
	empty := make(map[string]any)
	if !hasBody(r) {
		return empty, nil
	}

	contentType := r.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, UnsupportedMediaTypeError{ContentType: contentType}
	}

	switch {
	case p.raw:
		return readBody(w, r, p.limits.raw)
	case strings.HasPrefix(mediaType, "text/"):
		b, err := readBody(w, r, p.limits.text)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case mediaType == "application/json":
		b, err := readBody(w, r, p.limits.json)
		if err != nil {
			return nil, err
		}
		return decodeJSON(b)
	case mediaType == "application/x-www-form-urlencoded":
		b, err := readBody(w, r, p.limits.form)
		if err != nil {
			return nil, err
		}
		values, err := url.ParseQuery(string(b))
		if err != nil {
			return nil, InvalidFormError{Cause: err}
		}
		return decodeValues(values), nil
	default:
		return empty, nil
	}
}

func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	if r.ContentLength > limit {
		return nil, PayloadTooLargeError{Limit: limit}
	}

	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return nil, PayloadTooLargeError{Limit: maxErr.Limit}
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// decodeJSON only accepts objects and arrays. An empty body decodes
// to an empty object.
func decodeJSON(b []byte) (any, error) {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 {
		return make(map[string]any), nil
	}
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return nil, InvalidJSONError{Cause: errNotContainer}
	}

	var v any
	err := json.Unmarshal(trimmed, &v)
	if err != nil {
		return nil, InvalidJSONError{Cause: err}
	}
	return v, nil
}
