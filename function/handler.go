// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package function holds the handler served by fnrun. Replace Handler
// with your own business logic.
package function

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/z5labs/fnrun/fn"
)

// Handler echoes the request body, JSON encoded, along with its content type.
var Handler fn.Handler = fn.HandlerFunc(echo)

func echo(ctx context.Context, event *fn.Event, fc *fn.Context, cb fn.Callback) (any, error) {
	body, err := stringify(event.Body)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"body":         body,
		"content-type": event.Headers["content-type"],
	}, nil
}

// stringify encodes v without escaping HTML characters.
func stringify(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	err := enc.Encode(v)
	if err != nil {
		return "", err
	}
	return string(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}
