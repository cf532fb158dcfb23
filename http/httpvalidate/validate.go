// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package httpvalidate rejects requests before they reach a handler.
package httpvalidate

import (
	"net/http"
	"strings"
)

// Validator represents an http.Request validator. A Validator which
// returns false must have already written the response.
type Validator interface {
	Validate(http.ResponseWriter, *http.Request) bool
}

// ValidatorFunc implements Validator for funcs.
type ValidatorFunc func(http.ResponseWriter, *http.Request) bool

// Validate implements the Validator interface.
func (f ValidatorFunc) Validate(w http.ResponseWriter, r *http.Request) bool {
	return f(w, r)
}

// Handler is an http.Handler which applies request validators
// before passing the request to a wrapped http.Handler.
type Handler struct {
	validators []Validator
	base       http.Handler
}

// Request allows you to wrap a given http.Handler with request validators.
// Validators run in the order given and the first failure wins.
func Request(h http.Handler, validators ...Validator) *Handler {
	return &Handler{
		validators: validators,
		base:       h,
	}
}

// ServeHTTP implements the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	for _, validator := range h.validators {
		valid := validator.Validate(w, req)
		if !valid {
			return
		}
	}
	h.base.ServeHTTP(w, req)
}

// ForMethods will validate the incoming requests' method is one of the given.
// Other methods get a 405 listing the allowed ones.
func ForMethods(methods ...string) Validator {
	allow := strings.Join(methods, ", ")
	return ValidatorFunc(func(w http.ResponseWriter, r *http.Request) bool {
		for _, method := range methods {
			if method == r.Method {
				return true
			}
		}
		w.Header().Set("Allow", allow)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	})
}

// RejectPathExtensions responds 404 "Not found" to any request whose
// path ends in one of exts. Matching ignores case.
func RejectPathExtensions(exts ...string) Validator {
	lowered := make([]string, len(exts))
	for i, ext := range exts {
		lowered[i] = strings.ToLower(ext)
	}
	return ValidatorFunc(func(w http.ResponseWriter, r *http.Request) bool {
		path := strings.ToLower(r.URL.Path)
		for _, ext := range lowered {
			if strings.HasSuffix(path, ext) {
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte("Not found"))
				return false
			}
		}
		return true
	})
}
