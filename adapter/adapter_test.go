// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/z5labs/fnrun/fn"

	"github.com/stretchr/testify/assert"
)

func serve(h http.Handler, r *http.Request) *http.Response {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w.Result()
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	assert.Nil(t, err)
	return string(b)
}

func capture(event **fn.Event, value any) fn.HandlerFunc {
	return func(ctx context.Context, e *fn.Event, fc *fn.Context, cb fn.Callback) (any, error) {
		*event = e
		return value, nil
	}
}

func TestAdapter_StaticResources(t *testing.T) {
	t.Run("will respond 404 without invoking the function", func(t *testing.T) {
		for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodDelete} {
			for _, path := range []string{"/favicon.ico", "/styles/site.css", "/img/LOGO.PNG"} {
				t.Run("if the request is "+method+" "+path, func(t *testing.T) {
					invoked := false
					a := New(fn.HandlerFunc(func(ctx context.Context, e *fn.Event, fc *fn.Context, cb fn.Callback) (any, error) {
						invoked = true
						return "hello", nil
					}))

					resp := serve(a, httptest.NewRequest(method, path, nil))
					if !assert.Equal(t, http.StatusNotFound, resp.StatusCode) {
						return
					}
					if !assert.Equal(t, "Not found", readAll(t, resp)) {
						return
					}
					if !assert.False(t, invoked) {
						return
					}
				})
			}
		}
	})
}

func TestAdapter_Methods(t *testing.T) {
	t.Run("will respond 405", func(t *testing.T) {
		t.Run("if the method is not routed", func(t *testing.T) {
			a := New(fn.HandlerFunc(func(ctx context.Context, e *fn.Event, fc *fn.Context, cb fn.Callback) (any, error) {
				return "hello", nil
			}))

			resp := serve(a, httptest.NewRequest(http.MethodTrace, "/", nil))
			if !assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode) {
				return
			}
		})
	})

	t.Run("will invoke the function", func(t *testing.T) {
		for _, method := range []string{http.MethodPost, http.MethodGet, http.MethodPatch, http.MethodPut, http.MethodDelete, http.MethodOptions} {
			t.Run("if the method is "+method, func(t *testing.T) {
				var event *fn.Event
				a := New(capture(&event, "ok"))

				resp := serve(a, httptest.NewRequest(method, "/any/path", nil))
				if !assert.Equal(t, http.StatusOK, resp.StatusCode) {
					return
				}
				if !assert.Equal(t, method, event.Method) {
					return
				}
				if !assert.Equal(t, "/any/path", event.Path) {
					return
				}
			})
		}
	})
}

func TestAdapter_Event(t *testing.T) {
	t.Run("will default the content type to text/plain", func(t *testing.T) {
		t.Run("if the request has no content type", func(t *testing.T) {
			var event *fn.Event
			a := New(capture(&event, nil))

			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("hello"))
			r.Header.Del("Content-Type")

			serve(a, r)
			if !assert.Equal(t, "text/plain", event.Headers["content-type"]) {
				return
			}
			if !assert.Equal(t, "hello", event.Body) {
				return
			}
		})
	})

	t.Run("will use an empty object as the body", func(t *testing.T) {
		t.Run("if the request has no body", func(t *testing.T) {
			var event *fn.Event
			a := New(capture(&event, nil))

			serve(a, httptest.NewRequest(http.MethodGet, "/", nil))
			if !assert.Equal(t, map[string]any{}, event.Body) {
				return
			}
		})

		t.Run("if the content type has no parser", func(t *testing.T) {
			var event *fn.Event
			a := New(capture(&event, nil))

			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("<x/>"))
			r.Header.Set("Content-Type", "application/xml")

			serve(a, r)
			if !assert.Equal(t, map[string]any{}, event.Body) {
				return
			}
		})

		t.Run("if a JSON body is empty", func(t *testing.T) {
			var event *fn.Event
			a := New(capture(&event, nil))

			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
			r.Header.Set("Content-Type", "application/json")
			r.Header.Set("Content-Length", "0")

			serve(a, r)
			if !assert.Equal(t, map[string]any{}, event.Body) {
				return
			}
		})
	})

	t.Run("will decode the body", func(t *testing.T) {
		t.Run("if it is JSON", func(t *testing.T) {
			var event *fn.Event
			a := New(capture(&event, nil))

			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"message":"Hello World","n":[1,2]}`))
			r.Header.Set("Content-Type", "application/json; charset=utf-8")

			serve(a, r)
			expected := map[string]any{
				"message": "Hello World",
				"n":       []any{float64(1), float64(2)},
			}
			if !assert.Equal(t, expected, event.Body) {
				return
			}
		})

		t.Run("if it is a url encoded form", func(t *testing.T) {
			var event *fn.Event
			a := New(capture(&event, nil))

			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("name=fn&user[id]=7&tag=a&tag=b"))
			r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

			serve(a, r)
			expected := map[string]any{
				"name": "fn",
				"user": map[string]any{"id": "7"},
				"tag":  []string{"a", "b"},
			}
			if !assert.Equal(t, expected, event.Body) {
				return
			}
		})

		t.Run("if raw mode is enabled", func(t *testing.T) {
			var event *fn.Event
			a := New(capture(&event, nil), RawBody(true))

			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":1}`))
			r.Header.Set("Content-Type", "application/json")

			serve(a, r)
			if !assert.Equal(t, []byte(`{"a":1}`), event.Body) {
				return
			}
		})
	})

	t.Run("will flatten headers and decode the query", func(t *testing.T) {
		t.Run("if the request has repeated headers and query values", func(t *testing.T) {
			var event *fn.Event
			a := New(capture(&event, nil))

			r := httptest.NewRequest(http.MethodGet, "/items?id=1&id=2&filter[kind]=fn&q=x", nil)
			r.Header.Add("X-Trace", "a")
			r.Header.Add("X-Trace", "b")

			serve(a, r)
			if !assert.Equal(t, "a, b", event.Headers["x-trace"]) {
				return
			}
			if !assert.Equal(t, "example.com", event.Headers["host"]) {
				return
			}
			expected := map[string]any{
				"id":     []string{"1", "2"},
				"filter": map[string]any{"kind": "fn"},
				"q":      "x",
			}
			if !assert.Equal(t, expected, event.Query) {
				return
			}
		})
	})
}

func TestAdapter_BodyErrors(t *testing.T) {
	t.Run("will respond 413", func(t *testing.T) {
		t.Run("if a JSON body exceeds the limit", func(t *testing.T) {
			invoked := false
			a := New(fn.HandlerFunc(func(ctx context.Context, e *fn.Event, fc *fn.Context, cb fn.Callback) (any, error) {
				invoked = true
				return nil, nil
			}), MaxJSONSize(8))

			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"message":"too long"}`))
			r.Header.Set("Content-Type", "application/json")

			resp := serve(a, r)
			if !assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode) {
				return
			}
			if !assert.False(t, invoked) {
				return
			}
		})

		t.Run("if a raw body exceeds the limit without a content length", func(t *testing.T) {
			a := New(fn.HandlerFunc(func(ctx context.Context, e *fn.Event, fc *fn.Context, cb fn.Callback) (any, error) {
				return nil, nil
			}), RawBody(true), MaxRawSize(4))

			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789"))
			r.ContentLength = -1
			r.TransferEncoding = []string{"chunked"}

			resp := serve(a, r)
			if !assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode) {
				return
			}
		})
	})

	t.Run("will respond 400", func(t *testing.T) {
		for name, body := range map[string]string{
			"malformed":     `{"message":`,
			"a bare string": `"hello"`,
			"a bare number": `42`,
		} {
			t.Run("if the JSON body is "+name, func(t *testing.T) {
				a := New(fn.HandlerFunc(func(ctx context.Context, e *fn.Event, fc *fn.Context, cb fn.Callback) (any, error) {
					return nil, nil
				}))

				r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
				r.Header.Set("Content-Type", "application/json")

				resp := serve(a, r)
				if !assert.Equal(t, http.StatusBadRequest, resp.StatusCode) {
					return
				}
			})
		}
	})
}

type echoResponse struct {
	Body        string `json:"body"`
	ContentType string `json:"content-type"`
}

func TestAdapter_Response(t *testing.T) {
	t.Run("will respond with the JSON encoded value", func(t *testing.T) {
		t.Run("if the function echoes a JSON event", func(t *testing.T) {
			a := New(fn.HandlerFunc(func(ctx context.Context, e *fn.Event, fc *fn.Context, cb fn.Callback) (any, error) {
				b, err := json.Marshal(e.Body)
				if err != nil {
					return nil, err
				}
				return map[string]any{
					"body":         string(b),
					"content-type": e.Headers["content-type"],
				}, nil
			}))

			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"message":"Hello World"}`))
			r.Header.Set("Content-Type", "application/json")

			resp := serve(a, r)
			if !assert.Equal(t, http.StatusOK, resp.StatusCode) {
				return
			}
			if !assert.Equal(t, contentTypeJSON, resp.Header.Get("Content-Type")) {
				return
			}

			var got echoResponse
			err := json.NewDecoder(resp.Body).Decode(&got)
			if !assert.Nil(t, err) {
				return
			}
			expected := echoResponse{
				Body:        `{"message":"Hello World"}`,
				ContentType: "application/json",
			}
			if !assert.Equal(t, expected, got) {
				return
			}
		})

		t.Run("if the value is a slice of structs", func(t *testing.T) {
			a := New(capture(new(*fn.Event), []echoResponse{{Body: "a"}}))

			resp := serve(a, httptest.NewRequest(http.MethodGet, "/", nil))
			if !assert.JSONEq(t, `[{"body":"a","content-type":""}]`, readAll(t, resp)) {
				return
			}
		})

		t.Run("if the value contains HTML characters", func(t *testing.T) {
			a := New(capture(new(*fn.Event), map[string]string{"html": "<b>&</b>"}))

			resp := serve(a, httptest.NewRequest(http.MethodGet, "/", nil))
			if !assert.Equal(t, `{"html":"<b>&</b>"}`, readAll(t, resp)) {
				return
			}
		})
	})

	t.Run("will respond with the value unmodified", func(t *testing.T) {
		testCases := []struct {
			Name        string
			Value       any
			Body        string
			ContentType string
		}{
			{Name: "a string", Value: "hello", Body: "hello", ContentType: contentTypeText},
			{Name: "bytes", Value: []byte{0x01, 0x02}, Body: "\x01\x02", ContentType: contentTypeBinary},
			{Name: "a reader", Value: strings.NewReader("streamed"), Body: "streamed", ContentType: contentTypeBinary},
			{Name: "a number", Value: 42, Body: "42", ContentType: contentTypeText},
			{Name: "a bool", Value: true, Body: "true", ContentType: contentTypeText},
			{Name: "nil", Value: nil, Body: "", ContentType: ""},
		}

		for _, testCase := range testCases {
			t.Run("if the value is "+testCase.Name, func(t *testing.T) {
				a := New(capture(new(*fn.Event), testCase.Value))

				resp := serve(a, httptest.NewRequest(http.MethodGet, "/", nil))
				if !assert.Equal(t, http.StatusOK, resp.StatusCode) {
					return
				}
				if !assert.Equal(t, testCase.Body, readAll(t, resp)) {
					return
				}
				if !assert.Equal(t, testCase.ContentType, resp.Header.Get("Content-Type")) {
					return
				}
			})
		}
	})

	t.Run("will apply the context status and headers", func(t *testing.T) {
		t.Run("if the function succeeds", func(t *testing.T) {
			a := New(fn.HandlerFunc(func(ctx context.Context, e *fn.Event, fc *fn.Context, cb fn.Callback) (any, error) {
				fc.SetStatus(http.StatusCreated).SetHeaders(map[string]string{
					"Content-Type": "text/csv",
					"X-Fn":         "yes",
				})
				return "a,b", nil
			}))

			resp := serve(a, httptest.NewRequest(http.MethodPost, "/", nil))
			if !assert.Equal(t, http.StatusCreated, resp.StatusCode) {
				return
			}
			if !assert.Equal(t, "text/csv", resp.Header.Get("Content-Type")) {
				return
			}
			if !assert.Equal(t, "yes", resp.Header.Get("X-Fn")) {
				return
			}
		})
	})
}

func TestAdapter_Failure(t *testing.T) {
	t.Run("will respond 500 with the error string", func(t *testing.T) {
		t.Run("if the function returns an error", func(t *testing.T) {
			a := New(fn.HandlerFunc(func(ctx context.Context, e *fn.Event, fc *fn.Context, cb fn.Callback) (any, error) {
				fc.SetHeader("X-Fn", "yes")
				return nil, errors.New("boom")
			}))

			resp := serve(a, httptest.NewRequest(http.MethodPost, "/", nil))
			if !assert.Equal(t, http.StatusInternalServerError, resp.StatusCode) {
				return
			}
			if !assert.Equal(t, "boom", readAll(t, resp)) {
				return
			}
			if !assert.Empty(t, resp.Header.Get("X-Fn")) {
				return
			}
		})

		t.Run("if the function panics", func(t *testing.T) {
			a := New(fn.HandlerFunc(func(ctx context.Context, e *fn.Event, fc *fn.Context, cb fn.Callback) (any, error) {
				panic("boom")
			}))

			resp := serve(a, httptest.NewRequest(http.MethodPost, "/", nil))
			if !assert.Equal(t, http.StatusInternalServerError, resp.StatusCode) {
				return
			}
			if !assert.Contains(t, readAll(t, resp), "boom") {
				return
			}
		})

		t.Run("if the deferred value is rejected", func(t *testing.T) {
			a := New(fn.HandlerFunc(func(ctx context.Context, e *fn.Event, fc *fn.Context, cb fn.Callback) (any, error) {
				return fn.Defer(ctx, func(ctx context.Context) (any, error) {
					time.Sleep(10 * time.Millisecond)
					return nil, errors.New("rejected")
				}), nil
			}))

			resp := serve(a, httptest.NewRequest(http.MethodPost, "/", nil))
			if !assert.Equal(t, http.StatusInternalServerError, resp.StatusCode) {
				return
			}
			if !assert.Equal(t, "rejected", readAll(t, resp)) {
				return
			}
		})

		t.Run("if the value cannot be JSON encoded", func(t *testing.T) {
			a := New(capture(new(*fn.Event), map[string]any{"ch": make(chan int)}))

			resp := serve(a, httptest.NewRequest(http.MethodGet, "/", nil))
			if !assert.Equal(t, http.StatusInternalServerError, resp.StatusCode) {
				return
			}
		})
	})

	t.Run("will keep an explicitly set status", func(t *testing.T) {
		t.Run("if the function fails", func(t *testing.T) {
			a := New(fn.HandlerFunc(func(ctx context.Context, e *fn.Event, fc *fn.Context, cb fn.Callback) (any, error) {
				fc.SetStatus(http.StatusTeapot)
				return nil, errors.New("short and stout")
			}))

			resp := serve(a, httptest.NewRequest(http.MethodPost, "/", nil))
			if !assert.Equal(t, http.StatusTeapot, resp.StatusCode) {
				return
			}
		})
	})
}

func TestAdapter_Completion(t *testing.T) {
	t.Run("will ignore the returned value", func(t *testing.T) {
		t.Run("if the callback was invoked first", func(t *testing.T) {
			a := New(fn.HandlerFunc(func(ctx context.Context, e *fn.Event, fc *fn.Context, cb fn.Callback) (any, error) {
				cb(nil, "from callback")
				return "from return", nil
			}))

			resp := serve(a, httptest.NewRequest(http.MethodPost, "/", nil))
			if !assert.Equal(t, "from callback", readAll(t, resp)) {
				return
			}
		})

		t.Run("if fail was called before a deferred value resolves", func(t *testing.T) {
			a := New(fn.HandlerFunc(func(ctx context.Context, e *fn.Event, fc *fn.Context, cb fn.Callback) (any, error) {
				fc.Fail(errors.New("failed first"))
				return fn.Resolve("late", nil), nil
			}))

			resp := serve(a, httptest.NewRequest(http.MethodPost, "/", nil))
			if !assert.Equal(t, http.StatusInternalServerError, resp.StatusCode) {
				return
			}
			if !assert.Equal(t, "failed first", readAll(t, resp)) {
				return
			}
		})
	})

	t.Run("will ignore later completions", func(t *testing.T) {
		t.Run("if succeed is called after the response is decided", func(t *testing.T) {
			var fc *fn.Context
			a := New(fn.HandlerFunc(func(ctx context.Context, e *fn.Event, c *fn.Context, cb fn.Callback) (any, error) {
				fc = c
				c.Succeed("first")
				c.Fail(errors.New("second"))
				c.Succeed("third")
				return nil, nil
			}))

			resp := serve(a, httptest.NewRequest(http.MethodPost, "/", nil))
			if !assert.Equal(t, "first", readAll(t, resp)) {
				return
			}
			if !assert.Eventually(t, func() bool { return fc.Calls() == 3 }, time.Second, 5*time.Millisecond) {
				return
			}
		})

		t.Run("if fail is called after succeed", func(t *testing.T) {
			a := New(fn.HandlerFunc(func(ctx context.Context, e *fn.Event, fc *fn.Context, cb fn.Callback) (any, error) {
				fc.Succeed("ok")
				fc.Fail(errors.New("late"))
				fc.SetHeader("X-Late", "1")
				return fn.Pending, nil
			}))

			resp := serve(a, httptest.NewRequest(http.MethodPost, "/", nil))
			if !assert.Equal(t, http.StatusOK, resp.StatusCode) {
				return
			}
			if !assert.Empty(t, resp.Header.Get("X-Late")) {
				return
			}
			if !assert.Equal(t, "ok", readAll(t, resp)) {
				return
			}
		})
	})

	t.Run("will use the deferred value", func(t *testing.T) {
		t.Run("if it resolves before the callback is invoked", func(t *testing.T) {
			a := New(fn.HandlerFunc(func(ctx context.Context, e *fn.Event, fc *fn.Context, cb fn.Callback) (any, error) {
				return fn.Defer(ctx, func(ctx context.Context) (any, error) {
					return map[string]string{"status": "ok"}, nil
				}), nil
			}))

			resp := serve(a, httptest.NewRequest(http.MethodPost, "/", nil))
			if !assert.JSONEq(t, `{"status":"ok"}`, readAll(t, resp)) {
				return
			}
		})
	})

	t.Run("will wait for the callback", func(t *testing.T) {
		t.Run("if the function returns Pending", func(t *testing.T) {
			a := New(fn.HandlerFunc(func(ctx context.Context, e *fn.Event, fc *fn.Context, cb fn.Callback) (any, error) {
				go func() {
					time.Sleep(10 * time.Millisecond)
					cb(nil, "async")
				}()
				return fn.Pending, nil
			}))

			resp := serve(a, httptest.NewRequest(http.MethodPost, "/", nil))
			if !assert.Equal(t, "async", readAll(t, resp)) {
				return
			}
		})
	})

	t.Run("will not write a response", func(t *testing.T) {
		t.Run("if the request is cancelled before the function completes", func(t *testing.T) {
			a := New(fn.HandlerFunc(func(ctx context.Context, e *fn.Event, fc *fn.Context, cb fn.Callback) (any, error) {
				return fn.Pending, nil
			}))

			ctx, cancel := context.WithCancel(context.Background())
			r := httptest.NewRequest(http.MethodPost, "/", nil).WithContext(ctx)
			time.AfterFunc(10*time.Millisecond, cancel)

			w := httptest.NewRecorder()
			a.ServeHTTP(w, r)
			if !assert.False(t, w.Flushed) {
				return
			}
			if !assert.Empty(t, w.Body.String()) {
				return
			}
		})
	})
}
