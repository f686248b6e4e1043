// Package adapter converts platform-agnostic, fetch-style functions into the
// request/response signature the dev server invokes.
package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Response is what a fetch-style function returns.
type Response struct {
	// Status defaults to 200 when zero.
	Status int
	Header http.Header
	Body   io.Reader
}

// Fetch is the platform-agnostic function signature: take a request, return
// a response.
type Fetch func(ctx context.Context, req *http.Request) (*Response, error)

// Handler is the signature the dev server invokes. A returned error means
// the invocation failed.
type Handler func(w http.ResponseWriter, r *http.Request) error

// Wrap adapts a Fetch function into a Handler. A nil response with a nil
// error is written as 204 No Content.
func Wrap(fn Fetch) Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		res, err := fn(r.Context(), r)
		if err != nil {
			return err
		}
		if res == nil {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}
		if c, ok := res.Body.(io.Closer); ok {
			defer c.Close()
		}

		for k, vs := range res.Header {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
		status := res.Status
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		if res.Body == nil {
			return nil
		}
		if _, err := io.Copy(w, res.Body); err != nil {
			return fmt.Errorf("writing response body: %w", err)
		}
		return nil
	}
}

// Lift turns a net/http handler into a Handler that never reports an error.
func Lift(h http.Handler) Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		h.ServeHTTP(w, r)
		return nil
	}
}

// Text builds a plain text response.
func Text(status int, body string) *Response {
	return &Response{
		Status: status,
		Header: http.Header{"Content-Type": []string{"text/plain; charset=utf-8"}},
		Body:   strings.NewReader(body),
	}
}

// JSON builds a JSON response.
func JSON(status int, v any) (*Response, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &Response{
		Status: status,
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   bytes.NewReader(b),
	}, nil
}
