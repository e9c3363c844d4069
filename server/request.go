package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// RequestContext is an immutable snapshot of an inbound HTTP request. The
// body is captured once at construction so authentication logic can hash it
// and handlers can still parse it; RawBody never consumes anything.
//
// RequestContext satisfies auth.Request.
type RequestContext struct {
	method string
	path   string
	header http.Header
	query  url.Values
	params map[string]any
	body   []byte
}

// NewRequestContext captures the request's method, path, headers, query and
// body. A JSON object body is decoded into named params; body params shadow
// query params of the same name. Non-JSON bodies are kept raw only.
func NewRequestContext(r *http.Request) (*RequestContext, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}

	params := make(map[string]any)
	for name, values := range r.URL.Query() {
		if len(values) > 0 {
			params[name] = values[0]
		}
	}
	if len(body) > 0 {
		var decoded map[string]any
		if err := json.Unmarshal(body, &decoded); err == nil {
			for name, value := range decoded {
				params[name] = value
			}
		}
	}

	return &RequestContext{
		method: r.Method,
		path:   r.URL.Path,
		header: r.Header.Clone(),
		query:  r.URL.Query(),
		params: params,
		body:   body,
	}, nil
}

// Method returns the HTTP method.
func (rc *RequestContext) Method() string { return rc.method }

// Path returns the request path.
func (rc *RequestContext) Path() string { return rc.path }

// Header returns the first value for the named header, case-insensitive.
func (rc *RequestContext) Header(name string) string { return rc.header.Get(name) }

// RawBody returns the captured request body. Callers must not mutate it.
func (rc *RequestContext) RawBody() []byte { return rc.body }

// Param returns a named parameter from the merged query/body parameter set.
func (rc *RequestContext) Param(name string) (any, bool) {
	v, ok := rc.params[name]
	return v, ok
}

// Params returns a copy of the merged query/body parameter set.
func (rc *RequestContext) Params() map[string]any {
	out := make(map[string]any, len(rc.params))
	for k, v := range rc.params {
		out[k] = v
	}
	return out
}

// DecodeJSON unmarshals the captured body into v.
func (rc *RequestContext) DecodeJSON(v any) error {
	if len(rc.body) == 0 {
		return fmt.Errorf("empty request body")
	}
	return json.Unmarshal(rc.body, v)
}
