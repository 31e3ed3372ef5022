package kalbio

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Result holds the decoded JSON body of a successful request. The zero value
// is the "no result" signal: it is returned when a request came back with an
// error status or a body that is not valid JSON. Callers distinguish the two
// cases with Exists.
type Result struct {
	raw []byte
}

// newResult wraps a response body. Bodies that are not valid JSON yield the
// zero Result, matching the soft-failure contract of the request primitives.
func newResult(body []byte) Result {
	if !gjson.ValidBytes(body) {
		return Result{}
	}
	return Result{raw: body}
}

// Exists reports whether the request produced a decodable JSON body.
func (r Result) Exists() bool {
	return r.raw != nil
}

// JSON returns the parsed body for path-based access. The zero Result yields
// a gjson.Result that exists for no path.
func (r Result) JSON() gjson.Result {
	return gjson.ParseBytes(r.raw)
}

// Get returns the value at the given gjson path within the body.
func (r Result) Get(path string) gjson.Result {
	return gjson.GetBytes(r.raw, path)
}

// Decode unmarshals the body into v.
func (r Result) Decode(v any) error {
	return json.Unmarshal(r.raw, v)
}

// Bytes returns the raw JSON body, or nil for the zero Result.
func (r Result) Bytes() []byte {
	return r.raw
}
