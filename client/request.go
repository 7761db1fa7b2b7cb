package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Request describes one API call. Path is relative to Config.BaseURL unless
// it is an absolute URL.
//
// A Request is not modified by Do and may be reused as a template for
// concurrent calls.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte

	retried bool
}

// NewRequest builds a request. A non-nil body is encoded as JSON unless it
// already is a []byte.
func NewRequest(method, path string, body any) (*Request, error) {
	req := &Request{Method: method, Path: path}
	switch b := body.(type) {
	case nil:
	case []byte:
		req.Body = b
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("client: encode body: %w", err)
		}
		req.Body = data
	}
	return req, nil
}

// Retried reports whether this descriptor is the replay sent after a
// credential refresh.
func (r *Request) Retried() bool {
	return r.retried
}

// replay returns a copy marked as retried. The original is left untouched.
func (r *Request) replay() *Request {
	out := &Request{
		Method:  r.Method,
		Path:    r.Path,
		Query:   cloneValues(r.Query),
		Header:  r.Header.Clone(),
		Body:    bytes.Clone(r.Body),
		retried: true,
	}
	return out
}

func cloneValues(v url.Values) url.Values {
	if v == nil {
		return nil
	}
	out := make(url.Values, len(v))
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

// Response is a completed API call.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Envelope is the JSON body convention {code, msg, data} used by the API.
type Envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// Envelope parses the body as an envelope. ok is false when the body is not
// a JSON object carrying a numeric code.
func (r *Response) Envelope() (env Envelope, ok bool) {
	return parseEnvelope(r.Body)
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}

// DecodeData unmarshals the envelope's data field into v.
func (r *Response) DecodeData(v any) error {
	env, ok := r.Envelope()
	if !ok {
		return fmt.Errorf("client: decode response: body is not an envelope")
	}
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("client: decode response data: %w", err)
	}
	return nil
}

func parseEnvelope(body []byte) (Envelope, bool) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return Envelope{}, false
	}
	var raw struct {
		Code *int            `json:"code"`
		Msg  string          `json:"msg"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil || raw.Code == nil {
		return Envelope{}, false
	}
	return Envelope{Code: *raw.Code, Msg: raw.Msg, Data: raw.Data}, true
}
