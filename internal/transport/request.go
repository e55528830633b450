package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/agentstation/librarian/pkg/errors"
)

// Response is a successful (2xx) reply. Body may be empty.
type Response struct {
	StatusCode int
	Body       []byte
}

// Empty reports a whitespace-only body. An empty body is a valid
// "no content" result, not a decoding failure.
func (r *Response) Empty() bool {
	return r == nil || len(bytes.TrimSpace(r.Body)) == 0
}

// Decode unmarshals the JSON body into target.
func (r *Response) Decode(target any) error {
	if r.Empty() {
		return errors.ErrNoContent
	}
	if err := json.Unmarshal(r.Body, target); err != nil {
		return errors.WrapParse("json", "response", err)
	}
	return nil
}

// newRequest builds an authenticated JSON request for path under the base URL.
func (c *Client) newRequest(ctx context.Context, method, path string, payload []byte) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errors.WrapResource("create", "request", method+" "+path, err)
	}
	c.auth.Apply(req)

	// Set common headers
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// encodeBody marshals a request body once so every attempt can resend it.
func encodeBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	if raw, ok := body.([]byte); ok {
		return raw, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, errors.WrapParse("json", "request body", err)
	}
	return data, nil
}

// Snippet reduces a response body to one line of at most limit bytes,
// cut on a rune boundary.
func Snippet(body []byte, limit int) string {
	s := strings.ReplaceAll(strings.TrimSpace(string(body)), "\n", " ")
	if limit > 0 && len(s) > limit {
		for limit > 0 && !utf8.RuneStart(s[limit]) {
			limit--
		}
		s = s[:limit]
	}
	return s
}
