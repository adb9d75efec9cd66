package wiki

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Response is a decoded API reply. Top-level keys are kept raw and decoded on
// demand by the operation that asked for them.
type Response struct {
	raw    []byte
	fields map[string]json.RawMessage
}

// Raw returns the response body as received
func (r *Response) Raw() []byte {
	return r.raw
}

// Has reports whether the response carries the top-level key
func (r *Response) Has(key string) bool {
	_, ok := r.fields[key]
	return ok
}

// Decode unmarshals the top-level key into v. A missing key is a *DecodeError.
func (r *Response) Decode(key string, v any) error {
	data, ok := r.fields[key]
	if !ok {
		return &DecodeError{Err: fmt.Errorf("response has no %q field", key)}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &DecodeError{Err: fmt.Errorf("field %q: %w", key, err)}
	}
	return nil
}

// Continuation returns the parameters to merge into the next request of a
// paginated listing, or false when the listing is complete.
func (r *Response) Continuation() (url.Values, bool) {
	data, ok := r.fields["continue"]
	if !ok {
		return nil, false
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil || len(entries) == 0 {
		return nil, false
	}

	values := make(url.Values, len(entries))
	for k, raw := range entries {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			values.Set(k, s)
			continue
		}
		values.Set(k, strings.TrimSpace(string(raw)))
	}
	return values, true
}

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

// decodeResponse turns a raw transport outcome into a *Response. It is the
// decoder of every Bot scheduler.
func decodeResponse(status int, body []byte, sendErr error) (*Response, error) {
	if sendErr != nil {
		return nil, &TransportError{StatusCode: status, Err: sendErr}
	}
	if status != http.StatusOK {
		return nil, &TransportError{
			StatusCode: status,
			Err:        fmt.Errorf("unexpected status %s", http.StatusText(status)),
		}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if fields == nil {
		return nil, &DecodeError{Err: errors.New("response is not a JSON object")}
	}

	resp := &Response{raw: body, fields: fields}
	if resp.Has("error") {
		var apiErr apiError
		if err := resp.Decode("error", &apiErr); err != nil {
			return nil, err
		}
		return nil, &ProtocolError{Code: apiErr.Code, Info: apiErr.Info}
	}
	return resp, nil
}

func errMissing(path string) error {
	return fmt.Errorf("response has no %s", path)
}
