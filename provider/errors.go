package provider

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/casualjim/hoot/failure"
	"github.com/tidwall/gjson"
)

const maxErrorBody = 64 << 10

// APIError is a non-2xx answer from a vendor API.
type APIError struct {
	Provider   Family
	StatusCode int
	Message    string
	Raw        []byte
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}

	var b strings.Builder
	if e.Provider != "" {
		b.WriteString(string(e.Provider))
		b.WriteString(": ")
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, "http %d", e.StatusCode)
	} else {
		b.WriteString("http error")
	}

	msg := strings.TrimSpace(e.Message)
	if msg == "" && e.StatusCode != 0 {
		msg = http.StatusText(e.StatusCode)
	}
	if msg != "" {
		b.WriteString(": ")
		b.WriteString(msg)
	}
	return b.String()
}

// HTTPStatus exposes the status code to failure classification.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

// AsAPIError returns the first *APIError in err's chain.
func AsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// ReadAPIError builds an APIError from a failed HTTP response. The body is read
// (bounded) but not closed.
func ReadAPIError(family Family, resp *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{
		Provider:   family,
		StatusCode: resp.StatusCode,
		Message:    errorMessage(raw),
		Raw:        raw,
	}
}

func errorMessage(raw []byte) string {
	if gjson.ValidBytes(raw) {
		for _, path := range []string{"error.message", "error", "message"} {
			if r := gjson.GetBytes(raw, path); r.Exists() && r.Type == gjson.String {
				return r.String()
			}
		}
	}
	return strings.TrimSpace(string(raw))
}

// StreamFailure is the failure for an error the vendor reported inside the token
// stream itself. It is delivered to the caller as is and never retried.
func StreamFailure(family Family, msg string) *failure.Error {
	fe := failure.New(failure.LLM, "LLM error: "+msg)
	fe.Details = fmt.Sprintf("%s: %s", family, msg)
	return fe
}
