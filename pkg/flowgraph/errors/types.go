package errors

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPError is a non-2xx answer from a provider.
type HTTPError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *HTTPError) Error() string {
	if e.Endpoint == "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("HTTP %d at %s: %s", e.StatusCode, e.Endpoint, e.Message)
}

// maxErrorBody bounds how much of a failed response is kept in HTTPError.
const maxErrorBody = 1 << 10

// CheckResponse returns an *HTTPError for a non-2xx response, keeping the
// start of its body as the message.
func CheckResponse(endpoint string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &HTTPError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body)), Endpoint: endpoint}
}

// DecodeJSON decodes r into out, reporting failures as *JSONParseError.
func DecodeJSON(r io.Reader, out any) error {
	if err := json.NewDecoder(r).Decode(out); err != nil {
		return &JSONParseError{Message: err.Error()}
	}
	return nil
}

// RateLimitError is a QPS or quota refusal delivered with HTTP 200.
type RateLimitError struct {
	Provider string
	Info     string
}

func (e *RateLimitError) Error() string {
	return e.Provider + " rate limited: " + e.Info
}

// JSONParseError is generated or returned text that is not the JSON
// expected. Input holds the offending text when it is available.
type JSONParseError struct {
	Input   string
	Message string
}

func (e *JSONParseError) Error() string {
	return "JSON parse error: " + e.Message
}

// ValidationError is an answer that parsed but lacks or contradicts a
// required field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
}

// TimeoutError is a provider-side timeout reported in a response.
type TimeoutError struct {
	Operation string
	Duration  string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %s: %s", e.Duration, e.Operation)
}
