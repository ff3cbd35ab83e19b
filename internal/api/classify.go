package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

// Error details produced by the client itself rather than the backend.
const (
	DetailNetworkError  = "Network error or invalid JSON"
	DetailRequestFailed = "Request failed"
	DetailAuthRequired  = "Authentication required"
	DetailAuthFailed    = "Authentication failed"
)

// RawResponse is what the classifier needs from a transport response.
type RawResponse struct {
	StatusCode int
	// Status is the full status line text, e.g. "404 Not Found".
	Status string
	Body   []byte
}

// Classify turns a raw response into a Result. It never fails: bodies that
// do not decode into T become a nil Data.
func Classify[T any](raw RawResponse) Result[T] {
	if raw.StatusCode == http.StatusNoContent || raw.StatusCode == http.StatusResetContent {
		return okResult[T](nil, raw.StatusCode)
	}
	if isSuccess(raw.StatusCode) {
		return okResult(decodeBody[T](raw.Body), raw.StatusCode)
	}
	return errorResult[T](errorDetail(raw), raw.StatusCode)
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}

func decodeBody[T any](body []byte) *T {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	var v T
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return nil
	}
	return &v
}

// errorDetail picks the message for a failed response: the JSON "detail"
// field, then the trimmed body, then the status phrase.
func errorDetail(raw RawResponse) string {
	if detail := detailField(raw.Body); detail != "" {
		return detail
	}
	if text := strings.TrimSpace(string(raw.Body)); text != "" {
		return text
	}
	if phrase := statusPhrase(raw); phrase != "" {
		return phrase
	}
	return DetailRequestFailed
}

func detailField(body []byte) string {
	if len(bytes.TrimSpace(body)) == 0 {
		return ""
	}
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	raw := bytes.TrimSpace(payload.Detail)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}

	// Validation errors arrive as a list of objects; keep them readable.
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return ""
	}
	return compact.String()
}

func statusPhrase(raw RawResponse) string {
	phrase := strings.TrimSpace(strings.TrimPrefix(raw.Status, strconv.Itoa(raw.StatusCode)))
	if phrase != "" {
		return phrase
	}
	return http.StatusText(raw.StatusCode)
}
