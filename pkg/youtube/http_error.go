package youtube

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shpitdev/playlistrank/pkg/pipeline/redact"
)

// googleErrorEnvelope is the standard error body of Google APIs.
// Only the fields used for classification are decoded.
type googleErrorEnvelope struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Errors  []struct {
			Reason string `json:"reason"`
			Domain string `json:"domain"`
		} `json:"errors"`
	} `json:"error"`
}

// HTTPError is a sanitized summary of a non-2xx Data API response.
//
// Important: do not include raw response bodies here (error messages may echo the
// request, including the API key).
type HTTPError struct {
	Op         string
	StatusCode int
	Status     string

	// Reason is the first errors[].reason, e.g. "quotaExceeded" or "playlistNotFound".
	Reason    string
	APIStatus string
	Message   string

	// Snippet is a redacted, truncated hint for non-JSON responses.
	Snippet string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "youtube http error"
	}
	parts := []string{
		fmt.Sprintf("youtube api error: op=%s status=%s", strings.TrimSpace(e.Op), strings.TrimSpace(e.Status)),
	}
	if e.Reason != "" {
		parts = append(parts, "reason="+e.Reason)
	}
	if e.APIStatus != "" {
		parts = append(parts, "apiStatus="+e.APIStatus)
	}
	if e.Message != "" {
		parts = append(parts, fmt.Sprintf("message=%q", e.Message))
	}
	if e.Snippet != "" {
		parts = append(parts, "body="+e.Snippet)
	}
	return strings.Join(parts, " ")
}

func newHTTPError(op string, resp *http.Response, body []byte) *HTTPError {
	h := &HTTPError{Op: op}
	if resp != nil {
		h.StatusCode = resp.StatusCode
		h.Status = resp.Status
	}

	// Best effort: parse the Google error envelope.
	var env googleErrorEnvelope
	if len(body) > 0 && json.Unmarshal(body, &env) == nil && env.Error != nil {
		h.APIStatus = strings.TrimSpace(env.Error.Status)
		h.Message = redactAndTruncate([]byte(env.Error.Message))
		for _, e := range env.Error.Errors {
			if r := strings.TrimSpace(e.Reason); r != "" {
				h.Reason = r
				break
			}
		}
		if h.Reason != "" || h.APIStatus != "" || h.Message != "" {
			return h
		}
	}

	// Fallback: include a small, redacted hint only.
	h.Snippet = redactAndTruncate(body)
	return h
}

func redactAndTruncate(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	const max = 256
	b := body
	if len(b) > max {
		b = b[:max]
	}
	s := redact.Secrets(string(b))
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(body) > max {
		return s + "..."
	}
	return s
}
