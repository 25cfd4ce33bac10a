package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrNoCollections is returned when a backend lists no collections at all.
var ErrNoCollections = errors.New("backend returned no collections")

// HTTPError is a non-2xx response from a backend.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("backend error (status %d): %s", e.StatusCode, e.Message)
}

const maxErrorText = 200

// ParseErrorBody extracts a readable message from an error response. FastAPI
// reports failures as {"detail": "..."}; other JSON bodies are returned
// compacted, and anything else is cut to its first 200 bytes.
func ParseErrorBody(body []byte) string {
	trimmed := bytes.TrimSpace(body)

	var payload any
	if err := json.Unmarshal(trimmed, &payload); err == nil {
		if obj, ok := payload.(map[string]any); ok {
			if detail, ok := obj["detail"].(string); ok {
				return detail
			}
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err == nil {
			return buf.String()
		}
	}

	if len(trimmed) <= maxErrorText {
		return string(trimmed)
	}
	cut := trimmed[:maxErrorText]
	for len(cut) > 0 && !utf8.Valid(cut) {
		cut = cut[:len(cut)-1]
	}
	return string(cut)
}
