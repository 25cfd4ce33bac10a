package render

import (
	"errors"
	"strings"

	"github.com/lamim/vecplot/internal/backend"
)

// errorPattern maps error substrings to their categories
type errorPattern struct {
	patterns []string
	category string
}

// errorPatterns defines all error categorization patterns in priority order
var errorPatterns = []errorPattern{
	{
		patterns: []string{"timeout", "context deadline exceeded", "i/o timeout"},
		category: "timeout",
	},
	// Rate limit errors - checked before auth since "too many requests" can appear with 429
	{
		patterns: []string{"rate limit", "too many requests", "429"},
		category: "rate_limit",
	},
	{
		patterns: []string{"401", "403", "unauthorized", "authentication", "api key"},
		category: "auth",
	},
	{
		patterns: []string{"500", "502", "503", "504", "internal server error", "bad gateway", "service unavailable"},
		category: "server_error",
	},
	{
		patterns: []string{"400", "404", "422", "bad request", "not found", "does not exist"},
		category: "client_error",
	},
	{
		patterns: []string{"connection refused", "no such host", "network", "dns", "temporary failure"},
		category: "network",
	},
	{
		patterns: []string{"unmarshal", "parse", "invalid character", "invalid syntax"},
		category: "parse",
	},
	{
		patterns: []string{"context canceled"},
		category: "canceled",
	},
}

// categorizeError categorizes an error for better reporting
func categorizeError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, backend.ErrNoCollections) {
		return "no_collections"
	}

	var httpErr *backend.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == 429:
			return "rate_limit"
		case httpErr.StatusCode == 401 || httpErr.StatusCode == 403:
			return "auth"
		case httpErr.StatusCode >= 500:
			return "server_error"
		case httpErr.StatusCode >= 400:
			return "client_error"
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		for _, pattern := range ep.patterns {
			if strings.Contains(errStr, pattern) {
				return ep.category
			}
		}
	}

	return "other"
}
