package auth

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseCallbackURL extracts the OAuth callback parameters from a URL the user
// pasted into the terminal. This covers environments where the loopback
// redirect cannot reach the CLI, such as SSH sessions: the browser lands on
// an unreachable localhost URL and the user relays it by hand.
//
// It accepts a full URL, a bare path with query, or just the query string.
// An empty input returns (nil, nil) so the caller can keep waiting.
func ParseCallbackURL(input string) (*CallbackResult, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, nil
	}

	candidate := trimmed
	if !strings.Contains(candidate, "://") {
		switch {
		case strings.HasPrefix(candidate, "?"):
			candidate = "http://localhost" + candidate
		case strings.ContainsAny(candidate, "/?"):
			candidate = "http://" + candidate
		case strings.Contains(candidate, "="):
			candidate = "http://localhost/?" + candidate
		default:
			return nil, fmt.Errorf("invalid callback URL")
		}
	}

	parsed, err := url.Parse(candidate)
	if err != nil {
		return nil, fmt.Errorf("invalid callback URL: %w", err)
	}

	query := parsed.Query()
	result := &CallbackResult{
		Code:             strings.TrimSpace(query.Get("code")),
		State:            strings.TrimSpace(query.Get("state")),
		Error:            strings.TrimSpace(query.Get("error")),
		ErrorDescription: strings.TrimSpace(query.Get("error_description")),
	}

	if result.Code == "" && result.Error == "" {
		return nil, fmt.Errorf("callback URL carries neither a code nor an error")
	}
	return result, nil
}
