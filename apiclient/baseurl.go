package apiclient

import (
	"net/url"
	"strings"
)

// DefaultFallbackBaseURL is used when neither a platform override nor a
// runtime value is configured.
const DefaultFallbackBaseURL = "https://api.gosession.dev"

// ResolveBaseURL returns the first non-blank value among the platform
// override, the runtime configuration and the fallback, without a trailing
// slash.
func ResolveBaseURL(platform, runtime, fallback string) string {
	for _, candidate := range []string{platform, runtime, fallback} {
		candidate = strings.TrimSpace(candidate)
		if candidate != "" {
			return strings.TrimRight(candidate, "/")
		}
	}
	return DefaultFallbackBaseURL
}

// WebSocketURL derives the realtime endpoint from an HTTP base URL:
// http becomes ws, https becomes wss, and the path is "/ws".
func WebSocketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
