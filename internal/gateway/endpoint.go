package gateway

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"termwatch/internal/terminal"
)

// DefaultBaseURL is the production terminal gateway.
const DefaultBaseURL = "wss://api-terminal-gateway.tillpayments.dev"

const tokenMask = "***"

// Endpoint addresses the gateway's event-stream socket. ConnectURL carries
// the real token and is used only for dialing; MaskedURL is the only form
// that may appear in logs.
type Endpoint struct {
	BaseURL string
}

func (endpoint Endpoint) ConnectURL(identity terminal.Identity, credentials terminal.Credentials) (string, error) {
	return endpoint.buildURL(identity, credentials.Token)
}

func (endpoint Endpoint) MaskedURL(identity terminal.Identity) string {
	masked, err := endpoint.buildURL(identity, tokenMask)
	if err != nil {
		return ""
	}
	return masked
}

func (endpoint Endpoint) buildURL(identity terminal.Identity, token string) (string, error) {
	base := strings.TrimSpace(endpoint.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse gateway URL: %w", err)
	}
	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", errors.New("unsupported gateway URL scheme")
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/") + "/socket.io/"

	// Built by hand to keep the gateway's tid/mid/token parameter order and
	// to keep the mask literal in the logged form.
	if token != tokenMask {
		token = url.QueryEscape(token)
	}
	parsed.RawQuery = "tid=" + url.QueryEscape(identity.TID) +
		"&mid=" + url.QueryEscape(identity.MID) +
		"&token=" + token
	return parsed.String(), nil
}
