package client

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	ErrUnsupportedScheme = errors.New("origin scheme must be http or https")
	ErrMissingHost       = errors.New("origin has no host")
)

// EndpointFromOrigin maps a page origin to the WebSocket endpoint on the same
// host: https pages use wss, http pages use ws.
func EndpointFromOrigin(origin string) (string, error) {
	u, err := parseOrigin(origin)
	if err != nil {
		return "", err
	}

	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}

	endpoint := url.URL{Scheme: scheme, Host: u.Host, Path: "/"}
	return endpoint.String(), nil
}

// originHeader is the Origin header a browser would send for origin.
func originHeader(origin string) (string, error) {
	u, err := parseOrigin(origin)
	if err != nil {
		return "", err
	}
	return u.Scheme + "://" + u.Host, nil
}

func parseOrigin(origin string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(origin))
	if err != nil {
		return nil, fmt.Errorf("parse origin %q: %w", origin, err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, origin)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrMissingHost, origin)
	}
	return u, nil
}
