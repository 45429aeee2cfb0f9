package goose

import (
	"net/url"
	"strings"
)

// IsValidHost reports whether s parses as an absolute URL with a scheme,
// per the truth table in spec.md §8. A bare domain or a path is not
// valid even though url.Parse would happily accept it as a relative
// reference, so validity additionally requires a non-empty Scheme and at
// least one of a Host, Opaque, or Path component.
func IsValidHost(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	if u.Scheme == "" {
		return false
	}
	// "http:// example.com" parses with a space in the host, which
	// net/url rejects at Parse time already; this branch catches the
	// remaining case of a scheme with neither host nor opaque data
	// (plain "http://").
	if u.Host == "" && u.Opaque == "" && u.Path == "" {
		return false
	}
	return true
}

// resolveURL implements the precedence and joining rule of spec.md §4.8:
// an absolute path (http:// or https://) is used verbatim; otherwise it
// is joined as a relative reference against the base URL.
func resolveURL(base, path string) (string, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path, nil
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", &GooseError{Kind: ErrInvalidHost, Value: base, Err: err}
	}
	refURL, err := url.Parse(path)
	if err != nil {
		return "", &GooseError{Kind: ErrInvalidHost, Value: path, Err: err}
	}
	return baseURL.ResolveReference(refURL).String(), nil
}

// resolveBaseHost chooses the effective base host for a TaskSet following
// the precedence in spec.md §4.8: CLI host, then TaskSet host, then the
// global default host, erroring if none is set or the chosen value is
// not a valid host.
func resolveBaseHost(cliHost, taskSetHost, defaultHost string) (string, error) {
	var host string
	switch {
	case cliHost != "":
		host = cliHost
	case taskSetHost != "":
		host = taskSetHost
	case defaultHost != "":
		host = defaultHost
	default:
		return "", newError(ErrInvalidHost, "no host configured: set --host, a TaskSet host, or a default host")
	}

	if !IsValidHost(host) {
		return "", &GooseError{Kind: ErrInvalidHost, Value: host}
	}
	return host, nil
}
