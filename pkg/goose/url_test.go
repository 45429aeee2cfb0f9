package goose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidHost(t *testing.T) {
	cases := []struct {
		host  string
		valid bool
	}{
		{"http://example.com", true},
		{"https://example.com", true},
		{"http://example.com/", true},
		{"http://example.com:8080", true},
		{"example.com", false},
		{"//example.com", false},
		{"http://", false},
		{"ftp://example.com", true},
		{"", false},
		{"http:// example.com", false},
		{"http://example.com/path", true},
		{"  http://example.com", false},
		{":not a url", false},
	}

	for _, c := range cases {
		assert.Equal(t, c.valid, IsValidHost(c.host), "host=%q", c.host)
	}
}

func TestResolveURLAbsolutePathBypassesBase(t *testing.T) {
	out, err := resolveURL("http://example.com", "https://other.example/x")
	require.NoError(t, err)
	assert.Equal(t, "https://other.example/x", out)
}

func TestResolveURLJoinsRelativePath(t *testing.T) {
	out, err := resolveURL("http://example.com", "/login")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/login", out)
}

func TestResolveBaseHostPrecedence(t *testing.T) {
	host, err := resolveBaseHost("http://cli.example", "http://taskset.example", "http://default.example")
	require.NoError(t, err)
	assert.Equal(t, "http://cli.example", host)

	host, err = resolveBaseHost("", "http://taskset.example", "http://default.example")
	require.NoError(t, err)
	assert.Equal(t, "http://taskset.example", host)

	host, err = resolveBaseHost("", "", "http://default.example")
	require.NoError(t, err)
	assert.Equal(t, "http://default.example", host)

	_, err = resolveBaseHost("", "", "")
	assert.Error(t, err)

	_, err = resolveBaseHost("not-a-host", "", "")
	assert.Error(t, err)
}
