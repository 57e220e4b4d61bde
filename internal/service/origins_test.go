package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeOrigin(t *testing.T) {
	tests := map[string]string{
		"https://Portal.Example.com":      "https://portal.example.com",
		"https://portal.example.com:443/": "https://portal.example.com",
		"http://localhost:8081/path?q=1":  "http://localhost:8081",
		"http://[::1]:8080":               "http://[::1]:8080",
	}
	for in, want := range tests {
		got, err := NormalizeOrigin(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	for _, bad := range []string{"", "null", "portal.example.com", "ftp://example.com", "https://"} {
		_, err := NormalizeOrigin(bad)
		assert.Error(t, err, bad)
	}
}

func TestOriginAllowList(t *testing.T) {
	a, err := NewOriginAllowList([]string{"https://portal.example.com", " ", "site:example.org", "http://localhost:8081"})
	require.NoError(t, err)
	assert.Equal(t, 3, a.Len())

	allowed := []string{
		"https://portal.example.com",
		"https://PORTAL.example.com:443",
		"https://sso.corp.example.org",
		"https://corp.example.org",
		"http://localhost:8081",
	}
	for _, o := range allowed {
		assert.True(t, a.Allowed(o), o)
	}

	denied := []string{
		"https://evil.example.com",
		"http://sso.corp.example.org",
		"https://corp.example.org.evil.net",
		"http://localhost:9999",
		"null",
		"",
	}
	for _, o := range denied {
		assert.False(t, a.Allowed(o), o)
	}

	var none *OriginAllowList
	assert.False(t, none.Allowed("https://portal.example.com"))
}

func TestOriginAllowList_InvalidEntries(t *testing.T) {
	_, err := NewOriginAllowList([]string{"site:com"})
	require.Error(t, err)
	_, err = NewOriginAllowList([]string{"portal.example.com"})
	require.Error(t, err)
}
