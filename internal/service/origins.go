package service

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

const siteEntryPrefix = "site:"

// OriginAllowList decides which origins may drive cross-context sync.
// Entries are exact origins ("https://portal.example.com") or site entries
// ("site:example.com") that admit any https origin under that registrable domain.
type OriginAllowList struct {
	exact map[string]struct{}
	sites map[string]struct{}
}

// NewOriginAllowList parses entries. Blank entries are ignored.
func NewOriginAllowList(entries []string) (*OriginAllowList, error) {
	a := &OriginAllowList{exact: map[string]struct{}{}, sites: map[string]struct{}{}}
	for _, raw := range entries {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if site, ok := strings.CutPrefix(strings.ToLower(entry), siteEntryPrefix); ok {
			domain, err := publicsuffix.EffectiveTLDPlusOne(strings.Trim(site, "."))
			if err != nil {
				return nil, fmt.Errorf("invalid site entry %q: %w", entry, err)
			}
			a.sites[domain] = struct{}{}
			continue
		}
		origin, err := NormalizeOrigin(entry)
		if err != nil {
			return nil, err
		}
		a.exact[origin] = struct{}{}
	}
	return a, nil
}

// Allowed reports whether origin matches an entry. A nil list allows nothing.
func (a *OriginAllowList) Allowed(origin string) bool {
	if a == nil {
		return false
	}
	normalized, err := NormalizeOrigin(origin)
	if err != nil {
		return false
	}
	if _, ok := a.exact[normalized]; ok {
		return true
	}
	if len(a.sites) == 0 {
		return false
	}
	u, _ := url.Parse(normalized)
	if u.Scheme != "https" {
		return false
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(u.Hostname())
	if err != nil {
		return false
	}
	_, ok := a.sites[domain]
	return ok
}

// Len returns the number of entries.
func (a *OriginAllowList) Len() int {
	if a == nil {
		return 0
	}
	return len(a.exact) + len(a.sites)
}

// NormalizeOrigin reduces raw to lowercase scheme://host[:port], dropping default ports.
func NormalizeOrigin(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return "", errors.New("origin is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse origin %q: %w", raw, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Hostname() == "" {
		return "", fmt.Errorf("origin %q must be an absolute http(s) origin", raw)
	}
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		host += ":" + port
	}
	return scheme + "://" + host, nil
}
