package service

import (
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// DetectionRules drives the portal's heuristic logout detectors.
type DetectionRules struct {
	// LogoutURLFragments flag request paths that end a session.
	LogoutURLFragments []string `yaml:"logout_url_fragments"`
	// LogoutWords flag clicked elements by text, id, class or label.
	LogoutWords []string `yaml:"logout_words"`
	// AuthPaths flag navigation toward a login page.
	AuthPaths []string `yaml:"auth_paths"`
	// UnauthorizedStatuses flag responses that mean the portal session is gone.
	UnauthorizedStatuses []int `yaml:"unauthorized_statuses"`
}

// DefaultDetectionRules returns the built-in rules.
func DefaultDetectionRules() DetectionRules {
	return DetectionRules{
		LogoutURLFragments:   []string{"/logout", "/log-out", "/signout", "/sign-out", "/sign_out", "/logoff", "/end-session"},
		LogoutWords:          []string{"log out", "sign out", "log off", "sign off"},
		AuthPaths:            []string{"/login", "/signin", "/sign-in", "/auth", "/sso"},
		UnauthorizedStatuses: []int{http.StatusUnauthorized, http.StatusForbidden},
	}
}

// LoadDetectionRules reads YAML rules from path. Lists absent from the file keep their defaults.
func LoadDetectionRules(path string) (DetectionRules, error) {
	rules := DefaultDetectionRules()
	if strings.TrimSpace(path) == "" {
		return rules, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("read detection rules: %w", err)
	}
	var file DetectionRules
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return rules, fmt.Errorf("parse detection rules %s: %w", path, err)
	}
	if len(file.LogoutURLFragments) > 0 {
		rules.LogoutURLFragments = file.LogoutURLFragments
	}
	if len(file.LogoutWords) > 0 {
		rules.LogoutWords = file.LogoutWords
	}
	if len(file.AuthPaths) > 0 {
		rules.AuthPaths = file.AuthPaths
	}
	if len(file.UnauthorizedStatuses) > 0 {
		rules.UnauthorizedStatuses = file.UnauthorizedStatuses
	}
	return rules, nil
}

// matcher is the compiled form of DetectionRules.
type matcher struct {
	urlFragments []string
	authPaths    []string
	statuses     map[int]struct{}
	words        *regexp.Regexp
}

func compileRules(r DetectionRules) (*matcher, error) {
	m := &matcher{statuses: make(map[int]struct{}, len(r.UnauthorizedStatuses))}
	for _, f := range r.LogoutURLFragments {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			m.urlFragments = append(m.urlFragments, f)
		}
	}
	for _, p := range r.AuthPaths {
		if p = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(p)), "/"); p != "" {
			m.authPaths = append(m.authPaths, p)
		}
	}
	for _, s := range r.UnauthorizedStatuses {
		m.statuses[s] = struct{}{}
	}

	var alts []string
	for _, w := range r.LogoutWords {
		fields := strings.Fields(strings.ToLower(w))
		if len(fields) == 0 {
			continue
		}
		for i := range fields {
			fields[i] = regexp.QuoteMeta(fields[i])
		}
		alts = append(alts, strings.Join(fields, `[\s_-]*`))
	}
	if len(alts) > 0 {
		re, err := regexp.Compile(`\b(?:` + strings.Join(alts, "|") + `)\b`)
		if err != nil {
			return nil, fmt.Errorf("compile logout words: %w", err)
		}
		m.words = re
	}
	return m, nil
}

func (m *matcher) logoutURL(path string) bool {
	path = strings.ToLower(path)
	for _, f := range m.urlFragments {
		if strings.Contains(path, f) {
			return true
		}
	}
	return false
}

func (m *matcher) authPath(path string) bool {
	path = strings.TrimSuffix(strings.ToLower(path), "/")
	for _, p := range m.authPaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func (m *matcher) unauthorized(status int) bool {
	_, ok := m.statuses[status]
	return ok
}

// logoutText matches free text such as "Sign out" or identifiers such as "btn_logout"
// and "signOutButton".
func (m *matcher) logoutText(s string) bool {
	if m.words == nil || s == "" {
		return false
	}
	return m.words.MatchString(splitIdentifier(s))
}

// splitIdentifier lowercases s and breaks camelCase and snake_case into words.
func splitIdentifier(s string) string {
	var b strings.Builder
	var prev rune
	for _, r := range s {
		switch {
		case r == '_' || r == '-':
			b.WriteRune(' ')
		case unicode.IsUpper(r) && unicode.IsLower(prev):
			b.WriteRune(' ')
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(unicode.ToLower(r))
		}
		prev = r
	}
	return b.String()
}
