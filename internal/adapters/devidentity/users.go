package devidentity

import (
	"fmt"
	"strings"
)

// UserSpec describes one configured dev account.
type UserSpec struct {
	Email    string
	Username string
	Password string
	Disabled bool
}

// ParseUsers parses "email|username|password|status" entries separated by ';'.
// Username and status are optional; status is "active" (default) or "disabled".
func ParseUsers(raw string) ([]UserSpec, error) {
	var out []UserSpec
	for entry := range strings.SplitSeq(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, "|")
		if len(parts) < 3 || len(parts) > 4 {
			return nil, fmt.Errorf("dev user %q: want email|username|password[|status]", entry)
		}
		u := UserSpec{
			Email:    strings.TrimSpace(parts[0]),
			Username: strings.TrimSpace(parts[1]),
			Password: parts[2],
		}
		if u.Email == "" || u.Password == "" {
			return nil, fmt.Errorf("dev user %q: email and password are required", entry)
		}
		if len(parts) == 4 {
			switch strings.ToLower(strings.TrimSpace(parts[3])) {
			case "", "active":
			case "disabled":
				u.Disabled = true
			default:
				return nil, fmt.Errorf("dev user %q: unknown status %q", entry, parts[3])
			}
		}
		out = append(out, u)
	}
	return out, nil
}
