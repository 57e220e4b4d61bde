package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	jmespath "github.com/jmespath-community/go-jmespath"
	domainauth "github.com/target/sitegate/internal/domain/auth"
)

// DefaultErrorCodePath extracts the backend error code from the common envelope shapes.
const DefaultErrorCodePath = "code || error_code || error.code"

// DefaultRecoveryCodes are backend codes meaning the refresh credential is gone.
var DefaultRecoveryCodes = []string{"refresh_token_not_found", "invalid_refresh_token"}

var reRefreshTokenMessage = regexp.MustCompile(`(?i)refresh[ _-]?token.*(not[ _-]?found|invalid|expired|revoked)|invalid[ _-]refresh[ _-]?token`)

// failure is the parsed body of a non-2xx backend response.
type failure struct {
	status  int
	message string
	code    string
	json    bool
}

// errorClassifier turns backend failures into domain errors.
type errorClassifier struct {
	codePath      string
	recoveryCodes map[string]struct{}
}

func newErrorClassifier(codePath string, recoveryCodes []string) (*errorClassifier, error) {
	if strings.TrimSpace(codePath) == "" {
		codePath = DefaultErrorCodePath
	}
	if _, err := jmespath.Compile(codePath); err != nil {
		return nil, fmt.Errorf("compile error code path %q: %w", codePath, err)
	}
	if len(recoveryCodes) == 0 {
		recoveryCodes = DefaultRecoveryCodes
	}
	codes := make(map[string]struct{}, len(recoveryCodes))
	for _, c := range recoveryCodes {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			codes[c] = struct{}{}
		}
	}
	return &errorClassifier{codePath: codePath, recoveryCodes: codes}, nil
}

func (c *errorClassifier) parse(status int, body []byte) failure {
	f := failure{status: status}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return f
	}
	f.json = true
	if m, ok := doc.(map[string]any); ok {
		if msg, ok := m["message"].(string); ok {
			f.message = msg
		}
	}
	if v, err := jmespath.Search(c.codePath, doc); err == nil {
		if code, ok := v.(string); ok {
			f.code = code
		}
	}
	return f
}

// recoveryRequired reports whether the failure names an invalid or missing refresh token.
func (c *errorClassifier) recoveryRequired(f failure) bool {
	if _, ok := c.recoveryCodes[strings.ToLower(f.code)]; ok && f.code != "" {
		return true
	}
	return f.message != "" && reRefreshTokenMessage.MatchString(f.message)
}

// classify maps an HTTP failure to the error taxonomy.
func (c *errorClassifier) classify(f failure) error {
	e := &domainauth.Error{Status: f.status, Code: f.code, Message: f.message}
	if !f.json {
		e.Kind = domainauth.KindBackendUnavailable
		e.Message = "identity backend returned a non-JSON response"
		return e
	}
	switch f.status {
	case http.StatusBadRequest:
		e.Kind = domainauth.KindValidation
		e.Message = orDefault(f.message, "invalid request")
	case http.StatusUnauthorized:
		e.Kind = domainauth.KindCredential
		e.Message = orDefault(f.message, "invalid credentials")
	case http.StatusForbidden:
		e.Kind = domainauth.KindAuthorization
		e.Message = orDefault(f.message, "access denied")
	case http.StatusTooManyRequests:
		e.Kind = domainauth.KindRateLimit
		e.Message = orDefault(f.message, "too many attempts, try again later")
	default:
		e.Kind = domainauth.KindBackendUnavailable
		e.Message = orDefault(f.message, fmt.Sprintf("identity backend unavailable (status %d)", f.status))
	}
	return e
}

func malformed(what string) error {
	return domainauth.NewError(domainauth.KindBackendUnavailable, "malformed "+what+" response")
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// validationError converts validator output into the first failing field.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domainauth.ValidationError("", err.Error())
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return domainauth.ValidationError(fe.Field(), fe.Field()+" is required")
	case "email":
		return domainauth.ValidationError(fe.Field(), fe.Field()+" must be a valid email address")
	default:
		return domainauth.ValidationError(fe.Field(), fe.Field()+" is invalid")
	}
}
