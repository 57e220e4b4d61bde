package errors

// Package errors turns arbitrary errors into low-cardinality labels for metrics and logs.

import (
	goerrors "errors"
	"reflect"
	"strings"

	domainauth "github.com/target/sitegate/internal/domain/auth"
	apperrors "github.com/target/sitegate/internal/errors"
)

// Classify returns a normalized error label.
// Session-layer errors report their kind ("credential", "transient_network"),
// persistence errors their code prefixed with "db_", and anything else the
// snake_case name of the innermost concrete type.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	if kind := domainauth.KindOf(err); kind != "" {
		return string(kind)
	}
	if code := apperrors.GetCode(err); code != "" {
		return "db_" + string(code)
	}

	for {
		unwrapped := goerrors.Unwrap(err)
		if unwrapped == nil {
			break
		}
		err = unwrapped
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}
	name := strings.ReplaceAll(strings.ToLower(t.String()), ".", "_")
	if name == "" {
		return "unknown"
	}
	return name
}
