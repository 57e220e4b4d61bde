package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	domainauth "github.com/target/sitegate/internal/domain/auth"
)

const maxJSONBody = 64 << 10

// DecodeJSON decodes JSON from the request body into the destination and handles errors.
// Returns true if successful, false if there was an error (error response already written).
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_json", Err: err})
		return false
	}

	return true
}

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = buf.WriteTo(w)
}

// ErrorParams groups parameters for WriteError.
type ErrorParams struct {
	Code    int
	ErrCode string
	Err     error
	Field   string
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// WriteError writes a JSON error response using ErrorParams.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	WriteJSON(w, p.Code, errorBody{Error: p.ErrCode, Message: p.Err.Error(), Field: p.Field})
}

// WriteAuthError maps an auth error onto its HTTP status. Only user-facing kinds
// expose their message; everything else is reported as an internal error.
func WriteAuthError(w http.ResponseWriter, err error) {
	var derr *domainauth.Error
	if !errors.As(err, &derr) || !domainauth.IsUserFacing(err) {
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "internal",
			Err:     errors.New("internal error"),
		})
		return
	}
	msg := derr.Message
	if msg == "" {
		msg = string(derr.Kind)
	}
	WriteError(w, ErrorParams{
		Code:    statusForKind(derr.Kind),
		ErrCode: string(derr.Kind),
		Err:     errors.New(msg),
		Field:   derr.Field,
	})
}

func statusForKind(k domainauth.ErrorKind) int {
	switch k {
	case domainauth.KindValidation:
		return http.StatusBadRequest
	case domainauth.KindCredential:
		return http.StatusUnauthorized
	case domainauth.KindAuthorization:
		return http.StatusForbidden
	case domainauth.KindRateLimit:
		return http.StatusTooManyRequests
	case domainauth.KindBackendUnavailable, domainauth.KindTransientNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
