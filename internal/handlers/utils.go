package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tutorhub/apiserver/internal/logging"
	"github.com/tutorhub/apiserver/internal/services"
	"github.com/tutorhub/apiserver/types"
)

const maxBodyBytes = 1 << 20

type contextKey string

const contextIdentityKey contextKey = "identity"

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// MessageResponse is returned by endpoints that only acknowledge an action.
type MessageResponse struct {
	Message string `json:"message"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func identityFromContext(ctx context.Context) (types.Identity, error) {
	identity, ok := ctx.Value(contextIdentityKey).(types.Identity)
	if !ok || identity.ID == "" {
		return types.Identity{}, errors.New("missing identity")
	}
	return identity, nil
}

func contextWithIdentity(ctx context.Context, identity types.Identity) context.Context {
	return context.WithValue(ctx, contextIdentityKey, identity)
}

// decodeJSON reads a JSON body into dst and runs struct validation on it.
func decodeJSON(r *http.Request, dst any) error {
	body := io.LimitReader(r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return errors.New("invalid request")
	}
	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fmt.Errorf("invalid field: %s", fieldErrs[0].Field())
		}
		return errors.New("invalid request")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps a typed service failure to its HTTP status. Anything
// untyped is logged and reported as a generic internal error.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var svcErr *services.Error
	if errors.As(err, &svcErr) {
		writeJSON(w, statusFor(svcErr.Kind), ErrorResponse{Error: svcErr.Message, Details: svcErr.Details})
		return
	}

	logging.FromContext(r.Context()).ErrorContext(r.Context(), fallback,
		slog.String("path", r.URL.Path),
		slog.Any("error", err),
	)
	writeError(w, http.StatusInternalServerError, fallback)
}

func statusFor(kind error) int {
	switch {
	case errors.Is(kind, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(kind, services.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(kind, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(kind, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(kind, services.ErrConflict):
		return http.StatusConflict
	case errors.Is(kind, services.ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(kind, services.ErrPaymentFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// flexInt accepts a JSON number or a numeric string, mirroring form inputs
// that post prices and durations as text. Fractional values are rejected.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	raw = strings.Trim(raw, `"`)
	if raw == "" {
		*f = 0
		return nil
	}
	if value, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*f = flexInt(value)
		return nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value != float64(int64(value)) {
		return fmt.Errorf("invalid integer %q", raw)
	}
	*f = flexInt(value)
	return nil
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
