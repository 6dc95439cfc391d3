package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	apierrors "oispurts/internal/errors"
)

// maxQueryLength bounds search text and instrument keys
const maxQueryLength = 64

// QueryParamValidator validates query and path parameters and writes an
// RFC 7807 response when one is rejected
type QueryParamValidator struct {
	validator    *validator.Validate
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewQueryParamValidator creates a new query parameter validator
func NewQueryParamValidator(logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *QueryParamValidator {
	return &QueryParamValidator{
		validator:    validator.New(),
		logger:       logger.With(slog.String("component", "query_validator")),
		errorHandler: errorHandler,
	}
}

// ValidateInt validates an integer query parameter
func (v *QueryParamValidator) ValidateInt(w http.ResponseWriter, r *http.Request, param string, min, max int, defaultValue int) (int, bool) {
	value := r.URL.Query().Get(param)
	if value == "" {
		return defaultValue, true
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		v.reject(w, r, param, fmt.Sprintf("%s must be a valid integer", param))
		return 0, false
	}

	if intValue < min || intValue > max {
		v.reject(w, r, param, fmt.Sprintf("%s must be between %d and %d", param, min, max))
		return 0, false
	}

	return intValue, true
}

// ValidateText validates free text such as a search query or instrument key.
// The value is trimmed; required rejects an empty result.
func (v *QueryParamValidator) ValidateText(w http.ResponseWriter, r *http.Request, param, value string, required bool) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		if required {
			v.errorHandler.HandleError(w, r, apierrors.MissingParameter(param))
			return "", false
		}
		return "", true
	}

	if err := v.validator.Var(value, fmt.Sprintf("printascii,max=%d", maxQueryLength)); err != nil {
		v.reject(w, r, param, fmt.Sprintf("%s must be printable text of at most %d characters", param, maxQueryLength))
		return "", false
	}
	return value, true
}

func (v *QueryParamValidator) reject(w http.ResponseWriter, r *http.Request, param, message string) {
	v.logger.DebugContext(r.Context(), "parameter rejected",
		slog.String("param", param),
		slog.String("reason", message))
	v.errorHandler.HandleError(w, r, apierrors.InvalidParameter(param, message))
}
