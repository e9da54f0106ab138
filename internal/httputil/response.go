package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/gthanmon/gemini-account-manager/internal/errors"
)

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Success bool                `json:"success"`
	Error   string              `json:"error"`
	Code    apperrors.ErrorCode `json:"code"`
	Details any                 `json:"details,omitempty"`
}

// WriteError writes an AppError as an HTTP response with appropriate status code
func WriteError(w http.ResponseWriter, err error) {
	if !apperrors.IsAppError(err) {
		log.Error().Err(err).Msg("unexpected error reached response writer")
		err = apperrors.Internal("An unexpected error occurred").WithCause(err)
	}
	appErr, _ := apperrors.AsAppError(err)

	WriteErrorWithStatus(w, StatusFromCode(appErr.Code), appErr)
}

func WriteErrorWithStatus(w http.ResponseWriter, status int, err *apperrors.AppError) {
	WriteJSON(w, status, ErrorResponse{
		Error:   err.Message,
		Code:    err.Code,
		Details: err.Details,
	})
}

// StatusFromCode maps ErrorCode to HTTP status code
func StatusFromCode(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeValidation,
		apperrors.ErrCodeInvalidInput,
		apperrors.ErrCodeMissingRequired:
		return http.StatusBadRequest

	case apperrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized

	case apperrors.ErrCodeForbidden:
		return http.StatusForbidden

	// A missing 2FA secret is reported like a missing resource.
	case apperrors.ErrCodeNotFound,
		apperrors.ErrCodeNotConfigured:
		return http.StatusNotFound

	case apperrors.ErrCodeAlreadyExists,
		apperrors.ErrCodeConflict,
		apperrors.ErrCodeConcurrentUpdate,
		apperrors.ErrCodeAccountBusy:
		return http.StatusConflict

	case apperrors.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests

	default:
		return http.StatusInternalServerError
	}
}
