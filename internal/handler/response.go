package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/gthanmon/gemini-account-manager/internal/errors"
	"github.com/gthanmon/gemini-account-manager/internal/httputil"
	"github.com/gthanmon/gemini-account-manager/internal/middleware"
	"github.com/gthanmon/gemini-account-manager/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}

func callerFrom(w http.ResponseWriter, r *http.Request) (model.Caller, bool) {
	caller, ok := middleware.GetCaller(r.Context())
	if !ok {
		writeError(w, apperrors.Unauthorized("Unauthorized"))
	}
	return caller, ok
}

// decodeJSON reads the body into dst and runs struct validation on it.
func decodeJSON(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httputil.WriteErrorWithStatus(w, http.StatusRequestEntityTooLarge,
				apperrors.ValidationError("Request body too large"))
			return false
		}
		writeError(w, apperrors.Wrap(apperrors.ErrCodeValidation, "Invalid request body", err))
		return false
	}

	if err := v.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			writeError(w, apperrors.ValidationError(err.Error()))
			return false
		}
		details := make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			details[fe.Field()] = fe.Tag()
		}
		writeError(w, apperrors.ValidationError("Request validation failed").WithDetails(details))
		return false
	}
	return true
}

type accountResponse struct {
	Success bool           `json:"success"`
	Account *model.Account `json:"account"`
}

type accountListResponse struct {
	Success  bool            `json:"success"`
	Count    int             `json:"count"`
	Accounts []model.Account `json:"accounts"`
}

type notificationListResponse struct {
	Success       bool                 `json:"success"`
	Count         int                  `json:"count"`
	Notifications []model.Notification `json:"notifications"`
}
