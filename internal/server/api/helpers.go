package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/kamikazebr/therapy-records/internal/server/services"
	"github.com/kamikazebr/therapy-records/pkg/models"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

func writeJSON(w http.ResponseWriter, data interface{}) error {
	return json.NewEncoder(w).Encode(data)
}

func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, data)
}

func respondErrorJSON(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, models.ErrorResponse{
		Status:  statusError,
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}

func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// respondServiceError maps service errors onto status codes. Unknown errors
// are logged and reported as 500 with their message.
func respondServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var (
		validation  *services.ValidationError
		duplicate   *services.DuplicateError
		locked      *services.AccountLockedError
		invalid     *services.InvalidCredentialsError
		unknownUser *services.UserNotFoundError
	)

	switch {
	case errors.As(err, &validation):
		respondJSON(w, http.StatusBadRequest, models.ErrorResponse{
			Status:  statusError,
			Error:   http.StatusText(http.StatusBadRequest),
			Message: validation.Error(),
			Field:   validation.Field,
		})

	case errors.As(err, &duplicate):
		respondErrorJSON(w, http.StatusConflict, duplicate.Error())

	case errors.Is(err, services.ErrNotFound):
		respondErrorJSON(w, http.StatusNotFound, err.Error())

	case errors.As(err, &locked):
		retryAfter := int(math.Ceil(locked.Remaining.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		respondJSON(w, http.StatusLocked, models.ErrorResponse{
			Status:     statusError,
			Error:      http.StatusText(http.StatusLocked),
			Message:    "account locked after repeated failed logins",
			RetryAfter: retryAfter,
		})

	// Unknown accounts and wrong secrets look the same to the caller
	case errors.As(err, &invalid):
		respondBadCredentials(w, invalid.AttemptsLeft)
	case errors.As(err, &unknownUser):
		respondBadCredentials(w, unknownUser.AttemptsLeft)

	case errors.Is(err, services.ErrForwardNotConfigured):
		respondErrorJSON(w, http.StatusServiceUnavailable, err.Error())

	default:
		logger.Error("request failed", zap.Error(err))
		respondErrorJSON(w, http.StatusInternalServerError, err.Error())
	}
}

func respondBadCredentials(w http.ResponseWriter, attemptsLeft int) {
	respondJSON(w, http.StatusUnauthorized, models.ErrorResponse{
		Status:       statusError,
		Error:        http.StatusText(http.StatusUnauthorized),
		Message:      "invalid serial number or password",
		AttemptsLeft: &attemptsLeft,
	})
}
