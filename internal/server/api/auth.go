package api

import (
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kamikazebr/therapy-records/internal/server/services"
	"github.com/kamikazebr/therapy-records/pkg/models"
	"github.com/kamikazebr/therapy-records/pkg/utils"
)

type AuthHandler struct {
	accounts      *services.AccountService
	gate          *services.LoginGate
	jwtSecret     string
	jwtExpiration time.Duration
	logger        *zap.Logger
}

// NewAuthHandler serves signup and login. Tokens are issued only when
// jwtSecret is set.
func NewAuthHandler(
	accounts *services.AccountService,
	gate *services.LoginGate,
	jwtSecret string,
	jwtExpiration time.Duration,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		accounts:      accounts,
		gate:          gate,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
		logger:        logger,
	}
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest

	if err := decodeJSON(r, &req); err != nil {
		respondErrorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := h.accounts.CreateAccount(r.Context(),
		req.SerialNumber, req.ModelNumber, req.DeviceType, req.ContactNumber, req.Password)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, models.SignupResponse{
		Status:  statusSuccess,
		Message: "Account created",
		Account: account,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest

	if err := decodeJSON(r, &req); err != nil {
		respondErrorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := h.gate.AttemptLogin(r.Context(), req.SerialNumber, req.Password)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	response := models.LoginResponse{
		Status:  statusSuccess,
		Account: account,
	}

	if h.jwtSecret != "" {
		token, err := utils.GenerateJWT(account.SerialNumber, string(account.DeviceType), h.jwtSecret, h.jwtExpiration)
		if err != nil {
			respondServiceError(w, h.logger, err)
			return
		}
		response.Token = token
		response.ExpiresAt = time.Now().UTC().Add(h.jwtExpiration).Format(time.RFC3339)
	}

	h.logger.Info("login succeeded", zap.String("serial_number", account.SerialNumber))
	respondJSON(w, http.StatusOK, response)
}

func (h *AuthHandler) LockoutStatus(w http.ResponseWriter, r *http.Request) {
	serial := chi.URLParam(r, "serial")

	status := h.gate.LockoutStatus(serial)
	respondJSON(w, http.StatusOK, models.LockoutStatusResponse{
		SerialNumber:     serial,
		Locked:           status.Locked,
		RemainingSeconds: int(math.Ceil(status.Remaining.Seconds())),
		FailureCount:     status.FailureCount,
	})
}
