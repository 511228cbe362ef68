package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kamikazebr/therapy-records/pkg/models"
	"github.com/kamikazebr/therapy-records/pkg/utils"
)

const testJWTSecret = "test-secret-key-for-testing"

func signup(t *testing.T, s *testServer, serial, password string) {
	t.Helper()
	rec := s.doJSON(t, http.MethodPost, "/auth/signup", models.SignupRequest{
		SerialNumber:  serial,
		ModelNumber:   "MDL-1",
		DeviceType:    "CPAP",
		ContactNumber: "5550100",
		Password:      password,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestSignup(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.doJSON(t, http.MethodPost, "/auth/signup", models.SignupRequest{
		SerialNumber:  "SN-1",
		ModelNumber:   "MDL-1",
		DeviceType:    "APAP",
		ContactNumber: "5550100",
		Password:      "pw",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeBody[models.SignupResponse](t, rec)
	assert.Equal(t, "SN-1", resp.Account.SerialNumber)
	assert.NotContains(t, rec.Body.String(), `"pw"`)

	rec = s.doJSON(t, http.MethodPost, "/auth/signup", models.SignupRequest{
		SerialNumber: "SN-1", ModelNumber: "M", DeviceType: "CPAP", ContactNumber: "1", Password: "x",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.doJSON(t, http.MethodPost, "/auth/signup", models.SignupRequest{
		SerialNumber: "SN-2", ModelNumber: "M", DeviceType: "Ventilator", ContactNumber: "1", Password: "x",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "device_type", decodeBody[models.ErrorResponse](t, rec).Field)

	rec = s.do(t, http.MethodPost, "/auth/signup", "application/json", "{")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin_LockoutFlow(t *testing.T) {
	s := newTestServer(t, nil)
	signup(t, s, "SN-1", "pw")

	login := func(password string) *models.ErrorResponse {
		rec := s.doJSON(t, http.MethodPost, "/auth/login", models.LoginRequest{SerialNumber: "SN-1", Password: password})
		if rec.Code == http.StatusOK {
			return nil
		}
		resp := decodeBody[models.ErrorResponse](t, rec)
		return &resp
	}

	resp := login("wrong")
	require.NotNil(t, resp)
	require.NotNil(t, resp.AttemptsLeft)
	assert.Equal(t, 2, *resp.AttemptsLeft)
	assert.Equal(t, "Unauthorized", resp.Error)

	resp = login("wrong")
	require.NotNil(t, resp)
	assert.Equal(t, 1, *resp.AttemptsLeft)

	rec := s.doJSON(t, http.MethodPost, "/auth/login", models.LoginRequest{SerialNumber: "SN-1", Password: "wrong"})
	require.Equal(t, http.StatusLocked, rec.Code)
	assert.Equal(t, "300", rec.Header().Get("Retry-After"))
	assert.Equal(t, 300, decodeBody[models.ErrorResponse](t, rec).RetryAfter)

	// Correct password is still rejected while locked
	rec = s.doJSON(t, http.MethodPost, "/auth/login", models.LoginRequest{SerialNumber: "SN-1", Password: "pw"})
	assert.Equal(t, http.StatusLocked, rec.Code)

	rec = s.do(t, http.MethodGet, "/auth/lockout/SN-1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	status := decodeBody[models.LockoutStatusResponse](t, rec)
	assert.True(t, status.Locked)
	assert.Equal(t, 3, status.FailureCount)
	assert.LessOrEqual(t, status.RemainingSeconds, 300)
	assert.Greater(t, status.RemainingSeconds, 0)
}

func TestLogin_UnknownAccountLooksLikeWrongPassword(t *testing.T) {
	s := newTestServer(t, nil)
	signup(t, s, "SN-1", "pw")

	wrong := s.doJSON(t, http.MethodPost, "/auth/login", models.LoginRequest{SerialNumber: "SN-1", Password: "nope"})
	unknown := s.doJSON(t, http.MethodPost, "/auth/login", models.LoginRequest{SerialNumber: "SN-9", Password: "nope"})

	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, wrong.Code, unknown.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())
}

func TestLogin_IssuesTokenWhenSecretConfigured(t *testing.T) {
	s := newTestServer(t, func(cfg *RouterConfig) {
		cfg.JWTSecret = testJWTSecret
	})
	signup(t, s, "SN-1", "pw")

	rec := s.doJSON(t, http.MethodPost, "/auth/login", models.LoginRequest{SerialNumber: "SN-1", Password: "pw"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[models.LoginResponse](t, rec)
	require.NotEmpty(t, resp.Token)
	assert.Equal(t, "SN-1", resp.Account.SerialNumber)

	claims, err := utils.ValidateJWT(resp.Token, testJWTSecret)
	require.NoError(t, err)
	assert.Equal(t, "SN-1", claims.SerialNumber)
	assert.Equal(t, "CPAP", claims.DeviceType)
}

func TestLogin_NoTokenWithoutSecret(t *testing.T) {
	s := newTestServer(t, nil)
	signup(t, s, "SN-1", "pw")

	rec := s.doJSON(t, http.MethodPost, "/auth/login", models.LoginRequest{SerialNumber: "SN-1", Password: "pw"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[models.LoginResponse](t, rec).Token)
}

func TestLogin_EmptyFields(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.doJSON(t, http.MethodPost, "/auth/login", models.LoginRequest{SerialNumber: "SN-1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "password", decodeBody[models.ErrorResponse](t, rec).Field)
	assert.Equal(t, 0, s.gate.LockoutStatus("SN-1").FailureCount)
}

func TestRequireAuth(t *testing.T) {
	s := newTestServer(t, func(cfg *RouterConfig) {
		cfg.JWTSecret = testJWTSecret
		cfg.RequireAuth = true
	})
	s.tdb.CreateTestAccount(context.Background(), "SN-1", "pw")

	rec := s.do(t, http.MethodGet, "/records", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := utils.GenerateJWT("SN-1", "CPAP", testJWTSecret, time.Hour)
	require.NoError(t, err)

	for _, header := range []string{"Token " + token, "Bearer", "Bearer not-a-jwt"} {
		req := newRequest(http.MethodGet, "/records", header)
		rec := serve(s, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
	}

	rec = serve(s, newRequest(http.MethodGet, "/records", "Bearer "+token))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Auth and health stay public
	rec = s.doJSON(t, http.MethodPost, "/auth/login", models.LoginRequest{SerialNumber: "SN-1", Password: "pw"})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetDeviceClaims(t *testing.T) {
	token, err := utils.GenerateJWT("SN-7", "BiPAP", testJWTSecret, time.Hour)
	require.NoError(t, err)

	var got *utils.Claims
	handler := NewAuthMiddleware(testJWTSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetDeviceClaims(r)
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := serveHandler(handler, newRequest(http.MethodGet, "/", "Bearer "+token))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, "SN-7", got.SerialNumber)
}

func TestRecordMutationLogsDeviceSerial(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := newTestServer(t, func(cfg *RouterConfig) {
		cfg.JWTSecret = testJWTSecret
		cfg.RequireAuth = true
		cfg.Logger = zap.New(core)
	})

	token, err := utils.GenerateJWT("SN-7", "BiPAP", testJWTSecret, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/records", strings.NewReader(`{"start_date":"15/06/2024"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := serve(s, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decodeBody[models.RecordMutationResponse](t, rec).RecordID

	entries := logs.FilterMessage("record created").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "SN-7", fields["device_serial"])
	assert.Equal(t, id, fields["record_id"])
}

func TestRecordMutationLogsWithoutToken(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := newTestServer(t, func(cfg *RouterConfig) {
		cfg.Logger = zap.New(core)
	})

	rec := s.do(t, http.MethodPost, "/records", "application/json", `{"start_date":"15/06/2024"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody[models.RecordMutationResponse](t, rec).RecordID

	rec = s.do(t, http.MethodDelete, "/records/"+id, "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	entries := logs.FilterMessage("record deleted").All()
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].ContextMap(), "device_serial")
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodOptions, "/records", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
