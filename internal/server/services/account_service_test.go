package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kamikazebr/therapy-records/internal/server/storage"
	"github.com/kamikazebr/therapy-records/internal/testutil"
	"github.com/kamikazebr/therapy-records/pkg/models"
)

func setupAccountService(t *testing.T, credentials Credentials) (*AccountService, string) {
	t.Helper()

	tdb := testutil.GetTestDB(t)
	mirrorPath := filepath.Join(t.TempDir(), "signupdetails.json")
	mirror := storage.NewAccountMirror(mirrorPath)
	return NewAccountService(tdb.Repositories().Accounts, mirror, credentials, zap.NewNop()), mirrorPath
}

func TestAccountService_CreateAccount(t *testing.T) {
	service, mirrorPath := setupAccountService(t, nil)
	ctx := context.Background()

	serial := testutil.GenerateTestSerial()
	account, err := service.CreateAccount(ctx, serial, "MDL-7", "BiPAP", "5550100", "pw")
	require.NoError(t, err)
	assert.Equal(t, models.DeviceTypeBiPAP, account.DeviceType)
	assert.False(t, account.RegisteredAt.IsZero())

	got, err := service.GetAccount(ctx, serial)
	require.NoError(t, err)
	assert.Equal(t, "pw", got.CredentialSecret)

	exists, err := service.AccountExists(ctx, serial)
	require.NoError(t, err)
	assert.True(t, exists)

	entries, err := storage.NewAccountMirror(mirrorPath).List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, serial, entries[0].SerialNumber)
}

func TestAccountService_DuplicateSerial(t *testing.T) {
	service, mirrorPath := setupAccountService(t, nil)
	ctx := context.Background()

	_, err := service.CreateAccount(ctx, "SN-DUP", "MDL-1", "CPAP", "1", "a")
	require.NoError(t, err)

	_, err = service.CreateAccount(ctx, "SN-DUP", "MDL-2", "APAP", "2", "b")
	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "SN-DUP", dup.Key)

	entries, err := storage.NewAccountMirror(mirrorPath).List()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAccountService_Validation(t *testing.T) {
	service, _ := setupAccountService(t, nil)
	ctx := context.Background()

	tests := []struct {
		name                                   string
		serial, model, deviceType, contact, pw string
		wantField                              string
	}{
		{"missing serial", "", "M", "CPAP", "1", "pw", "serial_number"},
		{"blank model", "SN", "  ", "CPAP", "1", "pw", "model_number"},
		{"missing device type", "SN", "M", "", "1", "pw", "device_type"},
		{"unknown device type", "SN", "M", "BPAP", "1", "pw", "device_type"},
		{"missing contact", "SN", "M", "CPAP", "", "pw", "contact_number"},
		{"missing secret", "SN", "M", "CPAP", "1", "", "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.CreateAccount(ctx, tt.serial, tt.model, tt.deviceType, tt.contact, tt.pw)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestAccountService_GetMissingAccount(t *testing.T) {
	service, _ := setupAccountService(t, nil)

	_, err := service.GetAccount(context.Background(), "SN-404")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestAccountService_MirrorFailureDoesNotFailCreate(t *testing.T) {
	service, mirrorPath := setupAccountService(t, nil)
	require.NoError(t, os.WriteFile(mirrorPath, []byte("corrupt"), 0o644))
	ctx := context.Background()

	_, err := service.CreateAccount(ctx, "SN-1", "M", "CPAP", "1", "pw")
	require.NoError(t, err)

	exists, err := service.AccountExists(ctx, "SN-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestAccountService_BcryptCredentials(t *testing.T) {
	service, _ := setupAccountService(t, BcryptCredentials{Cost: 4})
	ctx := context.Background()

	account, err := service.CreateAccount(ctx, "SN-1", "M", "APAP", "1", "pw")
	require.NoError(t, err)
	assert.NotEqual(t, "pw", account.CredentialSecret)

	gate := NewLoginGate(service, service.Credentials(), zap.NewNop())
	_, err = gate.AttemptLogin(ctx, "SN-1", "pw")
	assert.NoError(t, err)

	_, err = gate.AttemptLogin(ctx, "SN-1", "nope")
	var invalid *InvalidCredentialsError
	assert.ErrorAs(t, err, &invalid)
}

func TestNewCredentials(t *testing.T) {
	c, err := NewCredentials("")
	require.NoError(t, err)
	assert.IsType(t, PlainCredentials{}, c)

	c, err = NewCredentials(CredentialModeBcrypt)
	require.NoError(t, err)
	assert.IsType(t, BcryptCredentials{}, c)

	_, err = NewCredentials("rot13")
	assert.Error(t, err)
}

func TestPlainCredentials_ExactMatch(t *testing.T) {
	c := PlainCredentials{}
	assert.True(t, c.Matches("Secret", "Secret"))
	assert.False(t, c.Matches("Secret", "secret"))
	assert.False(t, c.Matches("Secret", "Secret "))
}
