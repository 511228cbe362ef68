package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kamikazebr/therapy-records/pkg/models"
)

type fakeAccounts struct {
	accounts map[string]*models.Account
	err      error
	calls    int
}

func (f *fakeAccounts) GetAccount(ctx context.Context, serialNumber string) (*models.Account, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if a, ok := f.accounts[serialNumber]; ok {
		return a, nil
	}
	return nil, &NotFoundError{Kind: "account", Key: serialNumber}
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func setupLoginGate(t *testing.T) (*LoginGate, *fakeAccounts, *fakeClock) {
	t.Helper()

	accounts := &fakeAccounts{accounts: map[string]*models.Account{
		"SN-1": {SerialNumber: "SN-1", DeviceType: models.DeviceTypeCPAP, CredentialSecret: "secret"},
		"SN-2": {SerialNumber: "SN-2", DeviceType: models.DeviceTypeAPAP, CredentialSecret: "other"},
	}}
	clock := &fakeClock{now: time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)}

	gate := NewLoginGate(accounts, PlainCredentials{}, zap.NewNop())
	gate.SetClock(clock.Now)
	return gate, accounts, clock
}

func TestLoginGate_Success(t *testing.T) {
	gate, _, _ := setupLoginGate(t)

	account, err := gate.AttemptLogin(context.Background(), "SN-1", "secret")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if account.SerialNumber != "SN-1" {
		t.Errorf("expected SN-1, got %s", account.SerialNumber)
	}
}

func TestLoginGate_ThirdFailureLocksForFiveMinutes(t *testing.T) {
	gate, _, clock := setupLoginGate(t)
	ctx := context.Background()

	for i, wantLeft := range []int{2, 1} {
		_, err := gate.AttemptLogin(ctx, "SN-1", "wrong")
		var invalid *InvalidCredentialsError
		if !errors.As(err, &invalid) {
			t.Fatalf("attempt %d: expected InvalidCredentialsError, got %v", i+1, err)
		}
		if invalid.AttemptsLeft != wantLeft {
			t.Errorf("attempt %d: expected %d attempts left, got %d", i+1, wantLeft, invalid.AttemptsLeft)
		}
	}

	_, err := gate.AttemptLogin(ctx, "SN-1", "wrong")
	var locked *AccountLockedError
	if !errors.As(err, &locked) {
		t.Fatalf("expected AccountLockedError on third failure, got %v", err)
	}
	if locked.Remaining != 5*time.Minute {
		t.Errorf("expected 5m lockout, got %s", locked.Remaining)
	}

	// One second before the window ends the lock still holds
	clock.Advance(5*time.Minute - time.Second)
	_, err = gate.AttemptLogin(ctx, "SN-1", "secret")
	if !errors.As(err, &locked) {
		t.Fatalf("expected lockout to hold, got %v", err)
	}
	if locked.Remaining != time.Second {
		t.Errorf("expected 1s remaining, got %s", locked.Remaining)
	}

	clock.Advance(time.Second)
	if _, err := gate.AttemptLogin(ctx, "SN-1", "secret"); err != nil {
		t.Fatalf("expected login to succeed once the window passed, got %v", err)
	}
}

func TestLoginGate_LockedAttemptSkipsCredentialCheck(t *testing.T) {
	gate, accounts, _ := setupLoginGate(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		gate.AttemptLogin(ctx, "SN-1", "wrong")
	}
	callsBefore := accounts.calls

	_, err := gate.AttemptLogin(ctx, "SN-1", "secret")
	var locked *AccountLockedError
	if !errors.As(err, &locked) {
		t.Fatalf("expected AccountLockedError with correct secret during lockout, got %v", err)
	}
	if accounts.calls != callsBefore {
		t.Errorf("account store consulted during lockout")
	}
}

func TestLoginGate_SuccessResetsFailureCount(t *testing.T) {
	for _, failures := range []int{1, 2} {
		gate, _, _ := setupLoginGate(t)
		ctx := context.Background()

		for i := 0; i < failures; i++ {
			gate.AttemptLogin(ctx, "SN-1", "wrong")
		}
		if _, err := gate.AttemptLogin(ctx, "SN-1", "secret"); err != nil {
			t.Fatalf("failures=%d: expected success, got %v", failures, err)
		}
		if got := gate.LockoutStatus("SN-1").FailureCount; got != 0 {
			t.Errorf("failures=%d: expected counter reset, got %d", failures, got)
		}

		// A full three more failures are needed to lock again
		_, err := gate.AttemptLogin(ctx, "SN-1", "wrong")
		var invalid *InvalidCredentialsError
		if !errors.As(err, &invalid) || invalid.AttemptsLeft != 2 {
			t.Errorf("failures=%d: expected 2 attempts left after reset, got %v", failures, err)
		}
	}
}

func TestLoginGate_UnknownSerialCountsTowardLockout(t *testing.T) {
	gate, _, _ := setupLoginGate(t)
	ctx := context.Background()

	_, err := gate.AttemptLogin(ctx, "SN-404", "x")
	var notFound *UserNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected UserNotFoundError, got %v", err)
	}
	if notFound.AttemptsLeft != 2 {
		t.Errorf("expected 2 attempts left, got %d", notFound.AttemptsLeft)
	}

	gate.AttemptLogin(ctx, "SN-404", "x")
	_, err = gate.AttemptLogin(ctx, "SN-404", "x")
	var locked *AccountLockedError
	if !errors.As(err, &locked) {
		t.Fatalf("expected lockout for unknown serial, got %v", err)
	}
}

func TestLoginGate_SerialNumbersAreIndependent(t *testing.T) {
	gate, _, _ := setupLoginGate(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		gate.AttemptLogin(ctx, "SN-1", "wrong")
	}
	if _, err := gate.AttemptLogin(ctx, "SN-2", "other"); err != nil {
		t.Fatalf("lockout leaked to another serial: %v", err)
	}
}

func TestLoginGate_EmptyInputDoesNotCount(t *testing.T) {
	gate, accounts, _ := setupLoginGate(t)
	ctx := context.Background()

	for _, tc := range []struct{ serial, secret, field string }{
		{"", "secret", "serial_number"},
		{"SN-1", "", "password"},
	} {
		_, err := gate.AttemptLogin(ctx, tc.serial, tc.secret)
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Field != tc.field {
			t.Errorf("expected ValidationError(%s), got %v", tc.field, err)
		}
	}
	if accounts.calls != 0 {
		t.Errorf("account store consulted for empty input")
	}
	if got := gate.LockoutStatus("SN-1").FailureCount; got != 0 {
		t.Errorf("expected no failures recorded, got %d", got)
	}
}

func TestLoginGate_StoreErrorLeavesStateUntouched(t *testing.T) {
	gate, accounts, _ := setupLoginGate(t)
	accounts.err = errors.New("database is locked")

	_, err := gate.AttemptLogin(context.Background(), "SN-1", "wrong")
	var serr *StoreError
	if !errors.As(err, &serr) {
		t.Fatalf("expected StoreError, got %v", err)
	}
	if got := gate.LockoutStatus("SN-1").FailureCount; got != 0 {
		t.Errorf("store failure counted as a login failure")
	}
}

func TestLoginGate_LockoutStatus(t *testing.T) {
	gate, _, clock := setupLoginGate(t)
	ctx := context.Background()

	if status := gate.LockoutStatus("SN-1"); status.Locked || status.FailureCount != 0 {
		t.Fatalf("expected clean status, got %+v", status)
	}

	gate.AttemptLogin(ctx, "SN-1", "wrong")
	if status := gate.LockoutStatus("SN-1"); status.Locked || status.FailureCount != 1 {
		t.Errorf("expected one failure, got %+v", status)
	}

	gate.AttemptLogin(ctx, "SN-1", "wrong")
	gate.AttemptLogin(ctx, "SN-1", "wrong")
	clock.Advance(2 * time.Minute)

	status := gate.LockoutStatus("SN-1")
	if !status.Locked || status.Remaining != 3*time.Minute || status.FailureCount != 3 {
		t.Errorf("expected locked with 3m remaining, got %+v", status)
	}

	clock.Advance(3 * time.Minute)
	if status := gate.LockoutStatus("SN-1"); status.Locked || status.FailureCount != 0 {
		t.Errorf("expected expired lock to clear, got %+v", status)
	}
}

func TestLoginGate_PruneExpired(t *testing.T) {
	gate, _, clock := setupLoginGate(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		gate.AttemptLogin(ctx, "SN-1", "wrong")
	}
	gate.AttemptLogin(ctx, "SN-2", "wrong")

	if n := gate.PruneExpired(); n != 0 {
		t.Errorf("expected nothing pruned inside the window, got %d", n)
	}
	clock.Advance(LockoutWindow)
	if n := gate.PruneExpired(); n != 1 {
		t.Errorf("expected one expired lock pruned, got %d", n)
	}
	if got := gate.LockoutStatus("SN-2").FailureCount; got != 1 {
		t.Errorf("open state should survive pruning, got %d failures", got)
	}
}

func TestLoginGate_Metrics(t *testing.T) {
	gate, _, _ := setupLoginGate(t)
	metrics := NewMetrics(prometheus.NewRegistry())
	gate.SetMetrics(metrics)
	ctx := context.Background()

	gate.AttemptLogin(ctx, "SN-1", "secret")
	gate.AttemptLogin(ctx, "SN-1", "wrong")
	gate.AttemptLogin(ctx, "SN-404", "x")

	if got := promtestutil.ToFloat64(metrics.LoginAttempts.WithLabelValues(LoginOutcomeSuccess)); got != 1 {
		t.Errorf("expected 1 success, got %v", got)
	}
	if got := promtestutil.ToFloat64(metrics.LoginAttempts.WithLabelValues(LoginOutcomeInvalid)); got != 1 {
		t.Errorf("expected 1 invalid, got %v", got)
	}
	if got := promtestutil.ToFloat64(metrics.LoginAttempts.WithLabelValues(LoginOutcomeUnknown)); got != 1 {
		t.Errorf("expected 1 unknown, got %v", got)
	}
}
