package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kamikazebr/therapy-records/pkg/models"
)

const (
	// MaxLoginFailures consecutive failures lock a serial number.
	MaxLoginFailures = 3
	LockoutWindow    = 5 * time.Minute
)

// AccountLookup resolves a serial number. Missing accounts must return an
// error matching ErrNotFound.
type AccountLookup interface {
	GetAccount(ctx context.Context, serialNumber string) (*models.Account, error)
}

type attemptState struct {
	failures    int
	lockedUntil time.Time
}

// LockoutStatus is a point-in-time view of one serial number's login state.
type LockoutStatus struct {
	Locked       bool
	Remaining    time.Duration
	FailureCount int
}

// LoginGate tracks failed logins per serial number in memory. A restart
// clears every lockout.
type LoginGate struct {
	accounts    AccountLookup
	credentials Credentials
	logger      *zap.Logger
	metrics     *Metrics
	now         func() time.Time

	mu     sync.Mutex
	states map[string]*attemptState
}

func NewLoginGate(accounts AccountLookup, credentials Credentials, logger *zap.Logger) *LoginGate {
	if credentials == nil {
		credentials = PlainCredentials{}
	}
	return &LoginGate{
		accounts:    accounts,
		credentials: credentials,
		logger:      logger,
		now:         time.Now,
		states:      make(map[string]*attemptState),
	}
}

func (g *LoginGate) SetMetrics(m *Metrics) {
	g.metrics = m
}

// SetClock replaces the time source.
func (g *LoginGate) SetClock(now func() time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
}

// AttemptLogin authenticates serialNumber with secret.
//
// While a serial number is locked every attempt is rejected with
// AccountLockedError without consulting the account store. Unknown serial
// numbers and wrong secrets both count as failures; the third consecutive
// failure locks the serial number for LockoutWindow. A success clears the
// failure count.
func (g *LoginGate) AttemptLogin(ctx context.Context, serialNumber, secret string) (*models.Account, error) {
	if serialNumber == "" {
		return nil, &ValidationError{Field: "serial_number", Message: "is required"}
	}
	if secret == "" {
		return nil, &ValidationError{Field: "password", Message: "is required"}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if st, ok := g.states[serialNumber]; ok && !st.lockedUntil.IsZero() {
		if now.Before(st.lockedUntil) {
			g.metrics.loginAttempt(LoginOutcomeLocked)
			return nil, &AccountLockedError{Remaining: st.lockedUntil.Sub(now)}
		}
		delete(g.states, serialNumber)
	}

	account, err := g.accounts.GetAccount(ctx, serialNumber)
	if err != nil && !errors.Is(err, ErrNotFound) {
		g.metrics.loginAttempt(LoginOutcomeError)
		var se *StoreError
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, storeErr("get account", err)
	}

	if account == nil {
		g.metrics.loginAttempt(LoginOutcomeUnknown)
		return nil, g.recordFailure(serialNumber, now, func(left int) error {
			return &UserNotFoundError{AttemptsLeft: left}
		})
	}

	if !g.credentials.Matches(account.CredentialSecret, secret) {
		g.metrics.loginAttempt(LoginOutcomeInvalid)
		return nil, g.recordFailure(serialNumber, now, func(left int) error {
			return &InvalidCredentialsError{AttemptsLeft: left}
		})
	}

	delete(g.states, serialNumber)
	g.metrics.loginAttempt(LoginOutcomeSuccess)
	return account, nil
}

// recordFailure must be called with g.mu held.
func (g *LoginGate) recordFailure(serialNumber string, now time.Time, reject func(attemptsLeft int) error) error {
	st, ok := g.states[serialNumber]
	if !ok {
		st = &attemptState{}
		g.states[serialNumber] = st
	}
	st.failures++

	if st.failures >= MaxLoginFailures {
		st.lockedUntil = now.Add(LockoutWindow)
		g.logger.Warn("serial number locked after failed logins",
			zap.String("serial_number", serialNumber),
			zap.Int("failures", st.failures),
			zap.Time("locked_until", st.lockedUntil))
		return &AccountLockedError{Remaining: LockoutWindow}
	}
	return reject(MaxLoginFailures - st.failures)
}

// LockoutStatus reports the current state for serialNumber, clearing an
// expired lock.
func (g *LoginGate) LockoutStatus(serialNumber string) LockoutStatus {
	g.mu.Lock()
	defer g.mu.Unlock()

	st, ok := g.states[serialNumber]
	if !ok {
		return LockoutStatus{}
	}
	now := g.now()
	if !st.lockedUntil.IsZero() {
		if now.Before(st.lockedUntil) {
			return LockoutStatus{Locked: true, Remaining: st.lockedUntil.Sub(now), FailureCount: st.failures}
		}
		delete(g.states, serialNumber)
		return LockoutStatus{}
	}
	return LockoutStatus{FailureCount: st.failures}
}

// PruneExpired drops lockouts whose window has passed and returns how many
// were removed.
func (g *LoginGate) PruneExpired() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	removed := 0
	for serial, st := range g.states {
		if !st.lockedUntil.IsZero() && !now.Before(st.lockedUntil) {
			delete(g.states, serial)
			removed++
		}
	}
	return removed
}
