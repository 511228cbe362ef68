package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kamikazebr/therapy-records/internal/server/storage"
	"github.com/kamikazebr/therapy-records/pkg/models"
)

type AccountService struct {
	accountRepo *storage.AccountRepository
	mirror      *storage.AccountMirror
	credentials Credentials
	logger      *zap.Logger
	now         func() time.Time
}

// NewAccountService builds the account store. mirror may be nil.
func NewAccountService(
	accountRepo *storage.AccountRepository,
	mirror *storage.AccountMirror,
	credentials Credentials,
	logger *zap.Logger,
) *AccountService {
	if credentials == nil {
		credentials = PlainCredentials{}
	}
	return &AccountService{
		accountRepo: accountRepo,
		mirror:      mirror,
		credentials: credentials,
		logger:      logger,
		now:         time.Now,
	}
}

// Credentials returns the policy secrets are sealed with.
func (s *AccountService) Credentials() Credentials {
	return s.credentials
}

func (s *AccountService) CreateAccount(ctx context.Context, serialNumber, modelNumber, deviceType, contactNumber, secret string) (*models.Account, error) {
	required := []struct{ field, value string }{
		{"serial_number", serialNumber},
		{"model_number", modelNumber},
		{"device_type", deviceType},
		{"contact_number", contactNumber},
		{"password", secret},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return nil, &ValidationError{Field: r.field, Message: "is required"}
		}
	}
	if !models.DeviceType(deviceType).Valid() {
		return nil, &ValidationError{Field: "device_type", Message: "must be CPAP, APAP or BiPAP"}
	}

	sealed, err := s.credentials.Seal(secret)
	if err != nil {
		return nil, storeErr("seal secret", err)
	}

	account := &models.Account{
		SerialNumber:     serialNumber,
		ModelNumber:      modelNumber,
		DeviceType:       models.DeviceType(deviceType),
		ContactNumber:    contactNumber,
		CredentialSecret: sealed,
		RegisteredAt:     s.now().UTC().Truncate(time.Second),
	}

	if err := s.accountRepo.Create(ctx, account); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, &DuplicateError{Kind: "account", Key: serialNumber}
		}
		return nil, storeErr("create account", err)
	}

	// Mirror is best-effort
	if s.mirror != nil {
		if _, err := s.mirror.Append(account); err != nil {
			s.logger.Warn("failed to update account mirror",
				zap.String("serial_number", serialNumber), zap.Error(err))
		}
	}

	s.logger.Info("account created",
		zap.String("serial_number", serialNumber),
		zap.String("device_type", deviceType))
	return account, nil
}

func (s *AccountService) GetAccount(ctx context.Context, serialNumber string) (*models.Account, error) {
	account, err := s.accountRepo.GetBySerial(ctx, serialNumber)
	if err != nil {
		return nil, storeErr("get account", err)
	}
	if account == nil {
		return nil, &NotFoundError{Kind: "account", Key: serialNumber}
	}
	return account, nil
}

func (s *AccountService) AccountExists(ctx context.Context, serialNumber string) (bool, error) {
	exists, err := s.accountRepo.Exists(ctx, serialNumber)
	if err != nil {
		return false, storeErr("check account", err)
	}
	return exists, nil
}

func (s *AccountService) ListAccounts(ctx context.Context) ([]models.Account, error) {
	accounts, err := s.accountRepo.ListAll(ctx)
	if err != nil {
		return nil, storeErr("list accounts", err)
	}
	return accounts, nil
}
