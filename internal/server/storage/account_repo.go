package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kamikazebr/therapy-records/pkg/models"
)

type AccountRepository struct {
	db *DB
}

func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// accountRow keeps registered_at as text so SQLite and Postgres scan alike.
type accountRow struct {
	SerialNumber     string `db:"serial_number"`
	ModelNumber      string `db:"model_number"`
	DeviceType       string `db:"device_type"`
	ContactNumber    string `db:"contact_number"`
	CredentialSecret string `db:"credential_secret"`
	RegisteredAt     string `db:"registered_at"`
}

func (row accountRow) toModel() (*models.Account, error) {
	registeredAt, err := time.Parse(time.RFC3339Nano, row.RegisteredAt)
	if err != nil {
		return nil, fmt.Errorf("invalid registered_at for %s: %w", row.SerialNumber, err)
	}
	return &models.Account{
		SerialNumber:     row.SerialNumber,
		ModelNumber:      row.ModelNumber,
		DeviceType:       models.DeviceType(row.DeviceType),
		ContactNumber:    row.ContactNumber,
		CredentialSecret: row.CredentialSecret,
		RegisteredAt:     registeredAt,
	}, nil
}

// Create inserts a new account. A serial number collision returns ErrDuplicateKey.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	query := r.db.Rebind(`
		INSERT INTO accounts (serial_number, model_number, device_type, contact_number, credential_secret, registered_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	_, err := r.db.ExecContext(ctx, query,
		account.SerialNumber, account.ModelNumber, string(account.DeviceType),
		account.ContactNumber, account.CredentialSecret,
		account.RegisteredAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicateKey
	}
	return err
}

func (r *AccountRepository) GetBySerial(ctx context.Context, serialNumber string) (*models.Account, error) {
	var row accountRow
	query := r.db.Rebind(`SELECT * FROM accounts WHERE serial_number = ?`)
	err := r.db.GetContext(ctx, &row, query, serialNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.toModel()
}

func (r *AccountRepository) Exists(ctx context.Context, serialNumber string) (bool, error) {
	var count int
	query := r.db.Rebind(`SELECT COUNT(*) FROM accounts WHERE serial_number = ?`)
	err := r.db.GetContext(ctx, &count, query, serialNumber)
	return count > 0, err
}

func (r *AccountRepository) ListAll(ctx context.Context) ([]models.Account, error) {
	var rows []accountRow
	query := `SELECT * FROM accounts ORDER BY registered_at DESC`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}
	accounts := make([]models.Account, 0, len(rows))
	for _, row := range rows {
		account, err := row.toModel()
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	return accounts, nil
}
