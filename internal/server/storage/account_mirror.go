package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/kamikazebr/therapy-records/pkg/models"
	"github.com/kamikazebr/therapy-records/pkg/utils"
)

// AccountMirror is an append-only JSON list of every account ever created,
// kept next to the database for audit and export. Credential secrets are
// never written to it.
type AccountMirror struct {
	path string
	mu   sync.Mutex
}

func NewAccountMirror(path string) *AccountMirror {
	return &AccountMirror{path: path}
}

// Append adds the account unless an entry with the same serial number exists.
// It reports whether the file changed.
func (m *AccountMirror) Append(account *models.Account) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.load()
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.SerialNumber == account.SerialNumber {
			return false, nil
		}
	}

	entries = append(entries, *account)
	data, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return false, fmt.Errorf("encode account mirror: %w", err)
	}
	if err := utils.WriteFileAtomic(m.path, data, 0o644); err != nil {
		return false, err
	}
	return true, nil
}

// List returns the mirrored accounts in insertion order.
func (m *AccountMirror) List() ([]models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load()
}

func (m *AccountMirror) load() ([]models.Account, error) {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read account mirror: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var entries []models.Account
	if err := json.Unmarshal(data, &entries); err != nil {
		// Never overwrite a mirror we cannot read
		return nil, fmt.Errorf("decode account mirror: %w", err)
	}
	return entries, nil
}
