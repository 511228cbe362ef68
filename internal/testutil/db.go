package testutil

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/kamikazebr/therapy-records/internal/server/storage"
)

// TestDB wraps an isolated in-memory SQLite database with the schema applied.
type TestDB struct {
	DB *storage.DB
	t  *testing.T
}

// GetTestDB opens a fresh in-memory database for the test and closes it on cleanup.
func GetTestDB(t *testing.T) *TestDB {
	t.Helper()

	// Each Open gets its own private in-memory database on a single connection
	db, err := storage.Open(storage.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := storage.Migrate(context.Background(), db, zap.NewNop()); err != nil {
		db.Close()
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	tdb := &TestDB{DB: db, t: t}
	t.Cleanup(tdb.Close)
	return tdb
}

// Close closes the database connection
func (tdb *TestDB) Close() {
	if tdb.DB != nil {
		tdb.DB.Close()
	}
}

// Exec executes a query and fails the test on error
func (tdb *TestDB) Exec(ctx context.Context, query string, args ...interface{}) {
	tdb.t.Helper()
	_, err := tdb.DB.ExecContext(ctx, tdb.DB.Rebind(query), args...)
	if err != nil {
		tdb.t.Fatalf("Failed to execute query: %v", err)
	}
}

// Repositories creates all standard repositories for testing
func (tdb *TestDB) Repositories() *TestRepositories {
	return &TestRepositories{
		Accounts: storage.NewAccountRepository(tdb.DB),
		Records:  storage.NewRecordRepository(tdb.DB),
	}
}

// TestRepositories contains all repositories for testing
type TestRepositories struct {
	Accounts *storage.AccountRepository
	Records  *storage.RecordRepository
}
