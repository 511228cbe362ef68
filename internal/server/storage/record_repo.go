package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/kamikazebr/therapy-records/pkg/models"
)

var (
	// NULLs from rows written by older tools read back as ""
	recordSelectColumns = func() string {
		cols := []string{`"id"`}
		for _, name := range models.FieldNames {
			cols = append(cols, `COALESCE("`+name+`", '') AS "`+name+`"`)
		}
		return strings.Join(cols, ", ")
	}()

	recordInsertSQL = func() string {
		cols := []string{`"id"`}
		marks := []string{"?"}
		for _, name := range models.FieldNames {
			cols = append(cols, `"`+name+`"`)
			marks = append(marks, "?")
		}
		return `INSERT INTO device_records (` + strings.Join(cols, ", ") + `) VALUES (` + strings.Join(marks, ", ") + `)`
	}()

	recordUpdateSQL = func() string {
		sets := make([]string, 0, len(models.FieldNames))
		for _, name := range models.FieldNames {
			sets = append(sets, `"`+name+`" = ?`)
		}
		return `UPDATE device_records SET ` + strings.Join(sets, ", ") + ` WHERE "id" = ?`
	}()
)

type RecordRepository struct {
	db *DB
}

func NewRecordRepository(db *DB) *RecordRepository {
	return &RecordRepository{db: db}
}

func (r *RecordRepository) Create(ctx context.Context, record *models.DeviceRecord) error {
	args := make([]interface{}, 0, len(models.FieldNames)+1)
	args = append(args, record.ID)
	for _, v := range record.Values() {
		args = append(args, v)
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(recordInsertSQL), args...)
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicateKey
	}
	return err
}

func (r *RecordRepository) GetByID(ctx context.Context, id string) (*models.DeviceRecord, error) {
	var record models.DeviceRecord
	query := r.db.Rebind(`SELECT ` + recordSelectColumns + ` FROM device_records WHERE "id" = ?`)
	err := r.db.GetContext(ctx, &record, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// ListAll returns every record in storage order.
func (r *RecordRepository) ListAll(ctx context.Context) ([]models.DeviceRecord, error) {
	var records []models.DeviceRecord
	query := `SELECT ` + recordSelectColumns + ` FROM device_records`
	err := r.db.SelectContext(ctx, &records, query)
	return records, err
}

// Update replaces every field of the record. It reports whether a row matched.
func (r *RecordRepository) Update(ctx context.Context, record *models.DeviceRecord) (bool, error) {
	args := make([]interface{}, 0, len(models.FieldNames)+1)
	for _, v := range record.Values() {
		args = append(args, v)
	}
	args = append(args, record.ID)
	res, err := r.db.ExecContext(ctx, r.db.Rebind(recordUpdateSQL), args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Delete removes the record. It reports whether a row matched.
func (r *RecordRepository) Delete(ctx context.Context, id string) (bool, error) {
	query := r.db.Rebind(`DELETE FROM device_records WHERE "id" = ?`)
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *RecordRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM device_records`)
	return count, err
}
