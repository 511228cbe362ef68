package services

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kamikazebr/therapy-records/internal/server/storage"
	"github.com/kamikazebr/therapy-records/pkg/models"
	"github.com/kamikazebr/therapy-records/pkg/utils"
)

// RecordService owns the record table. Mutations are serialised and each
// successful one refreshes the snapshot file.
type RecordService struct {
	recordRepo *storage.RecordRepository
	snapshots  *SnapshotExporter
	logger     *zap.Logger
	metrics    *Metrics

	mu sync.Mutex
}

// NewRecordService builds the record store. snapshots may be nil.
func NewRecordService(recordRepo *storage.RecordRepository, snapshots *SnapshotExporter, logger *zap.Logger) *RecordService {
	return &RecordService{
		recordRepo: recordRepo,
		snapshots:  snapshots,
		logger:     logger,
	}
}

func (s *RecordService) SetMetrics(m *Metrics) {
	s.metrics = m
}

// ValidateFields checks the date and time fields in a fixed order and reports
// the first failure. start_date is the only required field.
func ValidateFields(f *models.RecordFields) error {
	if f.StartDate == "" {
		return &ValidationError{Field: models.FieldStartDate, Message: "is required"}
	}
	checks := []struct {
		field string
		value string
		valid func(string) bool
		want  string
	}{
		{models.FieldStartDate, f.StartDate, utils.IsValidDate, "DD/MM/YYYY"},
		{models.FieldEndDate, f.EndDate, utils.IsValidDate, "DD/MM/YYYY"},
		{models.FieldStartTime, f.StartTime, utils.IsValidTime, "HH:MM"},
		{models.FieldEndTime, f.EndTime, utils.IsValidTime, "HH:MM"},
		{models.FieldFinalDate, f.FinalDate, utils.IsValidDate, "DD/MM/YYYY"},
		{models.FieldDateTime, f.DateTime, utils.IsValidDateTime, "DD/MM/YYYY HH:MM"},
	}
	for _, c := range checks {
		if c.value != "" && !c.valid(c.value) {
			return &ValidationError{Field: c.field, Message: "must be a valid " + c.want}
		}
	}
	return nil
}

// AddRecord validates and stores a new record under a fresh id.
func (s *RecordService) AddRecord(ctx context.Context, fields models.RecordFields) (string, error) {
	if err := ValidateFields(&fields); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record := &models.DeviceRecord{ID: uuid.New().String(), RecordFields: fields}
	if err := s.recordRepo.Create(ctx, record); err != nil {
		return "", storeErr("create record", err)
	}

	s.metrics.recordMutation("create")
	s.logger.Info("record created", zap.String("record_id", record.ID))
	s.refreshSnapshot(ctx)
	return record.ID, nil
}

// UpdateRecord replaces every field of an existing record.
func (s *RecordService) UpdateRecord(ctx context.Context, id string, fields models.RecordFields) error {
	if err := ValidateFields(&fields); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	found, err := s.recordRepo.Update(ctx, &models.DeviceRecord{ID: id, RecordFields: fields})
	if err != nil {
		return storeErr("update record", err)
	}
	if !found {
		return &NotFoundError{Kind: "record", Key: id}
	}

	s.metrics.recordMutation("update")
	s.logger.Info("record updated", zap.String("record_id", id))
	s.refreshSnapshot(ctx)
	return nil
}

func (s *RecordService) DeleteRecord(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found, err := s.recordRepo.Delete(ctx, id)
	if err != nil {
		return storeErr("delete record", err)
	}
	if !found {
		return &NotFoundError{Kind: "record", Key: id}
	}

	s.metrics.recordMutation("delete")
	s.logger.Info("record deleted", zap.String("record_id", id))
	s.refreshSnapshot(ctx)
	return nil
}

func (s *RecordService) GetRecord(ctx context.Context, id string) (*models.DeviceRecord, error) {
	record, err := s.recordRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("get record", err)
	}
	if record == nil {
		return nil, &NotFoundError{Kind: "record", Key: id}
	}
	return record, nil
}

// ScanAll returns every record in no particular order.
func (s *RecordService) ScanAll(ctx context.Context) ([]models.DeviceRecord, error) {
	records, err := s.recordRepo.ListAll(ctx)
	if err != nil {
		return nil, storeErr("scan records", err)
	}
	return records, nil
}

func (s *RecordService) Count(ctx context.Context) (int, error) {
	n, err := s.recordRepo.Count(ctx)
	if err != nil {
		return 0, storeErr("count records", err)
	}
	return n, nil
}

// Search runs a query over a fresh scan.
func (s *RecordService) Search(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	records, err := s.ScanAll(ctx)
	if err != nil {
		return nil, err
	}
	return Query(records, req)
}

func (s *RecordService) refreshSnapshot(ctx context.Context) {
	if s.snapshots == nil {
		return
	}
	if _, err := s.snapshots.Export(ctx); err != nil {
		s.logger.Warn("failed to refresh snapshot after mutation", zap.Error(err))
	}
}
