package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kamikazebr/therapy-records/internal/server/storage"
	"github.com/kamikazebr/therapy-records/pkg/models"
	"github.com/kamikazebr/therapy-records/pkg/utils"
)

// Snapshot is the id-keyed export of every stored record.
type Snapshot struct {
	Records map[string]models.RecordFields
	Count   int
	// Data is the serialised document as written to disk
	Data []byte
}

type SnapshotExporter struct {
	recordRepo *storage.RecordRepository
	path       string
	logger     *zap.Logger
	metrics    *Metrics

	mu sync.Mutex
}

// NewSnapshotExporter writes snapshots to path. An empty path builds
// snapshots without writing them.
func NewSnapshotExporter(recordRepo *storage.RecordRepository, path string, logger *zap.Logger) *SnapshotExporter {
	return &SnapshotExporter{
		recordRepo: recordRepo,
		path:       path,
		logger:     logger,
	}
}

func (e *SnapshotExporter) SetMetrics(m *Metrics) {
	e.metrics = m
}

func (e *SnapshotExporter) Path() string {
	return e.path
}

// Export rebuilds the snapshot from a fresh scan and replaces the file.
// Without intervening mutations the output is byte-identical.
func (e *SnapshotExporter) Export(ctx context.Context) (*Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap, err := e.export(ctx)
	e.metrics.snapshotExport(err)
	return snap, err
}

func (e *SnapshotExporter) export(ctx context.Context) (*Snapshot, error) {
	records, err := e.recordRepo.ListAll(ctx)
	if err != nil {
		return nil, storeErr("scan records", err)
	}

	snap, err := BuildSnapshot(records)
	if err != nil {
		return nil, err
	}

	if e.path != "" {
		if err := utils.WriteFileAtomic(e.path, snap.Data, 0o644); err != nil {
			return nil, storeErr("write snapshot", err)
		}
		e.logger.Debug("snapshot exported",
			zap.String("path", e.path),
			zap.Int("count", snap.Count),
			zap.Int("bytes", len(snap.Data)))
	}
	return snap, nil
}

// BuildSnapshot serialises records keyed by id. Map keys are emitted in
// sorted order so the document is deterministic.
func BuildSnapshot(records []models.DeviceRecord) (*Snapshot, error) {
	byID := make(map[string]models.RecordFields, len(records))
	for _, r := range records {
		byID[r.ID] = r.RecordFields
	}
	data, err := json.MarshalIndent(byID, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return &Snapshot{Records: byID, Count: len(byID), Data: data}, nil
}
