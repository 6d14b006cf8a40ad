package repositories

import (
	"database/sql"

	"github.com/desertthunder/albumdrop/internal/models"
)

// BatchRecorder stores finished batches for the upload orchestrator.
type BatchRecorder struct {
	repo *BatchRepository
}

// NewBatchRecorder wraps a [BatchRepository] over db.
func NewBatchRecorder(db *sql.DB) *BatchRecorder {
	return &BatchRecorder{repo: NewBatchRepository(db)}
}

// RecordBatch inserts batch with its items.
func (r *BatchRecorder) RecordBatch(batch *models.Batch) error {
	return r.repo.Create(batch)
}
