package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/albumdrop/internal/models"
	"github.com/desertthunder/albumdrop/internal/shared"
)

// BatchRepository implements models.Repository[*models.Batch] for upload history.
//
// Items are stored in batch_items and always written together with their batch.
type BatchRepository struct {
	db *sql.DB
}

// NewBatchRepository creates a new BatchRepository with the given database connection
func NewBatchRepository(db *sql.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

var _ models.Repository[*models.Batch] = (*BatchRepository)(nil)

const batchColumns = `id, sequence, cover_name, cover_url, audio_url, status, track_count, success_count, failed_count, cancelled_count,
		error, started_at, finished_at, created_at, updated_at, deleted_at`

// Create inserts a new batch and its items with generated ID and sequence
func (r *BatchRepository) Create(batch *models.Batch) error {
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "batches")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	now := time.Now()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO batches (id, sequence, cover_name, cover_url, audio_url, status, track_count, success_count, failed_count,
			cancelled_count, error, started_at, finished_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.Exec(query,
		id,
		sequence,
		batch.CoverName,
		batch.CoverURL,
		batch.AudioURL,
		string(batch.Status),
		batch.TrackCount(),
		batch.SuccessCount,
		batch.FailedCount,
		batch.CancelledCount,
		batch.Error,
		batch.StartedAt,
		nullTime(batch.FinishedAt),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}

	if err := insertItems(tx, id, batch.Items); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	batch.SetID(id)
	batch.SetSequence(sequence)
	batch.SetCreatedAt(now)
	batch.SetUpdatedAt(now)
	return nil
}

// Get retrieves a batch and its items by ID, excluding soft-deleted batches
func (r *BatchRepository) Get(id string) (*models.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches WHERE id = ? AND deleted_at IS NULL`

	batch, err := scanBatch(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrBatchNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	items, err := r.items(id)
	if err != nil {
		return nil, err
	}
	batch.Items = items
	return batch, nil
}

// Update replaces a batch's outcome and items
func (r *BatchRepository) Update(batch *models.Batch) error {
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE batches
		SET status = ?, track_count = ?, success_count = ?, failed_count = ?, cancelled_count = ?, error = ?,
			finished_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := tx.Exec(query,
		string(batch.Status),
		batch.TrackCount(),
		batch.SuccessCount,
		batch.FailedCount,
		batch.CancelledCount,
		batch.Error,
		nullTime(batch.FinishedAt),
		now,
		batch.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update batch: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrBatchNotFound, batch.ID())
	}

	if _, err := tx.Exec(`DELETE FROM batch_items WHERE batch_id = ?`, batch.ID()); err != nil {
		return fmt.Errorf("failed to clear batch items: %w", err)
	}
	if err := insertItems(tx, batch.ID(), batch.Items); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	batch.SetUpdatedAt(now)
	return nil
}

// Delete soft-deletes a batch by ID
func (r *BatchRepository) Delete(id string) error {
	now := time.Now()

	query := `
		UPDATE batches
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete batch: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrBatchNotFound, id)
	}

	return nil
}

// List retrieves batches matching the given criteria, newest first, excluding soft-deleted batches.
//
// Supported criteria: "status" (string) and "limit" (int). Items are not loaded.
func (r *BatchRepository) List(criteria map[string]any) ([]*models.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches WHERE deleted_at IS NULL`

	args := []any{}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer rows.Close()

	var batches []*models.Batch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return batches, nil
}

func (r *BatchRepository) items(batchID string) ([]models.BatchItem, error) {
	query := `
		SELECT position, file_name, file_size, mime_type, status, progress, response, error
		FROM batch_items
		WHERE batch_id = ?
		ORDER BY position ASC
	`

	rows, err := r.db.Query(query, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query batch items: %w", err)
	}
	defer rows.Close()

	items := []models.BatchItem{}
	for rows.Next() {
		var (
			item   models.BatchItem
			status string
		)
		if err := rows.Scan(&item.Position, &item.FileName, &item.FileSize, &item.MIMEType, &status, &item.Progress, &item.Response, &item.Error); err != nil {
			return nil, fmt.Errorf("failed to scan batch item: %w", err)
		}
		item.Status = models.Status(status)
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return items, nil
}

func insertItems(tx *sql.Tx, batchID string, items []models.BatchItem) error {
	stmt, err := tx.Prepare(`
		INSERT INTO batch_items (batch_id, position, file_name, file_size, mime_type, status, progress, response, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare item insert: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		_, err := stmt.Exec(batchID, item.Position, item.FileName, item.FileSize, item.MIMEType, string(item.Status), item.Progress, item.Response, item.Error)
		if err != nil {
			return fmt.Errorf("failed to insert batch item %d: %w", item.Position, err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanBatch scans a single row into a [models.Batch]
func scanBatch(row scanner) (*models.Batch, error) {
	var (
		id             string
		sequence       int
		coverName      string
		coverURL       string
		audioURL       string
		status         string
		trackCount     int
		successCount   int
		failedCount    int
		cancelledCount int
		errText        string
		startedAt      time.Time
		finishedAt     sql.NullTime
		createdAt      time.Time
		updatedAt      time.Time
		deletedAt      sql.NullTime
	)

	err := row.Scan(&id, &sequence, &coverName, &coverURL, &audioURL, &status, &trackCount, &successCount, &failedCount, &cancelledCount,
		&errText, &startedAt, &finishedAt, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan batch: %w", err)
	}

	batch := models.NewBatch(coverName, models.BatchStatus(status))
	batch.SetID(id)
	batch.SetSequence(sequence)
	batch.SetCreatedAt(createdAt)
	batch.SetUpdatedAt(updatedAt)
	batch.SetTrackCount(trackCount)
	batch.CoverURL = coverURL
	batch.AudioURL = audioURL
	batch.SuccessCount = successCount
	batch.FailedCount = failedCount
	batch.CancelledCount = cancelledCount
	batch.Error = errText
	batch.StartedAt = startedAt
	if finishedAt.Valid {
		batch.FinishedAt = &finishedAt.Time
	}
	if deletedAt.Valid {
		batch.SetDeletedAt(&deletedAt.Time)
	}

	return batch, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
