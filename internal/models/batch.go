package models

import (
	"errors"
	"time"
)

// BatchStatus is the outcome of one album upload.
type BatchStatus string

const (
	// BatchCompleted means every track settled; individual tracks may still have failed.
	BatchCompleted BatchStatus = "completed"
	// BatchFailed means the cover upload failed and no track was attempted.
	BatchFailed BatchStatus = "failed"

	BatchCancelled BatchStatus = "cancelled"
)

func (s BatchStatus) String() string {
	return string(s)
}

// BatchItem is the persisted final state of one track.
type BatchItem struct {
	Position int    `json:"position"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
	MIMEType string `json:"mime_type"`
	Status   Status `json:"status"`
	Progress int    `json:"progress"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Batch is one recorded album upload.
type Batch struct {
	id        string
	sequence  int
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time
	tracks    int

	CoverName      string      `json:"cover_name"`
	CoverURL       string      `json:"cover_url"`
	AudioURL       string      `json:"audio_url"`
	Status         BatchStatus `json:"status"`
	SuccessCount   int         `json:"success_count"`
	FailedCount    int         `json:"failed_count"`
	CancelledCount int         `json:"cancelled_count"`
	Error          string      `json:"error,omitempty"`
	StartedAt      time.Time   `json:"started_at"`
	FinishedAt     *time.Time  `json:"finished_at,omitempty"`
	Items          []BatchItem `json:"items"`
}

// NewBatch creates a Batch with creation timestamps set to now.
func NewBatch(coverName string, status BatchStatus) *Batch {
	now := time.Now()
	return &Batch{
		createdAt: now,
		updatedAt: now,
		CoverName: coverName,
		Status:    status,
		StartedAt: now,
	}
}

func (b *Batch) ID() string { return b.id }
func (b *Batch) Sequence() int { return b.sequence }
func (b *Batch) CreatedAt() time.Time { return b.createdAt }
func (b *Batch) UpdatedAt() time.Time { return b.updatedAt }
func (b *Batch) DeletedAt() *time.Time { return b.deletedAt }
func (b *Batch) SetID(id string) { b.id = id }
func (b *Batch) SetSequence(seq int) { b.sequence = seq }
func (b *Batch) SetCreatedAt(t time.Time) { b.createdAt = t }
func (b *Batch) SetUpdatedAt(t time.Time) { b.updatedAt = t }
func (b *Batch) SetDeletedAt(t *time.Time) { b.deletedAt = t }
func (b *Batch) SetTrackCount(n int) { b.tracks = n }

// TrackCount is the number of tracks in the batch, falling back to the stored count when items are not loaded.
func (b *Batch) TrackCount() int {
	if b.Items != nil {
		return len(b.Items)
	}
	return b.tracks
}

// Duration is the wall time between start and finish, or zero if unfinished.
func (b *Batch) Duration() time.Duration {
	if b.FinishedAt == nil {
		return 0
	}
	return b.FinishedAt.Sub(b.StartedAt)
}

// Validate checks required fields and that item statuses are terminal or queued.
func (b *Batch) Validate() error {
	if b.CoverName == "" {
		return errors.New("cover name is required")
	}
	switch b.Status {
	case BatchCompleted, BatchFailed, BatchCancelled:
	default:
		return errors.New("invalid batch status: " + string(b.Status))
	}
	if b.StartedAt.IsZero() {
		return errors.New("start time is required")
	}
	for i, item := range b.Items {
		if item.FileName == "" {
			return errors.New("item file name is required")
		}
		if item.Position != i {
			return errors.New("item positions must be contiguous from zero")
		}
		if !item.Status.Valid() || item.Status == StatusUploading {
			return errors.New("invalid item status: " + string(item.Status))
		}
	}
	return nil
}
