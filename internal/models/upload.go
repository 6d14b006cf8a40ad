package models

import (
	"fmt"

	"github.com/desertthunder/albumdrop/internal/shared"
)

// Status is the lifecycle state of one [UploadItem].
type Status string

const (
	StatusQueued    Status = "queued"
	StatusUploading Status = "uploading"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusError, StatusCancelled:
		return true
	default:
		return false
	}
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusUploading, StatusSuccess, StatusError, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from s to next is a forward step.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusQueued:
		return next == StatusUploading || next == StatusCancelled
	case StatusUploading:
		return next == StatusSuccess || next == StatusError || next == StatusCancelled
	default:
		return false
	}
}

// UploadItem is one audio track's transfer record within a batch.
type UploadItem struct {
	File     MediaFile      `json:"file"`
	Status   Status         `json:"status"`
	Progress int            `json:"progress"`
	Response map[string]any `json:"response,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// NewUploadItem returns a queued item for f.
func NewUploadItem(f MediaFile) UploadItem {
	return UploadItem{File: f, Status: StatusQueued}
}

// NewUploadItems returns one queued item per file, preserving order.
func NewUploadItems(files []MediaFile) []UploadItem {
	items := make([]UploadItem, len(files))
	for i, f := range files {
		items[i] = NewUploadItem(f)
	}
	return items
}

// ItemPatch is a partial [UploadItem]. Nil fields are left unchanged by [UploadItem.Apply].
type ItemPatch struct {
	Status   *Status        `json:"status,omitempty"`
	Progress *int           `json:"progress,omitempty"`
	Response map[string]any `json:"response,omitempty"`
	Error    *string        `json:"error,omitempty"`
}

// ProgressPatch reports a progress tick.
func ProgressPatch(percent int) ItemPatch {
	return ItemPatch{Progress: &percent}
}

// StartPatch marks an item as uploading at 0%.
func StartPatch() ItemPatch {
	s, p := StatusUploading, 0
	return ItemPatch{Status: &s, Progress: &p}
}

// SuccessPatch marks an item complete with the server's parsed response.
func SuccessPatch(response map[string]any) ItemPatch {
	s, p := StatusSuccess, 100
	if response == nil {
		response = map[string]any{}
	}
	return ItemPatch{Status: &s, Progress: &p, Response: response}
}

// ErrorPatch marks an item failed with msg.
func ErrorPatch(msg string) ItemPatch {
	s := StatusError
	return ItemPatch{Status: &s, Error: &msg}
}

// CancelPatch marks an item cancelled.
func CancelPatch() ItemPatch {
	s := StatusCancelled
	return ItemPatch{Status: &s}
}

// Apply merges p into the item.
//
// Status may only move forward, progress stays within 0-100 and never decreases,
// and a terminal item accepts no further changes.
func (u *UploadItem) Apply(p ItemPatch) error {
	if p.Status != nil && *p.Status != u.Status {
		if !p.Status.Valid() {
			return fmt.Errorf("%w: unknown status %q", shared.ErrInvalidPatch, *p.Status)
		}
		if !u.Status.CanTransition(*p.Status) {
			return fmt.Errorf("%w: %s -> %s", shared.ErrInvalidTransition, u.Status, *p.Status)
		}
	} else if u.Status.IsTerminal() && !p.empty() {
		return fmt.Errorf("%w: item is %s", shared.ErrInvalidTransition, u.Status)
	}

	if p.Progress != nil {
		if *p.Progress < 0 || *p.Progress > 100 {
			return fmt.Errorf("%w: progress %d out of range", shared.ErrInvalidPatch, *p.Progress)
		}
		if *p.Progress < u.Progress {
			return fmt.Errorf("%w: progress %d below %d", shared.ErrInvalidPatch, *p.Progress, u.Progress)
		}
	}

	if p.Status != nil {
		u.Status = *p.Status
	}
	if p.Progress != nil {
		u.Progress = *p.Progress
	}
	if p.Response != nil {
		u.Response = p.Response
	}
	if p.Error != nil {
		u.Error = *p.Error
	}
	return nil
}

func (p ItemPatch) empty() bool {
	return p.Status == nil && p.Progress == nil && p.Response == nil && p.Error == nil
}
