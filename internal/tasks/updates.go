package tasks

import (
	"fmt"

	"github.com/desertthunder/albumdrop/internal/models"
)

// ProgressUpdate represents a progress event during a batch.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase             // Operation phase
	Index   int               // Track index; -1 for the cover
	Percent int               // Transfer progress of the current file
	Patch   *models.ItemPatch // Item change for [ItemUpdate] events
	Message string            // Human-readable message for display
}

// Operation phase enumeration
type Phase int

const (
	CoverUpload Phase = iota
	TrackUpload
	ItemUpdate
)

func (p Phase) String() string {
	switch p {
	case CoverUpload:
		return "cover_upload"
	case TrackUpload:
		return "track_upload"
	case ItemUpdate:
		return "item_update"
	default:
		return ""
	}
}

// ChannelHooks returns Hooks that forward every event to progress.
//
// Sends never block; events are dropped when the channel is full. Consumers that need the
// final state must read it from the returned [AlbumResult].
func ChannelHooks(progress chan<- ProgressUpdate) Hooks {
	return Hooks{
		OnCoverProgress: func(percent int) {
			sendProgress(progress, coverUpdate(percent))
		},
		OnTrackProgress: func(index, percent int) {
			sendProgress(progress, trackUpdate(index, percent))
		},
		OnItemUpdate: func(index int, patch models.ItemPatch) {
			sendProgress(progress, itemUpdate(index, patch))
		},
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func coverUpdate(percent int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CoverUpload,
		Index:   -1,
		Percent: percent,
		Message: fmt.Sprintf("Uploading cover... %d%%", percent),
	}
}

func trackUpdate(index, percent int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   TrackUpload,
		Index:   index,
		Percent: percent,
		Message: fmt.Sprintf("Uploading track %d... %d%%", index+1, percent),
	}
}

func itemUpdate(index int, patch models.ItemPatch) ProgressUpdate {
	u := ProgressUpdate{Phase: ItemUpdate, Index: index, Patch: &patch}
	if patch.Progress != nil {
		u.Percent = *patch.Progress
	}
	if patch.Status != nil {
		u.Message = fmt.Sprintf("Track %d %s", index+1, *patch.Status)
	}
	return u
}
