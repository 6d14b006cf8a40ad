// package services defines the transfer abstraction used by the album orchestrator
package services

import (
	"context"
	"sync/atomic"

	"github.com/desertthunder/albumdrop/internal/models"
	"github.com/google/uuid"
)

// Transferer performs abortable single-file uploads.
//
// [UploadService] is the production implementation; tests substitute their own.
type Transferer interface {
	// Begin creates a handle for one transfer. Cancelling ctx aborts the transfer.
	Begin(ctx context.Context) *TransferHandle

	// Transfer uploads req.File using h and blocks until a response is received or the transfer fails.
	Transfer(h *TransferHandle, req TransferRequest, onProgress ProgressFunc) (*APIResponse, error)
}

// ProgressFunc receives upload progress as a whole percentage in [0, 100].
type ProgressFunc func(percent int)

// TransferRequest describes one multipart upload.
type TransferRequest struct {
	URL   string           // Absolute endpoint URL
	Field string           // Multipart form field name
	File  models.MediaFile // Content to send
	Token string           // Optional bearer credential; overrides the service token source
}

// TransferHandle is the cancellable identity of one in-flight transfer.
type TransferHandle struct {
	id      string
	ctx     context.Context
	cancel  context.CancelFunc
	aborted atomic.Bool
}

// NewTransferHandle derives a handle from ctx.
func NewTransferHandle(ctx context.Context) *TransferHandle {
	hctx, cancel := context.WithCancel(ctx)
	return &TransferHandle{id: uuid.NewString(), ctx: hctx, cancel: cancel}
}

// ID identifies the transfer in logs.
func (h *TransferHandle) ID() string { return h.id }

// Context returns the context carried by the transfer's request.
func (h *TransferHandle) Context() context.Context { return h.ctx }

// Abort cancels the transfer. It is safe to call more than once and after the transfer finished.
func (h *TransferHandle) Abort() {
	h.aborted.Store(true)
	h.cancel()
}

// Aborted reports whether [TransferHandle.Abort] was called.
func (h *TransferHandle) Aborted() bool { return h.aborted.Load() }

// Done reports whether the transfer was aborted or its parent context ended.
func (h *TransferHandle) Done() bool { return h.ctx.Err() != nil }

func (h *TransferHandle) release() { h.cancel() }
