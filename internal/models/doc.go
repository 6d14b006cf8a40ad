// Package models defines domain entities and persistence interfaces for albumdrop.
//
// The package contains two categories of types:
//
// 1. Transfer state: Lightweight values owned by the upload orchestrator for the duration of one batch
//   - [MediaFile] : Handle to a file's content (name, size, MIME type, byte stream)
//   - [UploadItem] : One audio track's transfer record with its [Status]
//   - [ItemPatch] : Partial update delivered to view-layer hooks
//
// 2. Persistent Entities: Database-backed history of finished batches
//   - [Batch] : One album upload with counters and terminal [BatchStatus]
//   - [BatchItem] : Snapshot of a track's final state within a batch
//
// Item status is forward-only: queued → uploading → {success | error | cancelled}, with queued → cancelled
// for tracks a cancelled batch never reached. [UploadItem.Apply] rejects any other transition.
package models
