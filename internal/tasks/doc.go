// Package tasks orchestrates album uploads with real-time progress reporting.
//
// # Core Operation
//
// [AlbumEngine.UploadAlbum] uploads one batch:
//
//  1. Cover phase : one transfer to the cover endpoint under field "cover"
//     - Progress is forwarded to [Hooks.OnCoverProgress]
//     - A non-2xx status or transport fault fails the batch with [shared.ErrCoverUpload]; no track is attempted
//
//  2. Track phase : one transfer per audio file to the audio endpoint under field "audio", in list order
//     - Each item is marked uploading at 0% before its request starts
//     - Progress is mirrored to [Hooks.OnTrackProgress] and [Hooks.OnItemUpdate]
//     - Failures (non-2xx, transport) are recorded on the item and the loop continues
//     - A 2xx body that is not a JSON object is stored as an empty object
//
// # Cancellation
//
// The batch context is attached once to an abort slot holding the active [services.TransferHandle].
// Each phase binds its handle before the request and unbinds it afterwards, so only the transfer in flight is
// aborted. An aborted item is marked cancelled, every later item is marked cancelled without being started, and
// the call returns [shared.ErrBatchCancelled] alongside the result.
//
// # Progress Reporting
//
// Hooks run synchronously on the caller's goroutine. [ChannelHooks] adapts them to a non-blocking
// [ProgressUpdate] channel for UI layers running their own event loop.
//
// # Batch History
//
// The optional [BatchRecorder] interface persists each finished batch (repositories.BatchRecorder).
// Recording errors are logged and never affect the result.
package tasks
