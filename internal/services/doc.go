// Package services implements the HTTP clients albumdrop talks to remote endpoints with.
//
// # Transfer Primitive
//
// [UploadService] performs one multipart/form-data POST per file. The body is streamed from the
// [models.MediaFile] without buffering the file in memory, and byte-level progress is reported as
// an integer percentage through a [ProgressFunc].
//
// A transfer is identified by a [TransferHandle] obtained from [UploadService.Begin]. The handle owns
// the request context; calling [TransferHandle.Abort] tears down the in-flight connection. The handle's
// lifetime is bounded to one [UploadService.Transfer] call.
//
// Progress callbacks run on the goroutine that called Transfer and never after it returns.
// Percentages are non-decreasing. When the body length is known, a tick is emitted each time
// floor(sent*100/total) increases; when it is not, only a final 100 is delivered once the body has
// been fully written.
//
// # Authentication
//
// A bearer credential is attached with [oauth2.Token.SetAuthHeader], either from the request or from a
// static [oauth2.TokenSource] configured on the service. Tokens are never refreshed.
//
// # Health Checks
//
// [APIService] issues plain GET requests against the configured base URL (e.g. /health) and
// returns the raw [APIResponse].
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrTransferAborted] : the handle was aborted or its context ended
//   - [shared.ErrTransport] : no response was obtained (DNS, refused, reset, timeout)
//   - [shared.ErrInvalidInput] : the request could not be built
//
// Non-2xx responses are returned as-is and are not errors at this layer.
package services
