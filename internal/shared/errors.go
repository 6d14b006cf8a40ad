package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Transfer errors
	ErrTransport       = fmt.Errorf("transport failure")
	ErrTransferAborted = fmt.Errorf("transfer aborted")
	ErrCoverUpload     = fmt.Errorf("cover upload failed")
	ErrBatchCancelled  = fmt.Errorf("batch cancelled")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrBatchNotFound      = fmt.Errorf("batch not found")

	// Item state errors
	ErrInvalidTransition = fmt.Errorf("invalid status transition")
	ErrInvalidPatch      = fmt.Errorf("invalid item patch")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
