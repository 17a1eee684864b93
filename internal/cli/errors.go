package cli

import "errors"

// Sentinel errors for exit code classification
var (
	// ErrUsage indicates invalid command usage, flags, or arguments
	ErrUsage = errors.New("usage error")

	// ErrConfig indicates a configuration that cannot be loaded or validated
	ErrConfig = errors.New("configuration error")

	// ErrNotFound indicates a directory lookup for an unbound key
	ErrNotFound = errors.New("not found")

	// ErrRuntime indicates a failure while talking to or running a service
	ErrRuntime = errors.New("runtime error")

	// ErrInternal indicates internal errors such as failed output encoding
	ErrInternal = errors.New("internal error")
)
