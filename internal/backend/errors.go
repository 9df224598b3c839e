package backend

// backendNotFoundError signals a requested backend id absent from the registry.
type backendNotFoundError struct{ id string }

func (e backendNotFoundError) Error() string { return "backend not found: " + e.id }

// ErrBackendNotFound returns an error for a backend id missing from the registry.
func ErrBackendNotFound(id string) error { return backendNotFoundError{id: id} }

// IsBackendNotFound reports whether err indicates a missing backend id.
func IsBackendNotFound(err error) bool {
	_, ok := err.(backendNotFoundError)
	return ok
}

// backendUnavailableError signals a failed model load/swap. The message is
// caller-safe; the cause is retained for logs via Unwrap.
type backendUnavailableError struct {
	id    string
	cause error
}

func (e backendUnavailableError) Error() string { return "backend unavailable: " + e.id }

func (e backendUnavailableError) Unwrap() error { return e.cause }

// ErrBackendUnavailable constructs a backendUnavailableError.
func ErrBackendUnavailable(id string, cause error) error {
	return backendUnavailableError{id: id, cause: cause}
}

// IsBackendUnavailable reports whether err indicates a failed backend load.
func IsBackendUnavailable(err error) bool {
	_, ok := err.(backendUnavailableError)
	return ok
}
