package jobs

// notFoundError signals an unknown job token for 404 mapping.
type notFoundError struct{ id string }

func (e notFoundError) Error() string { return "job not found: " + e.id }

// ErrNotFound returns an error for an unknown job token.
func ErrNotFound(id string) error { return notFoundError{id: id} }

// IsNotFound reports whether err indicates an unknown job token.
func IsNotFound(err error) bool {
	_, ok := err.(notFoundError)
	return ok
}

// notReadyError signals a result request before completion for 409 mapping.
type notReadyError struct{ id string }

func (e notReadyError) Error() string { return "job not completed: " + e.id }

// ErrNotReady returns an error for a result requested before completion.
func ErrNotReady(id string) error { return notReadyError{id: id} }

// IsNotReady reports whether err indicates the job has not completed yet.
func IsNotReady(err error) bool {
	_, ok := err.(notReadyError)
	return ok
}

// cancelledError is the internal sentinel a worker's step callback returns
// when the cancellation flag is observed.
type cancelledError struct{}

func (cancelledError) Error() string { return "cancelled" }

var errCancelled = cancelledError{}
