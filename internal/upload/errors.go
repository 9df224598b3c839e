package upload

import "fmt"

// tooLargeError signals an upload exceeding the size limit (413).
type tooLargeError struct{ limit int64 }

func (e tooLargeError) Error() string {
	return fmt.Sprintf("file too large (max %d bytes)", e.limit)
}

// ErrTooLarge constructs a tooLargeError.
func ErrTooLarge(limit int64) error { return tooLargeError{limit: limit} }

// IsTooLarge reports whether err indicates an oversized upload.
func IsTooLarge(err error) bool {
	_, ok := err.(tooLargeError)
	return ok
}

// unsupportedTypeError signals a disallowed extension or media type (415).
type unsupportedTypeError struct{ msg string }

func (e unsupportedTypeError) Error() string { return e.msg }

// ErrUnsupportedType constructs an unsupportedTypeError.
func ErrUnsupportedType(msg string) error { return unsupportedTypeError{msg: msg} }

// IsUnsupportedType reports whether err indicates a disallowed upload type.
func IsUnsupportedType(err error) bool {
	_, ok := err.(unsupportedTypeError)
	return ok
}

// invalidImageError signals an upload that is not a decodable image (400).
type invalidImageError struct{ msg string }

func (e invalidImageError) Error() string { return e.msg }

// ErrInvalidImage constructs an invalidImageError.
func ErrInvalidImage(msg string) error { return invalidImageError{msg: msg} }

// IsInvalidImage reports whether err indicates an undecodable upload.
func IsInvalidImage(err error) bool {
	_, ok := err.(invalidImageError)
	return ok
}
