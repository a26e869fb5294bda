package reading

import "errors"

var (
	ErrInvalidImage      = errors.New("invalid image")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrMissingImage      = errors.New("missing image")
	ErrUploadTooLarge    = errors.New("upload too large")
)

// ValidationError carries the message shown to the client next to the
// sentinel used for classification.
type ValidationError struct {
	Err     error
	Message string
}

func (e *ValidationError) Error() string { return e.Err.Error() + ": " + e.Message }

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError builds a ValidationError for kind with a client-facing message.
func NewValidationError(kind error, message string) *ValidationError {
	return &ValidationError{Err: kind, Message: message}
}

// IsValidation reports whether err should be answered with 400.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
