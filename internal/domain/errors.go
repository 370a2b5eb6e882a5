package domain

import "errors"

// Extraction failures are typed so fallback paths are visible to callers
// instead of hiding behind exception-style control flow.
var (
	// ErrExtractionUnavailable: transport error, timeout or malformed payload
	// from the extraction service.
	ErrExtractionUnavailable = errors.New("extraction service unavailable")
	// ErrExtractionLowConfidence: the service answered but below the
	// confidence threshold.
	ErrExtractionLowConfidence = errors.New("extraction confidence below threshold")

	ErrUserNotFound = errors.New("user not found")
)

// BusinessError marks a business-logic failure that was already logged in the
// use case, so outer layers do not log it twice.
type BusinessError struct {
	Err error
}

func (e *BusinessError) Error() string {
	return e.Err.Error()
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func WrapBusinessError(err error) error {
	if err == nil {
		return nil
	}
	return &BusinessError{Err: err}
}

func IsBusinessError(err error) bool {
	var businessErr *BusinessError
	return errors.As(err, &businessErr)
}
