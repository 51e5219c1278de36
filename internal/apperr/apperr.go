package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error categories; services wrap these with fmt.Errorf("%w: detail") and
// handlers map them to status codes with errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrStorage      = errors.New("storage failure")
)

func Validation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func Forbidden(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func Storage(err error) error {
	return fmt.Errorf("%w: %v", ErrStorage, err)
}

// Status maps an error to its HTTP status code. Unknown errors are 500.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Message strips the sentinel prefix so clients see only the detail text.
func Message(err error) string {
	for _, sentinel := range []error{ErrValidation, ErrForbidden, ErrNotFound, ErrUnauthorized} {
		if errors.Is(err, sentinel) {
			prefix := sentinel.Error() + ": "
			if len(err.Error()) > len(prefix) && err.Error()[:len(prefix)] == prefix {
				return err.Error()[len(prefix):]
			}
			return sentinel.Error()
		}
	}
	return "server error"
}
