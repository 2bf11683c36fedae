package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/internal/searcher/syntax"
)

var (
	ErrInvalidQuery     = errors.New("invalid query")
	ErrInvalidInput     = errors.New("invalid input")
	ErrQueryTooLong     = errors.New("query too long")
	ErrIndexUnavailable = errors.New("index unavailable")
	ErrCacheUnavailable = errors.New("cache unavailable")
	ErrInternal         = errors.New("internal error")
	ErrTimeout          = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
	// Details are extra fields copied into the JSON error body.
	Details map[string]any
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// FromSyntax converts a query syntax error into a 400 carrying its kind,
// position and offending token. An AppError in the chain is returned as is,
// an expired deadline becomes a 504, and anything else is internal.
func FromSyntax(err error) *AppError {
	se, ok := syntax.AsError(err)
	if !ok {
		var appErr *AppError
		switch {
		case errors.As(err, &appErr):
			return appErr
		case errors.Is(err, context.DeadlineExceeded):
			return New(ErrTimeout, http.StatusGatewayTimeout, err.Error())
		}
		return New(ErrInternal, http.StatusInternalServerError, err.Error())
	}
	return &AppError{
		Err:        ErrInvalidQuery,
		Message:    se.Msg,
		StatusCode: http.StatusBadRequest,
		Details: map[string]any{
			"kind":     se.Kind.String(),
			"position": se.Pos,
			"token":    se.Token,
		},
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	if _, ok := syntax.AsError(err); ok {
		return http.StatusBadRequest
	}

	switch {
	case errors.Is(err, ErrInvalidQuery), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrQueryTooLong):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrIndexUnavailable), errors.Is(err, ErrCacheUnavailable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
