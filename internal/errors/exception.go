package errors

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindVersionConflict
	KindValidation
	KindStorage
	KindInvariantViolation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindVersionConflict:
		return "VersionConflict"
	case KindValidation:
		return "ValidationError"
	case KindStorage:
		return "StorageError"
	case KindInvariantViolation:
		return "InvariantViolation"
	default:
		return "Internal"
	}
}

type Exception struct {
	Kind       Kind
	Message    string
	StatusCode int
	Err        error
}

func (e *Exception) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Exception) Unwrap() error {
	return e.Err
}

// Is matches any Exception with the same kind and message, so a sentinel
// still matches after Wrap.
func (e *Exception) Is(target error) bool {
	t, ok := target.(*Exception)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

// Wrap returns a copy of e carrying err as its cause.
func (e *Exception) Wrap(err error) *Exception {
	c := *e
	c.Err = err
	return &c
}

func StatusCode(err error) int {
	var conflict *VersionConflict
	if errors.As(err, &conflict) {
		return http.StatusConflict
	}
	var appErr *Exception
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// KindOf classifies err. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	var conflict *VersionConflict
	if errors.As(err, &conflict) {
		return KindVersionConflict
	}
	var appErr *Exception
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}
