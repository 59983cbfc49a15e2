package errors

import "net/http"

var ErrInvariantViolation = &Exception{
	Kind:       KindInvariantViolation,
	Message:    "task invariant violated",
	StatusCode: http.StatusInternalServerError,
}
