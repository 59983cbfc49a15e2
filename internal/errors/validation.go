package errors

import "net/http"

var (
	ErrParentCycle      = Validation("parent assignment would create a cycle")
	ErrTaskCompleted    = Validation("task is completed")
	ErrTaskNeverStarted = Validation("task has not been started")
)

func Validation(message string) *Exception {
	return &Exception{
		Kind:       KindValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}
