package errors

import "net/http"

var ErrTaskNotFound = &Exception{
	Kind:       KindNotFound,
	Message:    "task not found",
	StatusCode: http.StatusNotFound,
}

var ErrParentNotFound = &Exception{
	Kind:       KindNotFound,
	Message:    "parent task not found",
	StatusCode: http.StatusNotFound,
}
