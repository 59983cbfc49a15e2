package errors

import "net/http"

var ErrTaskIDRequired = &Exception{
	Kind:       KindValidation,
	Message:    "task id is required",
	StatusCode: http.StatusBadRequest,
}

var ErrOwnerIDRequired = &Exception{
	Kind:       KindValidation,
	Message:    "owner id is required",
	StatusCode: http.StatusUnauthorized,
}
