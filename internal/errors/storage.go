package errors

import "net/http"

var ErrStorage = &Exception{
	Kind:       KindStorage,
	Message:    "storage temporarily unavailable",
	StatusCode: http.StatusServiceUnavailable,
}

// ErrOptimisticLock means a compare-and-swap on version lost a race against
// another writer between read and write. It is retried internally and never
// reaches callers as such.
var ErrOptimisticLock = &Exception{
	Kind:       KindStorage,
	Message:    "optimistic locking conflict",
	StatusCode: http.StatusServiceUnavailable,
}
