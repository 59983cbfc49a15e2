package errors

import (
	"errors"

	log "github.com/sirupsen/logrus"
)

// Report maps any internal failure to the caller-facing taxonomy: NotFound,
// VersionConflict and ValidationError pass through, everything else becomes a
// retryable StorageError. Invariant violations are logged and never leave
// the process.
func Report(err error) error {
	if err == nil {
		return nil
	}

	switch KindOf(err) {
	case KindNotFound, KindVersionConflict, KindValidation:
		return err
	case KindInvariantViolation:
		log.WithError(err).Error("invariant violation reported as storage error")
		return ErrStorage
	case KindStorage:
		if errors.Is(err, ErrStorage) {
			return err
		}
		return ErrStorage.Wrap(err)
	default:
		return ErrStorage.Wrap(err)
	}
}

// Retryable reports whether err is worth retrying internally.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindNotFound, KindVersionConflict, KindValidation, KindInvariantViolation:
		return false
	default:
		return err != nil
	}
}
