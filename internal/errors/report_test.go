package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportPassesCallerFacingKinds(t *testing.T) {
	conflict := &VersionConflict{TaskID: "t1", CurrentVersion: 4, RequestedVersion: 3}

	assert.Same(t, ErrTaskNotFound, Report(ErrTaskNotFound))
	assert.Same(t, ErrParentCycle, Report(ErrParentCycle))

	var got *VersionConflict
	require.True(t, errors.As(Report(conflict), &got))
	assert.Equal(t, uint(4), got.CurrentVersion)
	assert.Equal(t, uint(3), got.RequestedVersion)
	assert.False(t, got.IsFromSameDevice)
}

func TestReportHidesInvariantViolation(t *testing.T) {
	err := Report(ErrInvariantViolation.Wrap(errors.New("owner o1 has 2 running tasks")))

	assert.Same(t, ErrStorage, err)
	assert.False(t, errors.Is(err, ErrInvariantViolation))
	assert.Equal(t, KindStorage, KindOf(err))
}

func TestReportWrapsUnknownErrorsAsStorage(t *testing.T) {
	cause := errors.New("database is locked")
	err := Report(cause)

	assert.True(t, errors.Is(err, ErrStorage))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, http.StatusServiceUnavailable, StatusCode(err))

	assert.True(t, errors.Is(Report(ErrOptimisticLock), ErrStorage))
}

func TestWrappedSentinelStillMatches(t *testing.T) {
	err := ErrTaskNotFound.Wrap(errors.New("record not found"))

	assert.True(t, errors.Is(err, ErrTaskNotFound))
	assert.False(t, errors.Is(err, ErrParentNotFound))
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusConflict, StatusCode(&VersionConflict{}))
	assert.Equal(t, http.StatusBadRequest, StatusCode(ErrTaskCompleted))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(errors.New("boom")))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(ErrOptimisticLock))
	assert.True(t, Retryable(errors.New("disk I/O error")))
	assert.False(t, Retryable(ErrTaskNotFound))
	assert.False(t, Retryable(&VersionConflict{}))
	assert.False(t, Retryable(nil))
}
