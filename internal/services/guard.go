package services

import (
	"context"
	"errors"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"task-timer.com/task-timer/internal/constants"
	apperrors "task-timer.com/task-timer/internal/errors"
	model "task-timer.com/task-timer/internal/models"
	repository "task-timer.com/task-timer/internal/repositories"
	"task-timer.com/task-timer/internal/tracking"
)

// Fields is a partial edit of a task's descriptive fields. Nil means leave
// unchanged. An empty ParentID or InstanceTag clears the value.
type Fields struct {
	Name         *string
	CategoryPath *string
	InstanceTag  *string
	ParentID     *string
	Order        *int
	Date         *string
}

func (f Fields) empty() bool {
	return f.Name == nil && f.CategoryPath == nil && f.InstanceTag == nil &&
		f.ParentID == nil && f.Order == nil && f.Date == nil
}

func (f Fields) validate() error {
	if f.empty() {
		return apperrors.Validation("no fields to update")
	}
	if f.Name != nil && strings.TrimSpace(*f.Name) == "" {
		return apperrors.Validation("name must not be empty")
	}
	if f.Date != nil {
		if _, err := time.Parse(constants.DateLayout, *f.Date); err != nil {
			return apperrors.Validation("date must be formatted as YYYY-MM-DD")
		}
	}
	return nil
}

func (f Fields) apply(task *model.Task) error {
	if f.Name != nil {
		task.Name = strings.TrimSpace(*f.Name)
	}
	if f.CategoryPath != nil {
		task.CategoryPath = *f.CategoryPath
	}
	if f.InstanceTag != nil {
		task.InstanceTag = optional(*f.InstanceTag)
	}
	if f.ParentID != nil {
		task.ParentID = optional(*f.ParentID)
	}
	if f.Order != nil {
		task.Order = *f.Order
	}
	if f.Date != nil {
		task.Date = *f.Date
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ConcurrencyGuard applies field edits under optimistic version checks.
// Writes from the device that last wrote a task skip the check, because one
// device with several open tabs routinely races itself; writes from any other
// device must carry the current version.
type ConcurrencyGuard struct {
	repo    *repository.TaskRepository
	devices tracking.DeviceTracker
	retry   retryPolicy
}

func NewConcurrencyGuard(
	repo *repository.TaskRepository,
	devices tracking.DeviceTracker,
	retryAttempts int,
) *ConcurrencyGuard {
	return &ConcurrencyGuard{
		repo:    repo,
		devices: devices,
		retry:   newRetryPolicy(retryAttempts),
	}
}

// Update edits taskID. A nil expectedVersion applies unconditionally.
func (g *ConcurrencyGuard) Update(
	ctx context.Context,
	ownerID, taskID string,
	fields Fields,
	expectedVersion *uint,
	deviceID string,
) (*model.Task, error) {
	if err := fields.validate(); err != nil {
		return nil, err
	}

	var lastWrite *tracking.DeviceWriteRecord
	if expectedVersion != nil {
		lastWrite = g.lastWriteBy(ctx, taskID, deviceID)
	}

	var updated *model.Task
	err := g.retry.do(ctx, "update", func() error {
		return g.repo.Transaction(ctx, func(tx *repository.TaskRepository) error {
			current, err := tx.FindOwned(ctx, ownerID, taskID)
			if err != nil {
				return err
			}
			if fields.ParentID != nil && *fields.ParentID != "" {
				if err := tx.ValidateParent(ctx, ownerID, taskID, *fields.ParentID); err != nil {
					return err
				}
			}

			// The bypass only holds while the device's write is still the
			// latest committed version of the task.
			check := expectedVersion
			if lastWrite != nil && lastWrite.Version == current.Version {
				log.WithFields(log.Fields{
					"task_id":          taskID,
					"device_id":        deviceID,
					"expected_version": *expectedVersion,
				}).Debug("same-device write, skipping version check")
				check = nil
			}

			task, err := tx.Update(ctx, taskID, check, fields.apply)
			if err != nil {
				return err
			}
			updated = task
			return nil
		})
	})
	if err != nil {
		var conflict *apperrors.VersionConflict
		if errors.As(err, &conflict) {
			log.WithFields(log.Fields{
				"task_id":           taskID,
				"device_id":         deviceID,
				"current_version":   conflict.CurrentVersion,
				"requested_version": conflict.RequestedVersion,
			}).Info("rejected stale cross-device write")
		}
		return nil, apperrors.Report(err)
	}

	recordDevice(ctx, g.devices, deviceID, updated)
	return updated, nil
}

// lastWriteBy returns the tracked record for taskID when deviceID made the
// last tracked write. Tracker failures count as "unknown", which keeps the
// strict check.
func (g *ConcurrencyGuard) lastWriteBy(ctx context.Context, taskID, deviceID string) *tracking.DeviceWriteRecord {
	if g.devices == nil || deviceID == "" {
		return nil
	}
	record, ok, err := g.devices.Lookup(ctx, taskID)
	if err != nil {
		log.WithField("task_id", taskID).WithError(err).Warn("device tracker lookup failed")
		return nil
	}
	if !ok || record.DeviceID != deviceID {
		return nil
	}
	return &record
}
