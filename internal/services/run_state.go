package services

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"task-timer.com/task-timer/internal/constants"
	apperrors "task-timer.com/task-timer/internal/errors"
	model "task-timer.com/task-timer/internal/models"
	repository "task-timer.com/task-timer/internal/repositories"
	"task-timer.com/task-timer/internal/tracking"
)

// RunStateController owns every start/pause/resume/stop transition. Starting
// a task pauses the owner's other running tasks in the same transaction, so
// at most one task per owner is ever committed as running.
type RunStateController struct {
	repo    *repository.TaskRepository
	devices tracking.DeviceTracker
	locks   ownerLocks
	retry   retryPolicy
}

func NewRunStateController(
	repo *repository.TaskRepository,
	devices tracking.DeviceTracker,
	retryAttempts int,
) *RunStateController {
	return &RunStateController{
		repo:    repo,
		devices: devices,
		retry:   newRetryPolicy(retryAttempts),
	}
}

func (c *RunStateController) Start(ctx context.Context, ownerID, taskID, deviceID string, now time.Time) (*model.Task, error) {
	return c.activate(ctx, "start", ownerID, taskID, deviceID, now)
}

// Resume has the same contract as Start; it exists so callers can name the
// transition out of Paused.
func (c *RunStateController) Resume(ctx context.Context, ownerID, taskID, deviceID string, now time.Time) (*model.Task, error) {
	return c.activate(ctx, "resume", ownerID, taskID, deviceID, now)
}

func (c *RunStateController) Pause(ctx context.Context, ownerID, taskID string, now time.Time) (*model.Task, error) {
	return c.halt(ctx, "pause", ownerID, taskID, func(task *model.Task) error {
		if !task.IsRunning {
			return repository.ErrUnchanged
		}
		model.Halt(task, now)
		task.IsPaused = true
		return nil
	})
}

func (c *RunStateController) Stop(ctx context.Context, ownerID, taskID string, now time.Time) (*model.Task, error) {
	return c.halt(ctx, "stop", ownerID, taskID, func(task *model.Task) error {
		switch task.State() {
		case constants.StateStopped:
			return repository.ErrUnchanged
		case constants.StateIdle:
			return apperrors.ErrTaskNeverStarted
		}
		model.Halt(task, now)
		completedAt := now.Unix()
		task.IsPaused = false
		task.CompletedAt = &completedAt
		return nil
	})
}

func (c *RunStateController) activate(ctx context.Context, op, ownerID, taskID, deviceID string, now time.Time) (*model.Task, error) {
	var started *model.Task
	err := c.exclusive(ctx, op, ownerID, func(tx *repository.TaskRepository) error {
		if _, err := tx.FindOwned(ctx, ownerID, taskID); err != nil {
			return err
		}
		if _, err := sweep(ctx, tx, ownerID, taskID, now); err != nil {
			return err
		}

		task, err := tx.Update(ctx, taskID, nil, func(task *model.Task) error {
			if task.IsRunning {
				return repository.ErrUnchanged
			}
			if task.CompletedAt != nil {
				return apperrors.ErrTaskCompleted
			}
			model.Run(task, now)
			return nil
		})
		if err != nil {
			return err
		}
		started = task
		return nil
	})
	if err != nil {
		return nil, apperrors.Report(err)
	}

	recordDevice(ctx, c.devices, deviceID, started)
	return started, nil
}

func (c *RunStateController) halt(ctx context.Context, op, ownerID, taskID string, mutate repository.Mutator) (*model.Task, error) {
	var halted *model.Task
	err := c.retry.do(ctx, op, func() error {
		return c.repo.Transaction(ctx, func(tx *repository.TaskRepository) error {
			if _, err := tx.FindOwned(ctx, ownerID, taskID); err != nil {
				return err
			}
			task, err := tx.Update(ctx, taskID, nil, mutate)
			if err != nil {
				return err
			}
			halted = task
			return nil
		})
	})
	if err != nil {
		return nil, apperrors.Report(err)
	}
	return halted, nil
}

// exclusive runs fn in one transaction while holding the owner's lock,
// retrying the whole transaction on storage faults.
func (c *RunStateController) exclusive(ctx context.Context, op, ownerID string, fn func(tx *repository.TaskRepository) error) error {
	unlock := c.locks.lock(ownerID)
	defer unlock()

	return c.retry.do(ctx, op, func() error {
		return c.repo.Transaction(ctx, fn)
	})
}

// Reconcile repairs an owner with more than one running task: the most
// recently started one keeps running, the rest are paused with their time
// accounted. It returns the tasks it paused.
func (c *RunStateController) Reconcile(ctx context.Context, ownerID string, now time.Time) ([]model.Task, error) {
	var paused []model.Task
	err := c.exclusive(ctx, "reconcile", ownerID, func(tx *repository.TaskRepository) error {
		running, err := tx.ListRunning(ctx, ownerID)
		if err != nil {
			return err
		}
		if len(running) < 2 {
			paused = nil
			return nil
		}

		keep := running[0]
		paused, err = sweep(ctx, tx, ownerID, keep.ID, now)
		if err != nil {
			return err
		}

		log.WithFields(log.Fields{
			"owner_id": ownerID,
			"kept":     keep.ID,
			"paused":   len(paused),
		}).Warn("repaired owner with multiple running tasks")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paused, nil
}

// sweep pauses every running task of ownerID except exceptID. It must run
// inside the caller's transaction so the sweep and whatever follows commit
// together.
func sweep(ctx context.Context, tx *repository.TaskRepository, ownerID, exceptID string, now time.Time) ([]model.Task, error) {
	running, err := tx.ListRunning(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	paused := make([]model.Task, 0, len(running))
	for _, sibling := range running {
		if sibling.ID == exceptID {
			continue
		}
		task, err := tx.Update(ctx, sibling.ID, nil, func(task *model.Task) error {
			if !task.IsRunning {
				return repository.ErrUnchanged
			}
			model.Halt(task, now)
			task.IsPaused = true
			return nil
		})
		if err != nil {
			return nil, err
		}
		paused = append(paused, *task)
	}
	return paused, nil
}

func recordDevice(ctx context.Context, devices tracking.DeviceTracker, deviceID string, task *model.Task) {
	if devices == nil || deviceID == "" || task == nil {
		return
	}
	err := devices.Record(ctx, task.ID, tracking.DeviceWriteRecord{
		DeviceID:  deviceID,
		Version:   task.Version,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		log.WithFields(log.Fields{"task_id": task.ID, "device_id": deviceID}).WithError(err).Warn("failed to record device write")
	}
}
