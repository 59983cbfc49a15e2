package services

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"task-timer.com/task-timer/internal/constants"
	apperrors "task-timer.com/task-timer/internal/errors"
	model "task-timer.com/task-timer/internal/models"
	repository "task-timer.com/task-timer/internal/repositories"
	"task-timer.com/task-timer/internal/tracking"
)

type CreateTaskInput struct {
	Name                  string
	CategoryPath          string
	InstanceTag           string
	ParentID              string
	Date                  string
	Order                 int
	InitialElapsedSeconds int64
	StartRunning          bool
}

// Query selects tasks by a single date, an inclusive date range, or neither
// for everything the owner has.
type Query struct {
	Date      string
	StartDate string
	EndDate   string
}

type OrderUpdate struct {
	ID    string
	Order int
}

type TaskService struct {
	repo    *repository.TaskRepository
	runs    *RunStateController
	devices tracking.DeviceTracker
	retry   retryPolicy
}

func NewTaskService(
	repo *repository.TaskRepository,
	runs *RunStateController,
	devices tracking.DeviceTracker,
	retryAttempts int,
) *TaskService {
	return &TaskService{
		repo:    repo,
		runs:    runs,
		devices: devices,
		retry:   newRetryPolicy(retryAttempts),
	}
}

// CreateTask inserts a task at version 1. A task created running goes through
// the same sibling sweep as Start.
func (s *TaskService) CreateTask(ctx context.Context, ownerID string, in CreateTaskInput, deviceID string, now time.Time) (*model.Task, error) {
	task, err := s.newTask(ownerID, in, now)
	if err != nil {
		return nil, err
	}

	create := func(tx *repository.TaskRepository) error {
		if in.ParentID != "" {
			if err := tx.ValidateParent(ctx, ownerID, "", in.ParentID); err != nil {
				return err
			}
		}
		if in.StartRunning {
			if _, err := sweep(ctx, tx, ownerID, "", now); err != nil {
				return err
			}
			model.Run(task, now)
		}
		return tx.CreateTask(ctx, task)
	}

	if in.StartRunning {
		err = s.runs.exclusive(ctx, "create", ownerID, create)
	} else {
		err = s.retry.do(ctx, "create", func() error {
			return s.repo.Transaction(ctx, create)
		})
	}
	if err != nil {
		return nil, apperrors.Report(err)
	}

	recordDevice(ctx, s.devices, deviceID, task)
	return task, nil
}

func (s *TaskService) newTask(ownerID string, in CreateTaskInput, now time.Time) (*model.Task, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.Validation("name is required")
	}
	if in.InitialElapsedSeconds < 0 {
		return nil, apperrors.Validation("initial elapsed time must not be negative")
	}

	date := in.Date
	if date == "" {
		date = now.UTC().Format(constants.DateLayout)
	} else if _, err := time.Parse(constants.DateLayout, date); err != nil {
		return nil, apperrors.Validation("date must be formatted as YYYY-MM-DD")
	}

	return &model.Task{
		OwnerID:            ownerID,
		Name:               name,
		CategoryPath:       in.CategoryPath,
		InstanceTag:        optional(in.InstanceTag),
		ParentID:           optional(in.ParentID),
		Date:               date,
		Order:              in.Order,
		InitialTimeSeconds: in.InitialElapsedSeconds,
		ElapsedTimeSeconds: in.InitialElapsedSeconds,
	}, nil
}

func (s *TaskService) GetTask(ctx context.Context, ownerID, id string) (*model.Task, error) {
	var task *model.Task
	err := s.retry.do(ctx, "get", func() error {
		var err error
		task, err = s.repo.FindOwned(ctx, ownerID, id)
		return err
	})
	if err != nil {
		return nil, apperrors.Report(err)
	}
	return task, nil
}

func (s *TaskService) ListTasks(ctx context.Context, ownerID string, q Query) ([]model.Task, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}

	var tasks []model.Task
	err := s.retry.do(ctx, "query", func() error {
		var err error
		switch {
		case q.Date != "":
			tasks, err = s.repo.ListByDate(ctx, ownerID, q.Date)
		case q.StartDate != "":
			tasks, err = s.repo.ListByDateRange(ctx, ownerID, q.StartDate, q.EndDate)
		default:
			tasks, err = s.repo.List(ctx, ownerID)
		}
		return err
	})
	if err != nil {
		return nil, apperrors.Report(err)
	}
	return tasks, nil
}

func (q Query) validate() error {
	if q.Date != "" && (q.StartDate != "" || q.EndDate != "") {
		return apperrors.Validation("date cannot be combined with a date range")
	}
	if (q.StartDate == "") != (q.EndDate == "") {
		return apperrors.Validation("startDate and endDate must be given together")
	}
	for _, d := range []string{q.Date, q.StartDate, q.EndDate} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(constants.DateLayout, d); err != nil {
			return apperrors.Validation("dates must be formatted as YYYY-MM-DD")
		}
	}
	if q.StartDate > q.EndDate {
		return apperrors.Validation("startDate must not be after endDate")
	}
	return nil
}

func (s *TaskService) ListDates(ctx context.Context, ownerID string) ([]string, error) {
	var dates []string
	err := s.retry.do(ctx, "dates", func() error {
		var err error
		dates, err = s.repo.ListDates(ctx, ownerID)
		return err
	})
	if err != nil {
		return nil, apperrors.Report(err)
	}
	return dates, nil
}

func (s *TaskService) ListRunning(ctx context.Context, ownerID string) ([]model.Task, error) {
	var tasks []model.Task
	err := s.retry.do(ctx, "running", func() error {
		var err error
		tasks, err = s.repo.ListRunning(ctx, ownerID)
		return err
	})
	if err != nil {
		return nil, apperrors.Report(err)
	}
	return tasks, nil
}

// DeleteTask removes the task and all its descendants and returns how many
// tasks were deleted.
func (s *TaskService) DeleteTask(ctx context.Context, ownerID, id string) (int, error) {
	var deleted []string
	err := s.retry.do(ctx, "delete", func() error {
		var err error
		deleted, err = s.repo.Delete(ctx, ownerID, id)
		return err
	})
	if err != nil {
		return 0, apperrors.Report(err)
	}

	if s.devices != nil {
		for _, taskID := range deleted {
			if err := s.devices.Forget(ctx, taskID); err != nil {
				log.WithField("task_id", taskID).WithError(err).Warn("failed to forget device record")
			}
		}
	}
	return len(deleted), nil
}

// UpdateOrder applies a batch of sort keys atomically. Every reordered task
// gets a new version.
func (s *TaskService) UpdateOrder(ctx context.Context, ownerID string, orders []OrderUpdate) ([]model.Task, error) {
	if len(orders) == 0 {
		return nil, apperrors.Validation("no task orders given")
	}

	var updated []model.Task
	err := s.retry.do(ctx, "order", func() error {
		updated = updated[:0]
		return s.repo.Transaction(ctx, func(tx *repository.TaskRepository) error {
			for _, o := range orders {
				if _, err := tx.FindOwned(ctx, ownerID, o.ID); err != nil {
					return err
				}
				order := o.Order
				task, err := tx.Update(ctx, o.ID, nil, func(task *model.Task) error {
					if task.Order == order {
						return repository.ErrUnchanged
					}
					task.Order = order
					return nil
				})
				if err != nil {
					return err
				}
				updated = append(updated, *task)
			}
			return nil
		})
	})
	if err != nil {
		return nil, apperrors.Report(err)
	}
	return updated, nil
}
