package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	apperrors "task-timer.com/task-timer/internal/errors"
	model "task-timer.com/task-timer/internal/models"
)

const runningIndexName = "idx_tasks_one_running_per_owner"

// ErrUnchanged is returned by a Mutator to leave the task as it is. Update
// then returns the current row without bumping its version.
var ErrUnchanged = errors.New("task unchanged")

type Mutator func(task *model.Task) error

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Migrate creates the tasks table and the partial unique index that allows at
// most one running row per owner.
func (r *TaskRepository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&model.Task{}); err != nil {
		return errors.Wrap(err, "migrate tasks")
	}
	return r.EnsureRunningIndex(ctx)
}

func (r *TaskRepository) EnsureRunningIndex(ctx context.Context) error {
	err := r.db.WithContext(ctx).Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS " + runningIndexName + " ON tasks(owner_id) WHERE is_running",
	).Error
	return errors.Wrap(err, "create running index")
}

// Transaction runs fn against a repository bound to a single transaction.
// Any error returned by fn rolls back every write made through it.
func (r *TaskRepository) Transaction(ctx context.Context, fn func(tx *TaskRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&TaskRepository{db: tx})
	})
}

func (r *TaskRepository) CreateTask(ctx context.Context, task *model.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	task.Version = 1
	task.CreatedAt = now
	task.UpdatedAt = now

	if err := checkInvariants(nil, task); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return errors.Wrap(err, "create task")
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id string) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).First(&task, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrTaskNotFound.Wrap(err)
	}
	if err != nil {
		return nil, errors.Wrap(err, "find task")
	}
	return &task, nil
}

// FindOwned is FindByID scoped to ownerID. A task of another owner is
// reported as missing.
func (r *TaskRepository) FindOwned(ctx context.Context, ownerID, id string) (*model.Task, error) {
	task, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.OwnerID != ownerID {
		return nil, apperrors.ErrTaskNotFound
	}
	return task, nil
}

// Update is the single mutation primitive for existing tasks. It reads the
// row, optionally checks expectedVersion, applies mutate to a copy and writes
// it back with a compare-and-swap on version, all in one transaction.
func (r *TaskRepository) Update(ctx context.Context, id string, expectedVersion *uint, mutate Mutator) (*model.Task, error) {
	var updated *model.Task
	err := r.Transaction(ctx, func(tx *TaskRepository) error {
		current, err := tx.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if expectedVersion != nil && *expectedVersion != current.Version {
			return &apperrors.VersionConflict{
				TaskID:           current.ID,
				TaskName:         current.Name,
				CurrentVersion:   current.Version,
				RequestedVersion: *expectedVersion,
			}
		}

		next := *current
		if err := mutate(&next); err != nil {
			if errors.Is(err, ErrUnchanged) {
				updated = current
				return nil
			}
			return err
		}
		if err := checkInvariants(current, &next); err != nil {
			return err
		}
		if err := tx.save(ctx, current.Version, &next); err != nil {
			return err
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *TaskRepository) save(ctx context.Context, fromVersion uint, task *model.Task) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND version = ?", task.ID, fromVersion).
		Updates(map[string]interface{}{
			"name":                 task.Name,
			"category_path":        task.CategoryPath,
			"instance_tag":         task.InstanceTag,
			"parent_id":            task.ParentID,
			"date":                 task.Date,
			"sort_order":           task.Order,
			"elapsed_time_seconds": task.ElapsedTimeSeconds,
			"start_time_epoch":     task.StartTimeEpoch,
			"is_running":           task.IsRunning,
			"is_paused":            task.IsPaused,
			"completed_at":         task.CompletedAt,
			"updated_at":           now,
			"version":              gorm.Expr("version + 1"),
		})

	if res.Error != nil {
		return errors.Wrap(res.Error, "update task")
	}

	if res.RowsAffected == 0 {
		return apperrors.ErrOptimisticLock
	}

	task.Version = fromVersion + 1
	task.UpdatedAt = now
	return nil
}

// Delete removes the task and all of its descendants. It returns the ids
// that were deleted, the task itself first.
func (r *TaskRepository) Delete(ctx context.Context, ownerID, id string) ([]string, error) {
	var deleted []string
	err := r.Transaction(ctx, func(tx *TaskRepository) error {
		if _, err := tx.FindOwned(ctx, ownerID, id); err != nil {
			return err
		}
		ids, err := tx.subtree(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.db.WithContext(ctx).Where("id IN ?", ids).Delete(&model.Task{}).Error; err != nil {
			return errors.Wrap(err, "delete tasks")
		}
		deleted = ids
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func (r *TaskRepository) subtree(ctx context.Context, rootID string) ([]string, error) {
	ids := []string{rootID}
	seen := map[string]struct{}{rootID: {}}
	frontier := []string{rootID}

	for len(frontier) > 0 {
		var children []string
		err := r.db.WithContext(ctx).Model(&model.Task{}).
			Where("parent_id IN ?", frontier).
			Pluck("id", &children).Error
		if err != nil {
			return nil, errors.Wrap(err, "list children")
		}

		frontier = frontier[:0]
		for _, child := range children {
			if _, ok := seen[child]; ok {
				continue
			}
			seen[child] = struct{}{}
			ids = append(ids, child)
			frontier = append(frontier, child)
		}
	}
	return ids, nil
}

// ValidateParent checks that parentID names a task of ownerID and that making
// it the parent of taskID keeps the hierarchy acyclic. taskID may be empty for
// a task that does not exist yet.
func (r *TaskRepository) ValidateParent(ctx context.Context, ownerID, taskID, parentID string) error {
	if parentID == taskID {
		return apperrors.ErrParentCycle
	}

	seen := make(map[string]struct{})
	cursor := parentID
	for cursor != "" {
		if cursor == taskID {
			return apperrors.ErrParentCycle
		}
		if _, ok := seen[cursor]; ok {
			return apperrors.ErrParentCycle
		}
		seen[cursor] = struct{}{}

		task, err := r.FindOwned(ctx, ownerID, cursor)
		if err != nil {
			if errors.Is(err, apperrors.ErrTaskNotFound) {
				return apperrors.ErrParentNotFound
			}
			return err
		}
		if task.ParentID == nil {
			return nil
		}
		cursor = *task.ParentID
	}
	return nil
}

// ListRunning returns the running tasks of ownerID, most recently started
// first. A single statement, so it never straddles a concurrent commit.
func (r *TaskRepository) ListRunning(ctx context.Context, ownerID string) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND is_running = ?", ownerID, true).
		Order("start_time_epoch desc").Order("id asc").
		Find(&tasks).Error
	return tasks, errors.Wrap(err, "list running tasks")
}

func (r *TaskRepository) List(ctx context.Context, ownerID string) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at desc").
		Find(&tasks).Error
	return tasks, errors.Wrap(err, "list tasks")
}

func (r *TaskRepository) ListByDate(ctx context.Context, ownerID, date string) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND date = ?", ownerID, date).
		Order("sort_order asc").Order("created_at desc").
		Find(&tasks).Error
	return tasks, errors.Wrap(err, "list tasks by date")
}

func (r *TaskRepository) ListByDateRange(ctx context.Context, ownerID, from, to string) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND date >= ? AND date <= ?", ownerID, from, to).
		Order("date desc").Order("sort_order asc").
		Find(&tasks).Error
	return tasks, errors.Wrap(err, "list tasks by date range")
}

// ListDates returns the distinct days ownerID has tasks on, newest first.
func (r *TaskRepository) ListDates(ctx context.Context, ownerID string) ([]string, error) {
	var dates []string
	err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("owner_id = ?", ownerID).
		Distinct("date").
		Order("date desc").
		Pluck("date", &dates).Error
	return dates, errors.Wrap(err, "list dates")
}

// OwnersWithMultipleRunning lists owners currently violating the single
// running task rule.
func (r *TaskRepository) OwnersWithMultipleRunning(ctx context.Context) ([]string, error) {
	var owners []string
	err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("is_running = ?", true).
		Group("owner_id").
		Having("COUNT(*) > 1").
		Pluck("owner_id", &owners).Error
	return owners, errors.Wrap(err, "list owners with multiple running tasks")
}

func checkInvariants(previous, next *model.Task) error {
	switch {
	case next.IsRunning != (next.StartTimeEpoch != nil):
		return apperrors.ErrInvariantViolation.Wrap(errors.Errorf("task %s: running flag and start time disagree", next.ID))
	case next.IsRunning && next.IsPaused:
		return apperrors.ErrInvariantViolation.Wrap(errors.Errorf("task %s: running and paused", next.ID))
	case next.ElapsedTimeSeconds < 0:
		return apperrors.ErrInvariantViolation.Wrap(errors.Errorf("task %s: negative elapsed time", next.ID))
	case previous != nil && next.ElapsedTimeSeconds < previous.ElapsedTimeSeconds:
		return apperrors.ErrInvariantViolation.Wrap(errors.Errorf("task %s: elapsed time decreased", next.ID))
	}
	return nil
}
