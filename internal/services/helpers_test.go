package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	model "task-timer.com/task-timer/internal/models"
	repository "task-timer.com/task-timer/internal/repositories"
	"task-timer.com/task-timer/internal/tracking"
)

var t0 = time.Date(2025, 11, 2, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	db         *gorm.DB
	repo       *repository.TaskRepository
	devices    *tracking.MemoryDeviceTracker
	runs       *RunStateController
	guard      *ConcurrencyGuard
	tasks      *TaskService
	reconciler *Reconciler
}

func setupTestDB(t *testing.T) *gorm.DB {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := repository.NewTaskRepository(db).Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	return db
}

func newTestEnv(t *testing.T) *testEnv {
	db := setupTestDB(t)
	repo := repository.NewTaskRepository(db)
	devices := tracking.NewMemoryDeviceTracker(100, time.Minute)
	runs := NewRunStateController(repo, devices, 1)

	return &testEnv{
		db:         db,
		repo:       repo,
		devices:    devices,
		runs:       runs,
		guard:      NewConcurrencyGuard(repo, devices, 1),
		tasks:      NewTaskService(repo, runs, devices, 1),
		reconciler: NewReconciler(repo, runs, 0),
	}
}

func (e *testEnv) create(t *testing.T, ownerID, name string) *model.Task {
	t.Helper()
	task, err := e.tasks.CreateTask(context.Background(), ownerID, CreateTaskInput{
		Name:         name,
		CategoryPath: "work/dev",
	}, "", t0)
	require.NoError(t, err)
	return task
}

func (e *testEnv) reload(t *testing.T, id string) *model.Task {
	t.Helper()
	task, err := e.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return task
}

func (e *testEnv) runningCount(t *testing.T, ownerID string) int {
	t.Helper()
	running, err := e.repo.ListRunning(context.Background(), ownerID)
	require.NoError(t, err)
	return len(running)
}

func ptr[T any](v T) *T {
	return &v
}
