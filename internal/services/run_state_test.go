package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"task-timer.com/task-timer/internal/constants"
	apperrors "task-timer.com/task-timer/internal/errors"
	model "task-timer.com/task-timer/internal/models"
)

func TestRunState_StartPausesRunningSibling(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	t1 := env.create(t, "owner-1", "T1")
	t2 := env.create(t, "owner-1", "T2")

	_, err := env.runs.Start(ctx, "owner-1", t1.ID, "device-a", t0)
	require.NoError(t, err)

	started, err := env.runs.Start(ctx, "owner-1", t2.ID, "device-a", t0.Add(10*time.Second))
	require.NoError(t, err)

	first := env.reload(t, t1.ID)
	assert.False(t, first.IsRunning)
	assert.Equal(t, int64(10), first.ElapsedTimeSeconds)
	assert.Nil(t, first.StartTimeEpoch)

	assert.True(t, started.IsRunning)
	require.NotNil(t, started.StartTimeEpoch)
	assert.Equal(t, t0.Add(10*time.Second).Unix(), *started.StartTimeEpoch)
	assert.Equal(t, 1, env.runningCount(t, "owner-1"))
}

func TestRunState_PauseAccountsElapsedTime(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	task, err := env.tasks.CreateTask(ctx, "owner-1", CreateTaskInput{
		Name:                  "T",
		InitialElapsedSeconds: 100,
	}, "", t0)
	require.NoError(t, err)

	running, err := env.runs.Start(ctx, "owner-1", task.ID, "", t0)
	require.NoError(t, err)

	pauseAt := t0.Add(50 * time.Second)
	before := model.EffectiveElapsed(running, pauseAt)

	paused, err := env.runs.Pause(ctx, "owner-1", task.ID, pauseAt)
	require.NoError(t, err)

	assert.Equal(t, int64(150), paused.ElapsedTimeSeconds)
	assert.Equal(t, before, paused.ElapsedTimeSeconds)
	assert.False(t, paused.IsRunning)
	assert.True(t, paused.IsPaused)
	assert.Nil(t, paused.StartTimeEpoch)
	assert.Equal(t, constants.StatePaused, paused.State())
}

func TestRunState_PauseIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	task := env.create(t, "owner-1", "T")

	_, err := env.runs.Start(ctx, "owner-1", task.ID, "", t0)
	require.NoError(t, err)
	first, err := env.runs.Pause(ctx, "owner-1", task.ID, t0.Add(30*time.Second))
	require.NoError(t, err)

	second, err := env.runs.Pause(ctx, "owner-1", task.ID, t0.Add(90*time.Second))
	require.NoError(t, err)

	assert.Equal(t, first.Version, second.Version)
	assert.Equal(t, first.ElapsedTimeSeconds, second.ElapsedTimeSeconds)
	assert.Equal(t, first.IsPaused, second.IsPaused)
	assert.Equal(t, first.Version, env.reload(t, task.ID).Version)
}

func TestRunState_ResumeSweepsSiblings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.create(t, "owner-1", "A")
	b := env.create(t, "owner-1", "B")

	_, err := env.runs.Start(ctx, "owner-1", a.ID, "", t0)
	require.NoError(t, err)
	_, err = env.runs.Pause(ctx, "owner-1", a.ID, t0.Add(5*time.Second))
	require.NoError(t, err)
	_, err = env.runs.Start(ctx, "owner-1", b.ID, "", t0.Add(10*time.Second))
	require.NoError(t, err)

	resumed, err := env.runs.Resume(ctx, "owner-1", a.ID, "", t0.Add(40*time.Second))
	require.NoError(t, err)

	assert.True(t, resumed.IsRunning)
	assert.False(t, resumed.IsPaused)
	assert.Equal(t, int64(5), resumed.ElapsedTimeSeconds)

	other := env.reload(t, b.ID)
	assert.False(t, other.IsRunning)
	assert.True(t, other.IsPaused)
	assert.Equal(t, int64(30), other.ElapsedTimeSeconds)
	assert.Equal(t, 1, env.runningCount(t, "owner-1"))
}

func TestRunState_StartRunningTaskIsNoop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	task := env.create(t, "owner-1", "T")

	first, err := env.runs.Start(ctx, "owner-1", task.ID, "", t0)
	require.NoError(t, err)
	again, err := env.runs.Start(ctx, "owner-1", task.ID, "", t0.Add(time.Minute))
	require.NoError(t, err)

	assert.Equal(t, first.Version, again.Version)
	assert.Equal(t, *first.StartTimeEpoch, *again.StartTimeEpoch)
}

func TestRunState_StopIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	task := env.create(t, "owner-1", "T")

	_, err := env.runs.Stop(ctx, "owner-1", task.ID, t0)
	assert.True(t, errors.Is(err, apperrors.ErrTaskNeverStarted))

	_, err = env.runs.Start(ctx, "owner-1", task.ID, "", t0)
	require.NoError(t, err)

	stopped, err := env.runs.Stop(ctx, "owner-1", task.ID, t0.Add(20*time.Second))
	require.NoError(t, err)
	assert.False(t, stopped.IsRunning)
	assert.False(t, stopped.IsPaused)
	assert.Equal(t, int64(20), stopped.ElapsedTimeSeconds)
	require.NotNil(t, stopped.CompletedAt)
	assert.Equal(t, t0.Add(20*time.Second).Unix(), *stopped.CompletedAt)
	assert.Equal(t, constants.StateStopped, stopped.State())

	again, err := env.runs.Stop(ctx, "owner-1", task.ID, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, stopped.Version, again.Version)

	_, err = env.runs.Start(ctx, "owner-1", task.ID, "", t0.Add(time.Hour))
	assert.True(t, errors.Is(err, apperrors.ErrTaskCompleted))
}

func TestRunState_StopFromPaused(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	task := env.create(t, "owner-1", "T")

	_, err := env.runs.Start(ctx, "owner-1", task.ID, "", t0)
	require.NoError(t, err)
	_, err = env.runs.Pause(ctx, "owner-1", task.ID, t0.Add(15*time.Second))
	require.NoError(t, err)

	stopped, err := env.runs.Stop(ctx, "owner-1", task.ID, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(15), stopped.ElapsedTimeSeconds)
	assert.Equal(t, constants.StateStopped, stopped.State())
}

func TestRunState_VersionIncrementsByOne(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	task := env.create(t, "owner-1", "T")
	require.Equal(t, uint(1), task.Version)

	steps := []func() (*model.Task, error){
		func() (*model.Task, error) { return env.runs.Start(ctx, "owner-1", task.ID, "", t0) },
		func() (*model.Task, error) { return env.runs.Pause(ctx, "owner-1", task.ID, t0.Add(time.Second)) },
		func() (*model.Task, error) { return env.runs.Resume(ctx, "owner-1", task.ID, "", t0.Add(2*time.Second)) },
		func() (*model.Task, error) {
			return env.guard.Update(ctx, "owner-1", task.ID, Fields{Name: ptr("renamed")}, nil, "")
		},
		func() (*model.Task, error) { return env.runs.Stop(ctx, "owner-1", task.ID, t0.Add(3*time.Second)) },
	}

	want := uint(1)
	for i, step := range steps {
		got, err := step()
		require.NoError(t, err, "step %d", i)
		want++
		assert.Equal(t, want, got.Version, "step %d", i)
		assert.Equal(t, want, env.reload(t, task.ID).Version, "step %d", i)
	}
}

func TestRunState_OwnersAreIndependent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mine := env.create(t, "owner-1", "mine")
	theirs := env.create(t, "owner-2", "theirs")

	_, err := env.runs.Start(ctx, "owner-1", mine.ID, "", t0)
	require.NoError(t, err)
	_, err = env.runs.Start(ctx, "owner-2", theirs.ID, "", t0)
	require.NoError(t, err)

	assert.True(t, env.reload(t, mine.ID).IsRunning)
	assert.True(t, env.reload(t, theirs.ID).IsRunning)

	_, err = env.runs.Start(ctx, "owner-2", mine.ID, "", t0)
	assert.True(t, errors.Is(err, apperrors.ErrTaskNotFound))
	_, err = env.runs.Pause(ctx, "owner-1", "missing", t0)
	assert.True(t, errors.Is(err, apperrors.ErrTaskNotFound))
}

func TestRunState_ConcurrentStartsLeaveOneRunning(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const taskCount = 10
	ids := make([]string, taskCount)
	for i := range ids {
		ids[i] = env.create(t, "owner-1", "T").ID
	}

	var wg sync.WaitGroup
	errs := make(chan error, taskCount)
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, err := env.runs.Start(ctx, "owner-1", id, "", t0.Add(time.Duration(i)*time.Second))
			if err != nil {
				errs <- err
			}
		}(i, id)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent start failed: %v", err)
	}
	assert.Equal(t, 1, env.runningCount(t, "owner-1"))
}

func TestRunState_FailedStartRollsBackSweep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	t1 := env.create(t, "owner-1", "T1")
	t2 := env.create(t, "owner-1", "T2")

	running, err := env.runs.Start(ctx, "owner-1", t1.ID, "", t0)
	require.NoError(t, err)

	failStarts := errors.New("disk I/O error")
	err = env.db.Callback().Update().Before("gorm:update").Register("test:fail_start", func(tx *gorm.DB) {
		if values, ok := tx.Statement.Dest.(map[string]interface{}); ok && values["is_running"] == true {
			_ = tx.AddError(failStarts)
		}
	})
	require.NoError(t, err)

	_, err = env.runs.Start(ctx, "owner-1", t2.ID, "", t0.Add(10*time.Second))
	require.Error(t, err)
	assert.Equal(t, apperrors.KindStorage, apperrors.KindOf(err))

	first := env.reload(t, t1.ID)
	assert.True(t, first.IsRunning, "sibling pause must roll back with the failed start")
	assert.Equal(t, running.Version, first.Version)
	assert.Equal(t, int64(0), first.ElapsedTimeSeconds)
	assert.False(t, env.reload(t, t2.ID).IsRunning)

	require.NoError(t, env.db.Callback().Update().Remove("test:fail_start"))
	_, err = env.runs.Start(ctx, "owner-1", t2.ID, "", t0.Add(10*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, env.runningCount(t, "owner-1"))
	assert.Equal(t, int64(10), env.reload(t, t1.ID).ElapsedTimeSeconds)
}

func TestRunState_StartRecordsDevice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	task := env.create(t, "owner-1", "T")

	started, err := env.runs.Start(ctx, "owner-1", task.ID, "phone", t0)
	require.NoError(t, err)

	record, ok, err := env.devices.Lookup(ctx, task.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "phone", record.DeviceID)
	assert.Equal(t, started.Version, record.Version)
}
