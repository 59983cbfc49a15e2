package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"task-timer.com/task-timer/internal/constants"
)

func TestEffectiveElapsed(t *testing.T) {
	now := time.Unix(10_000, 0)
	start := int64(9_900)
	future := int64(10_060)

	cases := []struct {
		name string
		task *Task
		want int64
	}{
		{"nil task", nil, 0},
		{"idle", &Task{ElapsedTimeSeconds: 30}, 30},
		{"running", &Task{ElapsedTimeSeconds: 30, IsRunning: true, StartTimeEpoch: &start}, 130},
		{"running but flagged paused", &Task{ElapsedTimeSeconds: 30, IsRunning: true, IsPaused: true, StartTimeEpoch: &start}, 30},
		{"start in the future", &Task{ElapsedTimeSeconds: 30, IsRunning: true, StartTimeEpoch: &future}, 30},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, EffectiveElapsed(tc.task, now))
		})
	}
}

func TestRunThenHaltIsContinuous(t *testing.T) {
	task := &Task{ElapsedTimeSeconds: 100, IsPaused: true}
	t0 := time.Unix(1_000, 0)

	Run(task, t0)
	assert.True(t, task.IsRunning)
	assert.False(t, task.IsPaused)
	assert.Equal(t, constants.StateRunning, task.State())

	Halt(task, t0.Add(45*time.Second))
	assert.False(t, task.IsRunning)
	assert.Nil(t, task.StartTimeEpoch)
	assert.Equal(t, int64(145), task.ElapsedTimeSeconds)
	assert.Equal(t, constants.StateIdle, task.State())

	task.IsPaused = true
	assert.Equal(t, constants.StatePaused, task.State())

	completed := int64(2_000)
	task.CompletedAt = &completed
	assert.Equal(t, constants.StateStopped, task.State())
}
