package model

import "time"

// EffectiveElapsed returns the accumulated seconds of t plus the in-progress
// running interval at now. A start time in the future counts as zero.
func EffectiveElapsed(t *Task, now time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.ElapsedTimeSeconds + runningSeconds(t, now)
}

func runningSeconds(t *Task, now time.Time) int64 {
	if !t.IsRunning || t.IsPaused || t.StartTimeEpoch == nil {
		return 0
	}
	d := now.Unix() - *t.StartTimeEpoch
	if d < 0 {
		return 0
	}
	return d
}

// Halt folds the running interval into ElapsedTimeSeconds and clears the
// running fields. It leaves IsPaused and CompletedAt to the caller.
func Halt(t *Task, now time.Time) {
	t.ElapsedTimeSeconds = EffectiveElapsed(t, now)
	t.IsRunning = false
	t.StartTimeEpoch = nil
}

// Run marks t as running from now.
func Run(t *Task, now time.Time) {
	start := now.Unix()
	t.IsRunning = true
	t.IsPaused = false
	t.StartTimeEpoch = &start
}
