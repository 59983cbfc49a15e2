package tracking

import (
	"context"
	"time"
)

// DeviceWriteRecord is the last (device, version) pair observed for a task.
type DeviceWriteRecord struct {
	DeviceID  string    `json:"deviceId"`
	Version   uint      `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// DeviceTracker remembers which device last wrote each task. It is a hint:
// implementations may drop entries at any time, and a missing entry only
// sends the next write down the strict version check.
type DeviceTracker interface {
	Lookup(ctx context.Context, taskID string) (DeviceWriteRecord, bool, error)

	Record(ctx context.Context, taskID string, record DeviceWriteRecord) error

	Forget(ctx context.Context, taskID string) error
}
