package errors

import "fmt"

// VersionConflict is returned when a write carries a stale expected version
// and the device bypass does not apply.
type VersionConflict struct {
	TaskID           string `json:"taskId"`
	TaskName         string `json:"taskName,omitempty"`
	CurrentVersion   uint   `json:"currentVersion"`
	RequestedVersion uint   `json:"requestedVersion"`
	IsFromSameDevice bool   `json:"isFromSameDevice"`
}

func (e *VersionConflict) Error() string {
	return fmt.Sprintf("version conflict on task %s: current %d, requested %d",
		e.TaskID, e.CurrentVersion, e.RequestedVersion)
}
