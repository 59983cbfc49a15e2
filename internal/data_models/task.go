package dto

import (
	"time"

	model "task-timer.com/task-timer/internal/models"
)

type CreateTaskRequest struct {
	Name                  string `json:"name"`
	CategoryPath          string `json:"categoryPath"`
	InstanceTag           string `json:"instanceTag"`
	ParentID              string `json:"parentId"`
	Date                  string `json:"date"`
	Order                 int    `json:"order"`
	InitialElapsedSeconds int64  `json:"initialElapsedSeconds"`
	StartRunning          bool   `json:"startRunning"`
}

// UpdateTaskRequest carries a partial edit. Omitted fields stay unchanged;
// an empty parentId or instanceTag clears it.
type UpdateTaskRequest struct {
	Name            *string `json:"name"`
	CategoryPath    *string `json:"categoryPath"`
	InstanceTag     *string `json:"instanceTag"`
	ParentID        *string `json:"parentId"`
	Order           *int    `json:"order"`
	Date            *string `json:"date"`
	ExpectedVersion *uint   `json:"expectedVersion"`
}

type TaskOrder struct {
	ID    string `json:"id"`
	Order int    `json:"order"`
}

type UpdateOrderRequest struct {
	TaskOrders []TaskOrder `json:"taskOrders"`
}

type TaskResponse struct {
	model.Task
	State                   string `json:"state"`
	EffectiveElapsedSeconds int64  `json:"effectiveElapsedSeconds"`
}

func NewTaskResponse(task *model.Task, now time.Time) TaskResponse {
	return TaskResponse{
		Task:                    *task,
		State:                   string(task.State()),
		EffectiveElapsedSeconds: model.EffectiveElapsed(task, now),
	}
}

func NewTaskListResponse(tasks []model.Task, now time.Time) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, NewTaskResponse(&tasks[i], now))
	}
	return out
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type ConflictResponse struct {
	Error            string `json:"error"`
	TaskID           string `json:"taskId"`
	TaskName         string `json:"taskName,omitempty"`
	CurrentVersion   uint   `json:"currentVersion"`
	RequestedVersion uint   `json:"requestedVersion"`
	IsFromSameDevice bool   `json:"isFromSameDevice"`
}
