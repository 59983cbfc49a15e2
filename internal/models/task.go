package model

import (
	"time"

	"task-timer.com/task-timer/internal/constants"
)

type Task struct {
	ID                 string    `gorm:"primaryKey;size:36" json:"id"`
	OwnerID            string    `gorm:"size:64;not null;index:idx_tasks_owner_date" json:"ownerId"`
	Name               string    `gorm:"not null" json:"name"`
	CategoryPath       string    `gorm:"not null;default:''" json:"categoryPath"`
	InstanceTag        *string   `gorm:"size:255" json:"instanceTag,omitempty"`
	ParentID           *string   `gorm:"size:36;index" json:"parentId,omitempty"`
	Date               string    `gorm:"size:10;not null;index:idx_tasks_owner_date" json:"date"`
	Order              int       `gorm:"column:sort_order;not null;default:0" json:"order"`
	InitialTimeSeconds int64     `gorm:"not null;default:0" json:"initialTimeSeconds"`
	ElapsedTimeSeconds int64     `gorm:"not null;default:0" json:"elapsedTimeSeconds"`
	StartTimeEpoch     *int64    `json:"startTimeEpoch"`
	IsRunning          bool      `gorm:"not null;default:false" json:"isRunning"`
	IsPaused           bool      `gorm:"not null;default:false" json:"isPaused"`
	CompletedAt        *int64    `json:"completedAt,omitempty"`
	Version            uint      `gorm:"not null;default:1" json:"version"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func (Task) TableName() string {
	return "tasks"
}

// State derives the run state from the stored flags. IsRunning wins over
// every other field; IsPaused is only a hint between Idle and Paused.
func (t *Task) State() constants.RunState {
	switch {
	case t.IsRunning:
		return constants.StateRunning
	case t.CompletedAt != nil:
		return constants.StateStopped
	case t.IsPaused:
		return constants.StatePaused
	default:
		return constants.StateIdle
	}
}
