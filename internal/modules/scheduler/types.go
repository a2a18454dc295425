package scheduler

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/marketflow-backend/internal/store"
)

// Task is one scheduled marketing job (campaign send, report, social
// post) owned by a workspace.
type Task struct {
	store.Base
	Name      string         `gorm:"column:name;not null" json:"name"`
	TaskType  string         `gorm:"column:task_type;not null" json:"task_type"`
	Schedule  string         `gorm:"column:schedule;not null" json:"schedule"`
	Payload   datatypes.JSON `gorm:"column:payload" json:"payload,omitempty"`
	Status    string         `gorm:"column:status;not null;default:'pending'" json:"status"`
	NextRunAt *time.Time     `gorm:"column:next_run_at" json:"next_run_at,omitempty"`
	LastRunAt *time.Time     `gorm:"column:last_run_at" json:"last_run_at,omitempty"`
}

func (Task) TableName() string {
	return "sch_tasks"
}

type TaskLog struct {
	store.LogBase
	TaskID uuid.UUID `gorm:"type:uuid;column:task_id;not null;index" json:"task_id"`
	Status string    `gorm:"column:status;not null" json:"status"`
	Output string    `gorm:"column:output" json:"output"`
}

func (TaskLog) TableName() string {
	return "sch_task_logs"
}
