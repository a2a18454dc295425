package activity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/marketflow-backend/internal/logger"
)

// Entry is one row of the cross-module audit trail. Append-only; the core
// writes it after every mutation and never reads it back (the dashboard
// activity feed does).
type Entry struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Module      string         `gorm:"column:module;not null;index" json:"module"`
	Action      string         `gorm:"column:action;not null" json:"action"`
	Description string         `gorm:"column:description;not null" json:"description"`
	Detail      datatypes.JSON `gorm:"column:detail" json:"detail,omitempty"`
	WorkspaceID uuid.UUID      `gorm:"type:uuid;column:workspace_id;index" json:"workspace_id"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
}

func (Entry) TableName() string {
	return "activity_entry"
}

type Recorder interface {
	// Record appends one entry. Failures are logged and swallowed: an
	// audit write must never turn a successful mutation into a failed
	// request.
	Record(ctx context.Context, e Entry)
	// Recent returns the newest entries for a workspace, capped.
	Recent(ctx context.Context, workspaceID uuid.UUID, limit int) ([]Entry, error)
}

type recorder struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRecorder(db *gorm.DB, baseLog *logger.Logger) Recorder {
	return &recorder{db: db, log: baseLog.With("component", "ActivityRecorder")}
}

func InitSchema(db *gorm.DB) error {
	return db.AutoMigrate(&Entry{})
}

func (r *recorder) Record(ctx context.Context, e Entry) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(&e).Error; err != nil {
		r.log.Warn("Failed to append activity entry", "error", err, "module", e.Module, "action", e.Action)
	}
}

func (r *recorder) Recent(ctx context.Context, workspaceID uuid.UUID, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []Entry
	if err := r.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
