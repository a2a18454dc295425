package store

import (
	"time"

	"github.com/google/uuid"
)

// Base is embedded by every module resource model. It carries the
// identity and tenant scoping columns the Store contract depends on.
type Base struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	WorkspaceID uuid.UUID `gorm:"type:uuid;column:workspace_id;not null;index" json:"workspace_id"`
	CreatedAt   time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

func (b *Base) GetID() uuid.UUID            { return b.ID }
func (b *Base) SetID(id uuid.UUID)          { b.ID = id }
func (b *Base) GetWorkspaceID() uuid.UUID   { return b.WorkspaceID }
func (b *Base) SetWorkspaceID(id uuid.UUID) { b.WorkspaceID = id }

// LogBase is embedded by every module log model. Log rows are scoped
// through their parent record, not by workspace directly.
type LogBase struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

func (b *LogBase) GetID() uuid.UUID   { return b.ID }
func (b *LogBase) SetID(id uuid.UUID) { b.ID = id }
