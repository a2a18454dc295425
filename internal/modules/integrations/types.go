package integrations

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/marketflow-backend/internal/store"
)

// Connection is one configured third-party integration (CRM, email
// platform, ad network, ...) owned by a workspace.
type Connection struct {
	store.Base
	Name         string         `gorm:"column:name;not null" json:"name"`
	Provider     string         `gorm:"column:provider;not null" json:"provider"`
	Config       datatypes.JSON `gorm:"column:config" json:"config,omitempty"`
	Status       string         `gorm:"column:status;not null;default:'disconnected'" json:"status"`
	LastSyncedAt *time.Time     `gorm:"column:last_synced_at" json:"last_synced_at,omitempty"`
}

func (Connection) TableName() string {
	return "int_connections"
}

// SyncLog records one sync attempt against a connection.
type SyncLog struct {
	store.LogBase
	ConnectionID uuid.UUID `gorm:"type:uuid;column:connection_id;not null;index" json:"connection_id"`
	Status       string    `gorm:"column:status;not null" json:"status"`
	Details      string    `gorm:"column:details" json:"details"`
}

func (SyncLog) TableName() string {
	return "int_sync_logs"
}
