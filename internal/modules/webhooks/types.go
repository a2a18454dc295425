package webhooks

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/marketflow-backend/internal/store"
)

// Webhook is one outbound event subscription owned by a workspace.
type Webhook struct {
	store.Base
	Name   string         `gorm:"column:name;not null" json:"name"`
	URL    string         `gorm:"column:url;not null" json:"url"`
	Secret string         `gorm:"column:secret" json:"-"`
	Events datatypes.JSON `gorm:"column:events" json:"events,omitempty"`
	Status string         `gorm:"column:status;not null;default:'active'" json:"status"`
}

func (Webhook) TableName() string {
	return "wh_webhooks"
}

// DeliveryLog records one delivery attempt for a webhook.
type DeliveryLog struct {
	store.LogBase
	WebhookID uuid.UUID      `gorm:"type:uuid;column:webhook_id;not null;index" json:"webhook_id"`
	Status    string         `gorm:"column:status;not null" json:"status"`
	Payload   datatypes.JSON `gorm:"column:payload" json:"payload,omitempty"`
}

func (DeliveryLog) TableName() string {
	return "wh_delivery_logs"
}
