package team

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/marketflow-backend/internal/store"
)

// Member is one workspace teammate with a role and a permissions blob.
type Member struct {
	store.Base
	Name        string         `gorm:"column:name;not null" json:"name"`
	Email       string         `gorm:"column:email;not null;index" json:"email"`
	Role        string         `gorm:"column:role;not null;default:'editor'" json:"role"`
	Permissions datatypes.JSON `gorm:"column:permissions" json:"permissions,omitempty"`
	Status      string         `gorm:"column:status;not null;default:'pending'" json:"status"`
}

func (Member) TableName() string {
	return "team_members"
}

// MemberLog records one membership event (invite, role change, removal).
type MemberLog struct {
	store.LogBase
	MemberID uuid.UUID `gorm:"type:uuid;column:member_id;not null;index" json:"member_id"`
	Action   string    `gorm:"column:action;not null" json:"action"`
	Details  string    `gorm:"column:details" json:"details"`
}

func (MemberLog) TableName() string {
	return "team_member_logs"
}
