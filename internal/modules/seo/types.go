package seo

import (
	"github.com/google/uuid"

	"github.com/yungbote/marketflow-backend/internal/store"
)

// Keyword is one tracked search term. Opportunity is a derived score
// (volume weighted against difficulty) used as the default ranking.
type Keyword struct {
	store.Base
	Term         string  `gorm:"column:term;not null" json:"term"`
	SearchVolume int     `gorm:"column:search_volume;not null;default:0" json:"search_volume"`
	Difficulty   int     `gorm:"column:difficulty;not null;default:0" json:"difficulty"`
	Opportunity  float64 `gorm:"column:opportunity;not null;default:0" json:"opportunity"`
	Status       string  `gorm:"column:status;not null;default:'active'" json:"status"`
}

func (Keyword) TableName() string {
	return "seo_keywords"
}

// Audit records one content audit pass for a keyword.
type Audit struct {
	store.LogBase
	KeywordID uuid.UUID `gorm:"type:uuid;column:keyword_id;not null;index" json:"keyword_id"`
	Status    string    `gorm:"column:status;not null" json:"status"`
	Details   string    `gorm:"column:details" json:"details"`
}

func (Audit) TableName() string {
	return "seo_audits"
}

// opportunityScore weights raw volume against ranking difficulty.
// Difficulty 100 zeroes the score; difficulty 0 passes volume through.
func opportunityScore(volume, difficulty int) float64 {
	if volume < 0 {
		volume = 0
	}
	if difficulty < 0 {
		difficulty = 0
	}
	if difficulty > 100 {
		difficulty = 100
	}
	return float64(volume) * (1 - float64(difficulty)/100)
}
