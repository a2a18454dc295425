package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/marketflow-backend/internal/logger"
)

// Log is the shape of an append-only per-resource history row.
type Log interface {
	GetID() uuid.UUID
	SetID(id uuid.UUID)
}

// LogStore serves one module's log table. Logs are append-only and read
// newest-first; workspace scoping is enforced by resolving the parent
// record through its Store before listing.
type LogStore[T any, PT interface {
	*T
	Log
}] struct {
	db       *gorm.DB
	log      *logger.Logger
	fkColumn string
}

func NewLogStore[T any, PT interface {
	*T
	Log
}](db *gorm.DB, baseLog *logger.Logger, name, fkColumn string) *LogStore[T, PT] {
	return &LogStore[T, PT]{
		db:       db,
		log:      baseLog.With("store", name),
		fkColumn: fkColumn,
	}
}

func (s *LogStore[T, PT]) Append(ctx context.Context, rec PT) (PT, error) {
	if rec.GetID() == uuid.Nil {
		rec.SetID(uuid.New())
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *LogStore[T, PT]) ListForParent(ctx context.Context, parentID uuid.UUID, limit int) ([]PT, error) {
	if limit <= 0 {
		limit = 20
	}
	records := []PT{}
	if err := s.db.WithContext(ctx).
		Where(fmt.Sprintf("%s = ?", s.fkColumn), parentID).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
