package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/marketflow-backend/internal/logger"
)

// ErrNotFound is returned when a record does not exist in the caller's
// workspace. Records belonging to other workspaces are indistinguishable
// from missing ones.
var ErrNotFound = errors.New("record not found")

// Record is the shape every module resource model satisfies so it can be
// served by a workspace-scoped Store.
type Record interface {
	GetID() uuid.UUID
	SetID(id uuid.UUID)
	GetWorkspaceID() uuid.UUID
	SetWorkspaceID(id uuid.UUID)
}

// Cascade names a child log table deleted together with its parent.
type Cascade struct {
	Model    any
	FKColumn string
}

// Store is the generic CRUD surface over one module resource table.
// Every query is scoped by workspace_id; the id never comes from the
// request body.
type Store[T any, PT interface {
	*T
	Record
}] struct {
	db       *gorm.DB
	log      *logger.Logger
	orderBy  string
	cascades []Cascade
}

type Option func(orderBy *string, cascades *[]Cascade)

// WithOrder overrides the default reverse-chronological list order.
func WithOrder(orderBy string) Option {
	return func(o *string, _ *[]Cascade) { *o = orderBy }
}

// WithCascade registers a child table whose rows are deleted in the same
// transaction as their parent record.
func WithCascade(model any, fkColumn string) Option {
	return func(_ *string, cs *[]Cascade) {
		*cs = append(*cs, Cascade{Model: model, FKColumn: fkColumn})
	}
}

func New[T any, PT interface {
	*T
	Record
}](db *gorm.DB, baseLog *logger.Logger, name string, opts ...Option) *Store[T, PT] {
	orderBy := "created_at DESC"
	var cascades []Cascade
	for _, opt := range opts {
		opt(&orderBy, &cascades)
	}
	return &Store[T, PT]{
		db:       db,
		log:      baseLog.With("store", name),
		orderBy:  orderBy,
		cascades: cascades,
	}
}

func (s *Store[T, PT]) List(ctx context.Context, workspaceID uuid.UUID, filters map[string]any) ([]PT, error) {
	q := s.db.WithContext(ctx).Where("workspace_id = ?", workspaceID)
	for col, val := range filters {
		q = q.Where(fmt.Sprintf("%s = ?", col), val)
	}
	records := []PT{}
	if err := q.Order(s.orderBy).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store[T, PT]) Create(ctx context.Context, workspaceID uuid.UUID, rec PT) (PT, error) {
	if rec.GetID() == uuid.Nil {
		rec.SetID(uuid.New())
	}
	rec.SetWorkspaceID(workspaceID)
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store[T, PT]) Get(ctx context.Context, workspaceID, id uuid.UUID) (PT, error) {
	var rec T
	err := s.db.WithContext(ctx).
		Where("workspace_id = ? AND id = ?", workspaceID, id).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return PT(&rec), nil
}

// Update applies a field-by-field overwrite: keys absent from fields keep
// their prior value. There is no concurrency token; overlapping updates
// are last-write-wins.
func (s *Store[T, PT]) Update(ctx context.Context, workspaceID, id uuid.UUID, fields map[string]any) (PT, error) {
	if len(fields) == 0 {
		return s.Get(ctx, workspaceID, id)
	}
	var model T
	res := s.db.WithContext(ctx).
		Model(PT(&model)).
		Where("workspace_id = ? AND id = ?", workspaceID, id).
		Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, workspaceID, id)
}

// Delete removes the record and its registered cascade children in one
// transaction, so a crash mid-delete never strands orphaned log rows.
func (s *Store[T, PT]) Delete(ctx context.Context, workspaceID, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec T
		err := tx.Where("workspace_id = ? AND id = ?", workspaceID, id).First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		for _, c := range s.cascades {
			if err := tx.Where(fmt.Sprintf("%s = ?", c.FKColumn), id).Delete(c.Model).Error; err != nil {
				return fmt.Errorf("cascade delete %s: %w", c.FKColumn, err)
			}
		}
		if err := tx.Delete(PT(&rec)).Error; err != nil {
			return err
		}
		return nil
	})
}
