package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/marketflow-backend/internal/logger"
)

type campaign struct {
	Base
	Name   string `gorm:"column:name;not null"`
	Status string `gorm:"column:status;not null;default:'draft'"`
}

func (campaign) TableName() string { return "test_campaigns" }

type campaignLog struct {
	LogBase
	CampaignID uuid.UUID `gorm:"type:uuid;column:campaign_id;not null;index"`
	Status     string    `gorm:"column:status;not null"`
}

func (campaignLog) TableName() string { return "test_campaign_logs" }

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "store_test.db") + "?_busy_timeout=5000&_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&campaign{}, &campaignLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newCampaignStore(db *gorm.DB, opts ...Option) *Store[campaign, *campaign] {
	return New[campaign, *campaign](db, logger.NewNop(), "campaigns", opts...)
}

func TestStore_WorkspaceIsolation(t *testing.T) {
	db := openTestDB(t)
	s := newCampaignStore(db)
	ctx := context.Background()
	wsA := uuid.New()
	wsB := uuid.New()

	created, err := s.Create(ctx, wsA, &campaign{Name: "Spring launch", Status: "draft"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := s.Create(ctx, wsB, &campaign{Name: "Other tenant", Status: "draft"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	listA, err := s.List(ctx, wsA, nil)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(listA) != 1 || listA[0].Name != "Spring launch" {
		t.Fatalf("expected only workspace A's record, got %d", len(listA))
	}

	// A foreign workspace cannot read, update or delete the record.
	if _, err := s.Get(ctx, wsB, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound across workspaces, got %v", err)
	}
	if _, err := s.Update(ctx, wsB, created.ID, map[string]any{"status": "hijacked"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound across workspaces, got %v", err)
	}
	if err := s.Delete(ctx, wsB, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound across workspaces, got %v", err)
	}
	got, err := s.Get(ctx, wsA, created.ID)
	if err != nil || got.Status != "draft" {
		t.Fatalf("record mutated across workspaces: %v %v", got, err)
	}
}

func TestStore_CreateIgnoresCallerIdentity(t *testing.T) {
	db := openTestDB(t)
	s := newCampaignStore(db)
	ctx := context.Background()
	ws := uuid.New()

	rec := &campaign{Name: "n"}
	rec.WorkspaceID = uuid.New() // must be overwritten by the resolved tenant
	created, err := s.Create(ctx, ws, rec)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID == uuid.Nil {
		t.Fatalf("expected generated id")
	}
	if created.WorkspaceID != ws {
		t.Fatalf("workspace id not forced to resolved tenant: %s", created.WorkspaceID)
	}
}

func TestStore_UpdateKeepsAbsentFields(t *testing.T) {
	db := openTestDB(t)
	s := newCampaignStore(db)
	ctx := context.Background()
	ws := uuid.New()

	created, err := s.Create(ctx, ws, &campaign{Name: "original", Status: "draft"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	updated, err := s.Update(ctx, ws, created.ID, map[string]any{"status": "active"})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Status != "active" {
		t.Fatalf("expected status updated, got %q", updated.Status)
	}
	if updated.Name != "original" {
		t.Fatalf("absent field overwritten: %q", updated.Name)
	}

	// Empty update is a no-op read.
	same, err := s.Update(ctx, ws, created.ID, map[string]any{})
	if err != nil || same.Status != "active" {
		t.Fatalf("empty update changed record: %v %v", same, err)
	}

	if _, err := s.Update(ctx, ws, uuid.New(), map[string]any{"status": "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing id, got %v", err)
	}
}

func TestStore_DeleteCascadesLogs(t *testing.T) {
	db := openTestDB(t)
	s := newCampaignStore(db, WithCascade(&campaignLog{}, "campaign_id"))
	logs := NewLogStore[campaignLog, *campaignLog](db, logger.NewNop(), "campaign_logs", "campaign_id")
	ctx := context.Background()
	ws := uuid.New()

	parent, err := s.Create(ctx, ws, &campaign{Name: "n", Status: "draft"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	other, err := s.Create(ctx, ws, &campaign{Name: "other", Status: "draft"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	for _, cid := range []uuid.UUID{parent.ID, parent.ID, other.ID} {
		if _, err := logs.Append(ctx, &campaignLog{CampaignID: cid, Status: "sent"}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	if err := s.Delete(ctx, ws, parent.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := s.Get(ctx, ws, parent.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected parent gone, got %v", err)
	}
	orphans, err := logs.ListForParent(ctx, parent.ID, 0)
	if err != nil {
		t.Fatalf("ListForParent failed: %v", err)
	}
	if len(orphans) != 0 {
		t.Fatalf("expected cascade to remove logs, found %d", len(orphans))
	}
	kept, err := logs.ListForParent(ctx, other.ID, 0)
	if err != nil || len(kept) != 1 {
		t.Fatalf("sibling logs affected by cascade: %d %v", len(kept), err)
	}
}

func TestStore_ListOrderAndFilters(t *testing.T) {
	db := openTestDB(t)
	s := newCampaignStore(db)
	ctx := context.Background()
	ws := uuid.New()

	older := &campaign{Name: "older", Status: "draft"}
	older.CreatedAt = time.Now().Add(-time.Hour)
	if _, err := s.Create(ctx, ws, older); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	newer := &campaign{Name: "newer", Status: "active"}
	newer.CreatedAt = time.Now()
	if _, err := s.Create(ctx, ws, newer); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	all, err := s.List(ctx, ws, nil)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 || all[0].Name != "newer" {
		t.Fatalf("expected newest-first order, got %+v", all)
	}

	active, err := s.List(ctx, ws, map[string]any{"status": "active"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(active) != 1 || active[0].Name != "newer" {
		t.Fatalf("filter not applied, got %d", len(active))
	}
}
