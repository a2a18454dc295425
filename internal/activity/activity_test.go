package activity

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/marketflow-backend/internal/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "activity_test.db") + "?_busy_timeout=5000"
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
	if err := InitSchema(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestRecorder_RecentIsWorkspaceScopedNewestFirst(t *testing.T) {
	db := openTestDB(t)
	r := NewRecorder(db, logger.NewNop())
	ctx := context.Background()
	wsA := uuid.New()
	wsB := uuid.New()

	r.Record(ctx, Entry{Module: "seo", Action: "create", Description: "Added keyword: growth", WorkspaceID: wsA})
	r.Record(ctx, Entry{Module: "team", Action: "create", Description: "Invited member: Sam", WorkspaceID: wsA})
	r.Record(ctx, Entry{Module: "seo", Action: "create", Description: "Other tenant", WorkspaceID: wsB})

	entries, err := r.Recent(ctx, wsA, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries for workspace A, got %d", len(entries))
	}
	for _, e := range entries {
		if e.WorkspaceID != wsA {
			t.Fatalf("foreign workspace entry leaked: %+v", e)
		}
	}

	capped, err := r.Recent(ctx, wsA, 1)
	if err != nil || len(capped) != 1 {
		t.Fatalf("limit not applied: %d %v", len(capped), err)
	}
}

func TestRecorder_RecordFailureDoesNotPanic(t *testing.T) {
	db := openTestDB(t)
	r := NewRecorder(db, logger.NewNop())
	ctx := context.Background()

	// Simulate a broken audit table: the write must be swallowed, not
	// surfaced to the caller.
	if err := db.Migrator().DropTable(&Entry{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}
	r.Record(ctx, Entry{Module: "seo", Action: "create", Description: "ignored", WorkspaceID: uuid.New()})
}
