package repo

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type row struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := conn.AutoMigrate(&row{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func TestBaseDB_BindsContext(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	ctx := context.WithValue(context.Background(), struct{}{}, "value")
	withCtx := base.DB(ctx)
	if withCtx.Statement == nil || withCtx.Statement.Context != ctx {
		t.Fatalf("expected context to flow through")
	}
	if base.DB(nil) != db {
		t.Fatalf("expected nil context to return raw connection")
	}
}

func TestBaseWithTx(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	if base.WithTx(nil).db != db {
		t.Fatal("nil tx should keep the original connection")
	}
	tx := db.Begin()
	defer tx.Rollback()
	if base.WithTx(tx).db != tx {
		t.Fatal("expected base bound to tx")
	}
}

func TestFirstReturnsNilOnMissingRow(t *testing.T) {
	db := newTestDB(t)
	got, err := First[row](db.Where("id = ?", 42))
	if err != nil || got != nil {
		t.Fatalf("expected (nil, nil), got %+v, %v", got, err)
	}

	if err := db.Create(&row{ID: 1, Name: "a"}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	got, err = First[row](db.Where("id = ?", 1))
	if err != nil || got == nil || got.Name != "a" {
		t.Fatalf("expected row, got %+v, %v", got, err)
	}
}
