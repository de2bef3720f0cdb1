package schema

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/ValentinKolb/dbKV/lib/db"
	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return sqlDB
}

func TestEnsureTable(t *testing.T) {
	ctx := context.Background()
	sqlDB := openTestDB(t)
	m := NewManager(sqlDB, "VARCHAR", "TEXT")

	if m.Exists(ctx, db.TablePwmMeta) {
		t.Fatal("table should not exist before EnsureTable")
	}

	if err := m.EnsureTable(ctx, db.TablePwmMeta); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !m.Exists(ctx, db.TablePwmMeta) {
		t.Fatal("table should exist after EnsureTable")
	}

	// idempotent: a second call must not try to create the table again
	if err := m.EnsureTable(ctx, db.TablePwmMeta); err != nil {
		t.Fatalf("second EnsureTable failed: %v", err)
	}

	var count int
	err := sqlDB.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?`, IndexName(db.TablePwmMeta)).Scan(&count)
	if err != nil {
		t.Fatalf("failed to query index: %v", err)
	}
	if count != 1 {
		t.Errorf("got %d indexes named %s, want 1", count, IndexName(db.TablePwmMeta))
	}
}

func TestEnsureTables(t *testing.T) {
	ctx := context.Background()
	sqlDB := openTestDB(t)
	m := NewManager(sqlDB, "VARCHAR", "TEXT")

	if err := m.EnsureTables(ctx, db.Tables()...); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, table := range db.Tables() {
		if !m.Exists(ctx, table) {
			t.Errorf("table %s should exist", table)
		}
	}
}

func TestEnsureTableSchemaFailure(t *testing.T) {
	ctx := context.Background()
	sqlDB := openTestDB(t)

	// the index name is taken by a table, so index creation fails
	if _, err := sqlDB.Exec("CREATE TABLE " + IndexName(db.TablePwmOTP) + " (x TEXT)"); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	m := NewManager(sqlDB, "VARCHAR", "TEXT")
	err := m.EnsureTable(ctx, db.TablePwmOTP)
	if err == nil {
		t.Fatal("expected schema failure")
	}

	var schemaErr *Error
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected *schema.Error, got %T", err)
	}
	if schemaErr.Table != db.TablePwmOTP {
		t.Errorf("got table %s, want %s", schemaErr.Table, db.TablePwmOTP)
	}
	if !strings.HasPrefix(schemaErr.Statement, "CREATE INDEX") {
		t.Errorf("expected failing statement to be the index, got %q", schemaErr.Statement)
	}
}

func TestCreateTableStatement(t *testing.T) {
	got := CreateTableStatement(db.TablePwmMeta, "VARCHAR", "TEXT")
	want := "CREATE TABLE PWM_META (\n  id VARCHAR(128) NOT NULL PRIMARY KEY,\n  value TEXT\n)"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	if got := CreateIndexStatement(db.TablePwmMeta); got != "CREATE INDEX PWM_META_IDX ON PWM_META (id)" {
		t.Errorf("unexpected index statement %q", got)
	}
}
