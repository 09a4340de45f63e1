package repository

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func setupTestDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	return sqlx.NewDb(db, "mysql"), mock, func() { db.Close() }
}

func TestSettingsRepository_GetExisting(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("FROM widget_settings").
		WithArgs("messages").
		WillReturnRows(sqlmock.NewRows([]string{"setting_value"}).AddRow(`[{"id":"a"}]`))

	repo := NewSettingsRepository(db)

	value, found, err := repo.Get(context.Background(), "messages")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !found {
		t.Fatalf("expected key to be found")
	}
	if value != `[{"id":"a"}]` {
		t.Errorf("unexpected value %q", value)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSettingsRepository_GetMissingIsNotAnError(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("FROM widget_settings").
		WithArgs("messages").
		WillReturnError(sql.ErrNoRows)

	repo := NewSettingsRepository(db)

	_, found, err := repo.Get(context.Background(), "messages")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if found {
		t.Fatalf("expected key to be absent")
	}
}

func TestSettingsRepository_SetUpserts(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO widget_settings").
		WithArgs("messages", "[]").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewSettingsRepository(db)

	if err := repo.Set(context.Background(), "messages", "[]"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSettingsRepository_SetWrapsDriverError(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO widget_settings").
		WillReturnError(fmt.Errorf("connection reset"))

	repo := NewSettingsRepository(db)

	err := repo.Set(context.Background(), "messages", "[]")
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestMemoryRepository_SetThenGet(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	if _, found, _ := repo.Get(ctx, "k"); found {
		t.Fatalf("expected empty repository")
	}

	if err := repo.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	value, found, err := repo.Get(ctx, "k")
	if err != nil || !found || value != "v" {
		t.Fatalf("expected (v, true, nil), got (%q, %v, %v)", value, found, err)
	}
}

func TestMemoryRepository_CancelledContext(t *testing.T) {
	repo := NewMemoryRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := repo.Set(ctx, "k", "v"); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}
