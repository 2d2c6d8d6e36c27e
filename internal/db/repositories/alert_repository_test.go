package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sentinel/edr/internal/domain"
)

func newMockDB(t *testing.T) (*AlertRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewAlertRepository(db), mock
}

func TestAlertRepositoryCreate(t *testing.T) {
	repo, mock := newMockDB(t)
	a := &domain.Alert{
		ID:       "a1",
		Type:     domain.AlertTypeGuard,
		Severity: domain.SeverityCritical,
		Zone:     "llm",
		Reason:   "prompt injection match",
		CreatedAt: time.Now(),
	}
	mock.ExpectExec("INSERT INTO alerts").WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAlertRepositoryEmitWrapsCreate(t *testing.T) {
	repo, mock := newMockDB(t)
	mock.ExpectExec("INSERT INTO alerts").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Emit(context.Background(), domain.Alert{ID: "a2", Zone: "rag", CreatedAt: time.Now()})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
}

func TestAlertRepositoryGetByIDNotFound(t *testing.T) {
	repo, mock := newMockDB(t)
	mock.ExpectQuery("SELECT (.+) FROM alerts").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(nil))

	_, err := repo.GetByID(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected not-found error")
	}
}

func TestAlertRepositoryCount(t *testing.T) {
	repo, mock := newMockDB(t)
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(7)))

	n, err := repo.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 7 {
		t.Fatalf("expected 7, got %d", n)
	}
}
