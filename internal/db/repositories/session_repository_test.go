package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sentinel/edr/internal/domain"
)

func newMockSessionDB(t *testing.T) (*SessionRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSessionRepository(db), mock
}

func TestSessionRepositoryGetMissingReturnsNoError(t *testing.T) {
	repo, mock := newMockSessionDB(t)
	mock.ExpectQuery("SELECT (.+) FROM sessions").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(nil))

	s, ok, err := repo.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok || s != nil {
		t.Fatal("expected ok=false, s=nil for missing session")
	}
}

func TestSessionRepositoryPutUpserts(t *testing.T) {
	repo, mock := newMockSessionDB(t)
	mock.ExpectExec("INSERT INTO sessions").WillReturnResult(sqlmock.NewResult(1, 1))

	s := &domain.Session{
		ID:             "sess1",
		SourceIP:       "10.0.0.1",
		CreatedAt:      time.Now(),
		LastActivityAt: time.Now(),
		State:          domain.SessionActive,
	}
	if err := repo.Put(context.Background(), s); err != nil {
		t.Fatalf("Put: %v", err)
	}
}

func TestSessionRepositoryDeleteNotFound(t *testing.T) {
	repo, mock := newMockSessionDB(t)
	mock.ExpectExec("DELETE FROM sessions").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected not-found error")
	}
}

func TestSessionRepositorySweepReturnsEvictedCount(t *testing.T) {
	repo, mock := newMockSessionDB(t)
	mock.ExpectExec("DELETE FROM sessions WHERE").WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.Sweep(context.Background(), time.Now().Unix())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 evicted, got %d", n)
	}
}
