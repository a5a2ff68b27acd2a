package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func newMock(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGRepoCreateMapsUniqueViolation(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectExec("INSERT INTO users").
		WithArgs("u1", "ada@example.com", "Ada", "hash", nil, "{}", now, now).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), User{
		ID: "u1", Email: "Ada@Example.com", Name: "Ada", PasswordHash: "hash", CreatedAt: now, UpdatedAt: now,
	})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRepoGetByEmail(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "email", "name", "password_hash", "picture_url", "profile", "created_at", "updated_at"}).
		AddRow("u1", "ada@example.com", "Ada", nil, "https://pic", []byte(`{"location":"London","skills":["go"]}`), now, now)
	mock.ExpectQuery("SELECT (.+) FROM users WHERE email = \\$1").
		WithArgs("ada@example.com").
		WillReturnRows(rows)

	user, err := repo.GetByEmail(context.Background(), " ADA@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if user.HasPassword() || user.PictureURL != "https://pic" || user.Profile.Location != "London" || len(user.Profile.Skills) != 1 {
		t.Fatalf("unexpected user %+v", user)
	}
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery("SELECT (.+) FROM users WHERE id = \\$1").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoUpdateNoRows(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec("UPDATE users SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), User{ID: "missing", Email: "x@y.co", Name: "X"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
