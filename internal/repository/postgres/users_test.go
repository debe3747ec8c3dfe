package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/swistakmatt/2fa-app/internal/core/domain"
	"github.com/swistakmatt/2fa-app/internal/repository"
)

func newUserMock(t *testing.T) (pgxmock.PgxPoolIface, *UserRepository) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)

	return mock, NewUserRepository(mock)
}

func TestUserRepository_Create(t *testing.T) {
	mock, repo := newUserMock(t)

	registeredAt := time.Now().UTC()
	user := domain.User{
		ID:           "user-1",
		Email:        "Alice@Example.com",
		PasswordHash: "argon2id$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA",
		PasswordAlgo: "argon2id",
		TOTPSecret:   "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ",
		Status:       domain.UserStatusActive,
		IsActive:     true,
		RegisteredAt: registeredAt,
	}

	mock.ExpectExec(`INSERT INTO twofa\.users`).
		WithArgs(
			user.ID,
			"alice@example.com",
			user.PasswordHash,
			user.PasswordAlgo,
			user.TOTPSecret,
			user.Status,
			user.IsActive,
			user.RegisteredAt,
			(*time.Time)(nil),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_CreateDuplicateEmail(t *testing.T) {
	mock, repo := newUserMock(t)

	mock.ExpectExec(`INSERT INTO twofa\.users`).
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnError(&pgconn.PgError{Code: uniqueViolationCode})

	err := repo.Create(context.Background(), domain.User{ID: "user-1", Email: "alice@example.com"})
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestUserRepository_GetByEmail(t *testing.T) {
	mock, repo := newUserMock(t)

	registeredAt := time.Now().UTC()
	lastLogin := registeredAt.Add(-time.Hour)

	rows := pgxmock.NewRows([]string{
		"id", "email", "password_hash", "password_algo", "totp_secret", "status", "is_active", "registered_at", "last_login",
	}).AddRow(
		"user-1", "alice@example.com", "hash", "argon2id", "SECRET", domain.UserStatusActive, true, registeredAt, &lastLogin,
	)

	mock.ExpectQuery(`SELECT .+ FROM twofa\.users WHERE lower\(email\) = lower\(\$1\)`).
		WithArgs("ALICE@example.com").
		WillReturnRows(rows)

	user, err := repo.GetByEmail(context.Background(), "ALICE@example.com")
	if err != nil {
		t.Fatalf("GetByEmail returned error: %v", err)
	}
	if user.ID != "user-1" || user.Email != "alice@example.com" {
		t.Fatalf("unexpected user %+v", user)
	}
	if user.LastLogin == nil || !user.LastLogin.Equal(lastLogin) {
		t.Fatalf("expected last login %v, got %v", lastLogin, user.LastLogin)
	}
}

func TestUserRepository_GetByEmailMissing(t *testing.T) {
	mock, repo := newUserMock(t)

	mock.ExpectQuery(`SELECT .+ FROM twofa\.users`).
		WithArgs("ghost@example.com").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "email", "password_hash", "password_algo", "totp_secret", "status", "is_active", "registered_at", "last_login",
		}))

	if _, err := repo.GetByEmail(context.Background(), "ghost@example.com"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepository_RecordLogin(t *testing.T) {
	mock, repo := newUserMock(t)

	at := time.Now().UTC()
	mock.ExpectExec(`UPDATE twofa\.users SET last_login`).
		WithArgs(at, "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.RecordLogin(context.Background(), "user-1", at); err != nil {
		t.Fatalf("RecordLogin returned error: %v", err)
	}
}

func TestUserRepository_UpdateEmail(t *testing.T) {
	mock, repo := newUserMock(t)

	mock.ExpectExec(`UPDATE twofa\.users SET email`).
		WithArgs("alice@new.example.com", "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.UpdateEmail(context.Background(), "user-1", "Alice@New.Example.com"); err != nil {
		t.Fatalf("UpdateEmail returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_UpdateEmailDuplicate(t *testing.T) {
	mock, repo := newUserMock(t)

	mock.ExpectExec(`UPDATE twofa\.users SET email`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: uniqueViolationCode})

	err := repo.UpdateEmail(context.Background(), "user-1", "taken@example.com")
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestUserRepository_UpdatePassword(t *testing.T) {
	mock, repo := newUserMock(t)

	mock.ExpectExec(`UPDATE twofa\.users SET password_hash`).
		WithArgs("argon2id$v=19$m=65536,t=3,p=4$bmV3c2FsdA$bmV3aGFzaA", "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.UpdatePassword(context.Background(), "user-1", "argon2id$v=19$m=65536,t=3,p=4$bmV3c2FsdA$bmV3aGFzaA")
	if err != nil {
		t.Fatalf("UpdatePassword returned error: %v", err)
	}
}

func TestUserRepository_UpdatePasswordMissing(t *testing.T) {
	mock, repo := newUserMock(t)

	mock.ExpectExec(`UPDATE twofa\.users SET password_hash`).
		WithArgs("digest", "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.UpdatePassword(context.Background(), "ghost", "digest"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepository_UpdateStatusMissing(t *testing.T) {
	mock, repo := newUserMock(t)

	mock.ExpectExec(`UPDATE twofa\.users SET status`).
		WithArgs(domain.UserStatusDisabled, false, "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.UpdateStatus(context.Background(), "ghost", domain.UserStatusDisabled); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
