package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swistakmatt/2fa-app/internal/core/domain"
	"github.com/swistakmatt/2fa-app/internal/core/port"
	"github.com/swistakmatt/2fa-app/internal/repository"
)

const uniqueViolationCode = "23505"

var userColumns = []string{
	"id",
	"email",
	"password_hash",
	"password_algo",
	"totp_secret",
	"status",
	"is_active",
	"registered_at",
	"last_login",
}

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewUserRepository(exec pgExecutor) *UserRepository {
	repo := &UserRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *UserRepository) WithTx(tx pgx.Tx) *UserRepository {
	if tx == nil {
		return r
	}
	return &UserRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a new user row. A clash on the unique email index surfaces
// as repository.ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	stmt, args, err := r.builder.Insert("twofa.users").
		Columns(userColumns...).
		Values(
			user.ID,
			strings.ToLower(user.Email),
			user.PasswordHash,
			user.PasswordAlgo,
			user.TOTPSecret,
			user.Status,
			user.IsActive,
			user.RegisteredAt,
			user.LastLogin,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From("twofa.users").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	return r.scanUser(r.exec.QueryRow(ctx, stmt, args...))
}

// GetByEmail retrieves a user by email, matched case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From("twofa.users").
		Where(squirrel.Expr("lower(email) = lower(?)", email)).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user by email sql: %w", err)
	}

	return r.scanUser(r.exec.QueryRow(ctx, stmt, args...))
}

// UpdateEmail replaces the account email. A clash on the unique email index
// surfaces as repository.ErrDuplicate.
func (r *UserRepository) UpdateEmail(ctx context.Context, id, email string) error {
	stmt, args, err := r.builder.Update("twofa.users").
		Set("email", strings.ToLower(email)).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update user email sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("update user email: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdatePassword replaces the stored password digest.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	stmt, args, err := r.builder.Update("twofa.users").
		Set("password_hash", passwordHash).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update user password sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update user password: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdateStatus updates the status field for a user.
func (r *UserRepository) UpdateStatus(ctx context.Context, id string, status domain.UserStatus) error {
	stmt, args, err := r.builder.Update("twofa.users").
		Set("status", status).
		Set("is_active", status == domain.UserStatusActive).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update user status sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update user status: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// RecordLogin stamps the last successful login time.
func (r *UserRepository) RecordLogin(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.Update("twofa.users").
		Set("last_login", at).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build record login sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *UserRepository) scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user      domain.User
		lastLogin *time.Time
	)

	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.PasswordAlgo,
		&user.TOTPSecret,
		&user.Status,
		&user.IsActive,
		&user.RegisteredAt,
		&lastLogin,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	user.LastLogin = lastLogin
	return &user, nil
}

var _ port.UserRepository = (*UserRepository)(nil)
