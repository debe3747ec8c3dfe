package port

import (
	"context"
	"time"

	"github.com/swistakmatt/2fa-app/internal/core/domain"
)

// UserRepository exposes persistence behavior for users.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateEmail(ctx context.Context, id, email string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateStatus(ctx context.Context, id string, status domain.UserStatus) error
	RecordLogin(ctx context.Context, id string, at time.Time) error
}
