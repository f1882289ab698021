package identity

import (
	"context"

	"github.com/google/uuid"
)

// UserRepository persists user accounts inside the tenant schema.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	List(ctx context.Context, role string, limit, offset int) ([]*User, int, error)
}
