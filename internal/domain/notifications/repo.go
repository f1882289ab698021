package notifications

import (
	"context"

	"github.com/google/uuid"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*Notification, error)
	Update(ctx context.Context, n *Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]*Notification, int, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

type PreferenceRepository interface {
	Get(ctx context.Context, userID uuid.UUID) (*Preference, error)
	Upsert(ctx context.Context, p *Preference) error
}
