package repository

import (
	"context"
	"time"

	"parley/internal/domain/entity"
)

type ChannelRepository interface {
	Create(ctx context.Context, channel *entity.Channel) error
	GetByID(ctx context.Context, id string) (*entity.Channel, error)
	// FindDirectByMembers returns the direct channel containing exactly the
	// two given members, if one exists.
	FindDirectByMembers(ctx context.Context, userA, userB string) (*entity.Channel, error)
	FindByInviteToken(ctx context.Context, token string) (*entity.Channel, error)
	// ListByMember returns every channel the user belongs to, most recently
	// updated first, soft-deleted ones included. Callers decide visibility.
	ListByMember(ctx context.Context, userID string) ([]*entity.Channel, error)
	SetName(ctx context.Context, id, name string) error
	SetMembers(ctx context.Context, id string, members []string) error
	SetInviteToken(ctx context.Context, id, token string) error
	SetSummary(ctx context.Context, id string, summary entity.ChannelSummary) error
	// IncrementUnread atomically bumps the unread counter of each given user.
	IncrementUnread(ctx context.Context, id string, userIDs []string) error
	SetUnread(ctx context.Context, id, userID string, count int) error
	MarkDeleted(ctx context.Context, id, userID string, at time.Time) error
	// ClearDeleted removes the user's soft-delete marker, reactivating the
	// channel for them.
	ClearDeleted(ctx context.Context, id, userID string) error
	Delete(ctx context.Context, id string) error
}
