package repository

import (
	"context"

	"parley/internal/domain/entity"
)

type MessageRepository interface {
	Create(ctx context.Context, message *entity.Message) error
	GetByID(ctx context.Context, id string) (*entity.Message, error)
	// ListVisible returns the channel's messages still visible to the user,
	// oldest first.
	ListVisible(ctx context.Context, channelID, userID string) ([]*entity.Message, error)
	// LatestIn returns the newest message in the channel regardless of
	// visibility, or nil if the channel has none.
	LatestIn(ctx context.Context, channelID string) (*entity.Message, error)
	// LatestVisibleIn returns the newest message in the channel still visible
	// to the user, or nil if none remain.
	LatestVisibleIn(ctx context.Context, channelID, userID string) (*entity.Message, error)
	// ListAuthoredByOthers returns the channel's messages not authored by
	// the given user and still visible to them. System messages count;
	// they are authored by nobody.
	ListAuthoredByOthers(ctx context.Context, channelID, userID string) ([]*entity.Message, error)
	SetText(ctx context.Context, id, text string) error
	SetStatus(ctx context.Context, id, status string) error
	// RemoveFromVisibility drops the user from visibleTo of every message in
	// the channel. Visibility only ever shrinks.
	RemoveFromVisibility(ctx context.Context, channelID, userID string) error
	Delete(ctx context.Context, id string) error
	// DeleteByChannel removes all of the channel's messages and returns their
	// ids so dependent receipts can be purged.
	DeleteByChannel(ctx context.Context, channelID string) ([]string, error)
}
