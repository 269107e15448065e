package repository

import (
	"context"

	"parley/internal/domain/entity"
)

type ReceiptRepository interface {
	// Upsert records that the user has seen the message. Re-recording an
	// existing receipt is a no-op.
	Upsert(ctx context.Context, receipt *entity.ReadReceipt) error
	ListByMessage(ctx context.Context, messageID string) ([]*entity.ReadReceipt, error)
	// SeenMessageIDs reports which of the given messages the user has seen.
	SeenMessageIDs(ctx context.Context, userID string, messageIDs []string) (map[string]bool, error)
	DeleteByMessage(ctx context.Context, messageID string) error
	DeleteByMessages(ctx context.Context, messageIDs []string) error
}
