package usecase

import (
	"context"
	"time"

	"parley/internal/domain/entity"
	"parley/internal/domain/repository"
	ws "parley/internal/infrastructure/websocket"
	"parley/pkg/errors"
)

type ReceiptUseCase struct {
	receiptRepo repository.ReceiptRepository
	messageRepo repository.MessageRepository
	channelRepo repository.ChannelRepository
	userRepo    repository.UserRepository
	bus         Bus
}

func NewReceiptUseCase(
	receiptRepo repository.ReceiptRepository,
	messageRepo repository.MessageRepository,
	channelRepo repository.ChannelRepository,
	userRepo repository.UserRepository,
	bus Bus,
) *ReceiptUseCase {
	return &ReceiptUseCase{
		receiptRepo: receiptRepo,
		messageRepo: messageRepo,
		channelRepo: channelRepo,
		userRepo:    userRepo,
		bus:         bus,
	}
}

// MarkSeen records that the user has seen the message, promotes the
// message to seen once every recipient has a receipt, and recomputes the
// user's unread count from source. Idempotent: marking twice lands on the
// same state.
func (uc *ReceiptUseCase) MarkSeen(ctx context.Context, userID, messageID string) error {
	msg, err := uc.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	channel, err := uc.channelRepo.GetByID(ctx, msg.ChannelID)
	if err != nil {
		return err
	}
	if !channel.HasMember(userID) {
		return errors.Forbidden("You are not a member of this channel", nil)
	}

	// Seeing your own message carries no information.
	if msg.Author.Kind == entity.AuthorUser && msg.Author.ID == userID {
		return nil
	}

	if err := uc.receiptRepo.Upsert(ctx, &entity.ReadReceipt{
		MessageID: messageID,
		UserID:    userID,
		SeenAt:    time.Now(),
	}); err != nil {
		return err
	}

	status, err := uc.promoteIfFullySeen(ctx, msg, channel)
	if err != nil {
		return err
	}

	if err := uc.recomputeUnread(ctx, channel.ID, userID); err != nil {
		return err
	}

	uc.bus.PublishToChannel(channel.ID, ws.EventMessageSeen, map[string]string{
		"messageId": messageID,
		"channelId": channel.ID,
		"userId":    userID,
		"status":    status,
	})
	uc.fanOutChannelUpdate(ctx, channel.ID)
	return nil
}

// promoteIfFullySeen moves the message to seen once every recipient
// (members minus the sender) has a receipt. Promotion is monotonic: a
// message never returns to sent.
func (uc *ReceiptUseCase) promoteIfFullySeen(ctx context.Context, msg *entity.Message, channel *entity.Channel) (string, error) {
	if msg.Status == entity.MessageStatusSeen {
		return entity.MessageStatusSeen, nil
	}

	receipts, err := uc.receiptRepo.ListByMessage(ctx, msg.ID)
	if err != nil {
		return "", err
	}
	seen := make(map[string]bool, len(receipts))
	for _, r := range receipts {
		seen[r.UserID] = true
	}

	for _, memberID := range channel.Members {
		if msg.Author.Kind == entity.AuthorUser && msg.Author.ID == memberID {
			continue
		}
		if !seen[memberID] {
			return entity.MessageStatusSent, nil
		}
	}

	if err := uc.messageRepo.SetStatus(ctx, msg.ID, entity.MessageStatusSeen); err != nil {
		return "", err
	}
	return entity.MessageStatusSeen, nil
}

// recomputeUnread rebuilds the user's unread count from source rather than
// decrementing a possibly stale value, so racing calls converge on the
// same answer.
func (uc *ReceiptUseCase) recomputeUnread(ctx context.Context, channelID, userID string) error {
	messages, err := uc.messageRepo.ListAuthoredByOthers(ctx, channelID, userID)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
	}
	seen, err := uc.receiptRepo.SeenMessageIDs(ctx, userID, ids)
	if err != nil {
		return err
	}

	unread := 0
	for _, id := range ids {
		if !seen[id] {
			unread++
		}
	}
	return uc.channelRepo.SetUnread(ctx, channelID, userID, unread)
}

func (uc *ReceiptUseCase) fanOutChannelUpdate(ctx context.Context, channelID string) {
	channel, err := uc.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		return
	}
	users, err := uc.userRepo.GetByIDs(ctx, channel.Members)
	if err != nil {
		return
	}
	members := userMap(users)
	for _, id := range channel.Members {
		uc.bus.PublishToUser(id, ws.EventChannelUpdated, formatChannel(channel, id, members))
	}
}
