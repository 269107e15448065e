package usecase

import (
	"context"
	"time"

	"parley/internal/domain/entity"
	"parley/internal/domain/repository"
	ws "parley/internal/infrastructure/websocket"
	"parley/pkg/errors"
	"parley/pkg/logger"
)

// editWindow is how long after sending a message may still be edited,
// measured against the stored creation time on the server clock.
const editWindow = 5 * time.Minute

type MessageUseCase struct {
	messageRepo repository.MessageRepository
	channelRepo repository.ChannelRepository
	receiptRepo repository.ReceiptRepository
	userRepo    repository.UserRepository
	bus         Bus
	notifier    Notifier
	now         func() time.Time
}

func NewMessageUseCase(
	messageRepo repository.MessageRepository,
	channelRepo repository.ChannelRepository,
	receiptRepo repository.ReceiptRepository,
	userRepo repository.UserRepository,
	bus Bus,
	notifier Notifier,
) *MessageUseCase {
	return &MessageUseCase{
		messageRepo: messageRepo,
		channelRepo: channelRepo,
		receiptRepo: receiptRepo,
		userRepo:    userRepo,
		bus:         bus,
		notifier:    notifier,
		now:         time.Now,
	}
}

type SendMessageInput struct {
	ChannelID   string
	Text        string
	Attachments []entity.Attachment
	ReplyToID   string
}

// Send posts a message: visibility is frozen to the membership at this
// instant, the channel summary moves to this message, and every other
// member's unread counter goes up by one.
func (uc *MessageUseCase) Send(ctx context.Context, senderID string, input SendMessageInput) (*entity.Message, error) {
	channel, err := uc.channelRepo.GetByID(ctx, input.ChannelID)
	if err != nil {
		return nil, err
	}
	if !channel.HasMember(senderID) {
		return nil, errors.Forbidden("You are not a member of this channel", nil)
	}
	if input.Text == "" && len(input.Attachments) == 0 {
		return nil, errors.BadRequest("A message needs text or at least one attachment", nil)
	}

	var replyRef *entity.ReplyRef
	if input.ReplyToID != "" {
		original, err := uc.messageRepo.GetByID(ctx, input.ReplyToID)
		if err != nil {
			return nil, err
		}
		if original.ChannelID != input.ChannelID {
			return nil, errors.BadRequest("Reply must reference a message in the same channel", nil)
		}
		// Snapshot, not a reference: later edits to the original do not
		// change what the reply shows.
		replyRef = &entity.ReplyRef{
			MessageID:  original.ID,
			SenderID:   original.Author.ID,
			SenderName: original.Author.Name,
			Content:    original.SummaryText(),
		}
	}

	return uc.post(ctx, channel, senderID, input.Text, input.Attachments, replyRef, "")
}

// Edit rewrites a message's text. Only the sender may edit, and only
// within the edit window of the stored creation time.
func (uc *MessageUseCase) Edit(ctx context.Context, requesterID, messageID, newText string) (*entity.Message, error) {
	msg, err := uc.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Author.Kind != entity.AuthorUser || msg.Author.ID != requesterID {
		return nil, errors.Forbidden("Only the sender can edit a message", nil)
	}
	if uc.now().Sub(msg.CreatedAt) > editWindow {
		return nil, errors.Forbidden("Edit window expired", nil)
	}
	if newText == "" {
		return nil, errors.BadRequest("Message text is required", nil)
	}

	if err := uc.messageRepo.SetText(ctx, messageID, newText); err != nil {
		return nil, err
	}
	msg.Text = newText
	msg.Edited = true
	msg.UpdatedAt = uc.now()

	if err := uc.refreshSummaryIfLatest(ctx, msg); err != nil {
		return nil, err
	}

	uc.bus.PublishToChannel(msg.ChannelID, ws.EventMessageUpdated, msg)
	return msg, nil
}

// Delete hard-removes a message and its receipts, then recomputes the
// channel summary from whatever message is now latest.
func (uc *MessageUseCase) Delete(ctx context.Context, requesterID, messageID string) error {
	msg, err := uc.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.Author.Kind != entity.AuthorUser || msg.Author.ID != requesterID {
		return errors.Forbidden("Only the sender can delete a message", nil)
	}

	if err := uc.messageRepo.Delete(ctx, messageID); err != nil {
		return err
	}
	if err := uc.receiptRepo.DeleteByMessage(ctx, messageID); err != nil {
		return err
	}

	latest, err := uc.messageRepo.LatestIn(ctx, msg.ChannelID)
	if err != nil {
		return err
	}
	summary := entity.ChannelSummary{}
	if latest != nil {
		summary = entity.ChannelSummary{
			LastMessage:         latest.SummaryText(),
			LastMessageTime:     latest.CreatedAt,
			LastMessageSenderID: latest.Author.ID,
		}
	}
	if err := uc.channelRepo.SetSummary(ctx, msg.ChannelID, summary); err != nil {
		return err
	}

	uc.bus.PublishToChannel(msg.ChannelID, ws.EventMessageDeleted, map[string]string{
		"id":        messageID,
		"channelId": msg.ChannelID,
	})
	return nil
}

// Forward re-posts an existing message into another channel the requester
// belongs to, carrying a link back to the origin.
func (uc *MessageUseCase) Forward(ctx context.Context, requesterID, messageID, targetChannelID string) (*entity.Message, error) {
	source, err := uc.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}

	sourceChannel, err := uc.channelRepo.GetByID(ctx, source.ChannelID)
	if err != nil {
		return nil, err
	}
	if !sourceChannel.HasMember(requesterID) || sourceChannel.DeletedFor(requesterID) {
		return nil, errors.Forbidden("You are not a member of the source channel", nil)
	}

	target, err := uc.channelRepo.GetByID(ctx, targetChannelID)
	if err != nil {
		return nil, err
	}
	if !target.HasMember(requesterID) || target.DeletedFor(requesterID) {
		return nil, errors.Forbidden("You are not a member of the target channel", nil)
	}

	return uc.post(ctx, target, requesterID, source.Text, source.Attachments, nil, source.ID)
}

// Fetch returns the channel's messages visible to the requester, oldest
// first, each annotated with the requester's seen state, and zeroes their
// unread counter for the channel.
func (uc *MessageUseCase) Fetch(ctx context.Context, requesterID, channelID string) ([]*MessageView, error) {
	channel, err := uc.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if !channel.HasMember(requesterID) {
		return nil, errors.Forbidden("You are not a member of this channel", nil)
	}

	messages, err := uc.messageRepo.ListVisible(ctx, channelID, requesterID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
	}
	seen, err := uc.receiptRepo.SeenMessageIDs(ctx, requesterID, ids)
	if err != nil {
		return nil, err
	}

	if err := uc.channelRepo.SetUnread(ctx, channelID, requesterID, 0); err != nil {
		return nil, err
	}
	// The requester's other devices learn the unread badge cleared.
	uc.publishChannelView(ctx, channelID, requesterID)

	views := make([]*MessageView, 0, len(messages))
	for _, m := range messages {
		own := m.Author.Kind == entity.AuthorUser && m.Author.ID == requesterID
		views = append(views, &MessageView{Message: m, Seen: own || seen[m.ID]})
	}
	return views, nil
}

// Typing relays a typing indicator to everyone else in the channel room.
// Nothing is persisted.
func (uc *MessageUseCase) Typing(ctx context.Context, channelID, userID string, isTyping bool) {
	uc.bus.PublishToChannel(channelID, ws.EventTyping, map[string]interface{}{
		"channelId": channelID,
		"userId":    userID,
		"isTyping":  isTyping,
	}, userID)
}

func (uc *MessageUseCase) post(ctx context.Context, channel *entity.Channel, senderID, text string, attachments []entity.Attachment, replyRef *entity.ReplyRef, forwardedFrom string) (*entity.Message, error) {
	sender, err := uc.userRepo.GetByID(ctx, senderID)
	if err != nil {
		return nil, err
	}

	msg := &entity.Message{
		ChannelID:     channel.ID,
		Author:        entity.UserAuthor(sender),
		Text:          text,
		Attachments:   attachments,
		ReplyTo:       replyRef,
		ForwardedFrom: forwardedFrom,
		Status:        entity.MessageStatusSent,
		VisibleTo:     append([]string(nil), channel.Members...),
	}
	if err := uc.messageRepo.Create(ctx, msg); err != nil {
		return nil, err
	}

	summary := msg.SummaryText()
	if err := uc.channelRepo.SetSummary(ctx, channel.ID, entity.ChannelSummary{
		LastMessage:         summary,
		LastMessageTime:     msg.CreatedAt,
		LastMessageSenderID: senderID,
	}); err != nil {
		return nil, err
	}

	recipients := without(channel.Members, senderID)
	if err := uc.channelRepo.IncrementUnread(ctx, channel.ID, recipients); err != nil {
		return nil, err
	}
	if err := uc.channelRepo.SetUnread(ctx, channel.ID, senderID, 0); err != nil {
		return nil, err
	}

	// Sending into a channel the sender had soft-deleted brings it back
	// for them.
	if channel.DeletedFor(senderID) {
		if err := uc.channelRepo.ClearDeleted(ctx, channel.ID, senderID); err != nil {
			return nil, err
		}
	}

	uc.bus.PublishToChannel(channel.ID, ws.EventReceiveMessage, msg)
	uc.fanOutChannelUpdate(ctx, channel.ID)
	uc.notifyRecipients(ctx, sender, channel, recipients, summary, msg.ID)
	return msg, nil
}

// fanOutChannelUpdate pushes each member their own view of the channel,
// unread count included. Best effort: a failed reload only costs the
// update event, never the committed message.
func (uc *MessageUseCase) fanOutChannelUpdate(ctx context.Context, channelID string) {
	channel, err := uc.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		logger.Error("Failed to reload channel %s for fan-out: %v", channelID, err)
		return
	}
	users, err := uc.userRepo.GetByIDs(ctx, channel.Members)
	if err != nil {
		logger.Error("Failed to load members of channel %s for fan-out: %v", channelID, err)
		return
	}
	members := userMap(users)
	for _, id := range channel.Members {
		uc.bus.PublishToUser(id, ws.EventChannelUpdated, formatChannel(channel, id, members))
	}
}

// publishChannelView pushes one member their own refreshed view of the
// channel. Best effort, like fanOutChannelUpdate.
func (uc *MessageUseCase) publishChannelView(ctx context.Context, channelID, userID string) {
	channel, err := uc.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		logger.Error("Failed to reload channel %s for fan-out: %v", channelID, err)
		return
	}
	users, err := uc.userRepo.GetByIDs(ctx, channel.Members)
	if err != nil {
		logger.Error("Failed to load members of channel %s for fan-out: %v", channelID, err)
		return
	}
	uc.bus.PublishToUser(userID, ws.EventChannelUpdated, formatChannel(channel, userID, userMap(users)))
}

func (uc *MessageUseCase) notifyRecipients(ctx context.Context, sender *entity.User, channel *entity.Channel, recipients []string, body, messageID string) {
	if uc.notifier == nil {
		return
	}
	users, err := uc.userRepo.GetByIDs(ctx, recipients)
	if err != nil {
		logger.Error("Failed to load recipients for notification: %v", err)
		return
	}

	var tokens []string
	for _, u := range users {
		tokens = append(tokens, u.FCMTokens...)
	}
	title := sender.Name
	if channel.Type == entity.ChannelTypeGroup {
		title = channel.Name
	}
	uc.notifier.Notify(ctx, tokens, title, body, map[string]string{
		"channelId": channel.ID,
		"messageId": messageID,
	})
}

func (uc *MessageUseCase) refreshSummaryIfLatest(ctx context.Context, msg *entity.Message) error {
	latest, err := uc.messageRepo.LatestIn(ctx, msg.ChannelID)
	if err != nil {
		return err
	}
	if latest == nil || latest.ID != msg.ID {
		return nil
	}
	return uc.channelRepo.SetSummary(ctx, msg.ChannelID, entity.ChannelSummary{
		LastMessage:         msg.SummaryText(),
		LastMessageTime:     msg.CreatedAt,
		LastMessageSenderID: msg.Author.ID,
	})
}
