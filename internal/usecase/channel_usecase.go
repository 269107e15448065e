package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"parley/internal/domain/entity"
	"parley/internal/domain/repository"
	ws "parley/internal/infrastructure/websocket"
	"parley/pkg/errors"
	"parley/pkg/logger"
	"parley/pkg/utils"
)

type ChannelUseCase struct {
	channelRepo repository.ChannelRepository
	messageRepo repository.MessageRepository
	receiptRepo repository.ReceiptRepository
	userRepo    repository.UserRepository
	bus         Bus
	publicURL   string
}

func NewChannelUseCase(
	channelRepo repository.ChannelRepository,
	messageRepo repository.MessageRepository,
	receiptRepo repository.ReceiptRepository,
	userRepo repository.UserRepository,
	bus Bus,
	publicURL string,
) *ChannelUseCase {
	return &ChannelUseCase{
		channelRepo: channelRepo,
		messageRepo: messageRepo,
		receiptRepo: receiptRepo,
		userRepo:    userRepo,
		bus:         bus,
		publicURL:   publicURL,
	}
}

type CreateChannelInput struct {
	Type      string
	Name      string
	MemberIDs []string
}

type UpdateChannelInput struct {
	Name            *string
	AddMemberIDs    []string
	RemoveMemberIDs []string
}

// CreateChannel creates a group channel, or creates-or-gets a direct one.
// A direct channel is unique per member pair: asking again returns the
// existing channel, and asking after having soft-deleted it reactivates it
// with the requester's message history gone for good.
func (uc *ChannelUseCase) CreateChannel(ctx context.Context, creatorID string, input CreateChannelInput) (*ChannelView, error) {
	memberIDs := uniqueWith(creatorID, input.MemberIDs)

	users, err := uc.userRepo.GetByIDs(ctx, memberIDs)
	if err != nil {
		return nil, err
	}
	if len(users) != len(memberIDs) {
		return nil, errors.BadRequest("One or more member ids do not exist", nil)
	}
	members := userMap(users)

	switch input.Type {
	case entity.ChannelTypeDirect:
		if len(memberIDs) != 2 {
			return nil, errors.BadRequest("A direct channel requires exactly two members", nil)
		}
		return uc.createOrGetDirect(ctx, creatorID, memberIDs, members)

	case entity.ChannelTypeGroup:
		name := strings.TrimSpace(input.Name)
		if name == "" {
			return nil, errors.BadRequest("A group channel requires a name", nil)
		}
		if len(memberIDs) < 2 {
			return nil, errors.BadRequest("A group channel requires at least two members", nil)
		}
		return uc.createGroup(ctx, creatorID, name, memberIDs, members)

	default:
		return nil, errors.BadRequest("Channel type must be direct or group", nil)
	}
}

func (uc *ChannelUseCase) createOrGetDirect(ctx context.Context, creatorID string, memberIDs []string, members map[string]*entity.User) (*ChannelView, error) {
	otherID := memberIDs[0]
	if otherID == creatorID {
		otherID = memberIDs[1]
	}

	existing, err := uc.channelRepo.FindDirectByMembers(ctx, creatorID, otherID)
	if err != nil && !errors.Is(err, "NOT_FOUND") {
		return nil, err
	}

	if existing != nil {
		if !existing.DeletedFor(creatorID) {
			return formatChannel(existing, creatorID, members), nil
		}
		return uc.reactivateDirect(ctx, existing, creatorID, members)
	}

	channel := &entity.Channel{
		Type:            entity.ChannelTypeDirect,
		Members:         memberIDs,
		UnreadCounts:    zeroCounts(memberIDs),
		LastMessageTime: time.Now(),
	}
	if err := uc.channelRepo.Create(ctx, channel); err != nil {
		return nil, err
	}

	uc.publishPerUser(channel, members, ws.EventChannelCreated)
	return formatChannel(channel, creatorID, members), nil
}

// reactivateDirect brings a soft-deleted direct channel back for the
// requester only. Their old messages stay invisible to them forever; the
// other member's view is untouched.
func (uc *ChannelUseCase) reactivateDirect(ctx context.Context, channel *entity.Channel, requesterID string, members map[string]*entity.User) (*ChannelView, error) {
	if err := uc.channelRepo.ClearDeleted(ctx, channel.ID, requesterID); err != nil {
		return nil, err
	}
	if err := uc.messageRepo.RemoveFromVisibility(ctx, channel.ID, requesterID); err != nil {
		return nil, err
	}
	if err := uc.channelRepo.SetSummary(ctx, channel.ID, entity.ChannelSummary{}); err != nil {
		return nil, err
	}
	if err := uc.channelRepo.SetUnread(ctx, channel.ID, requesterID, 0); err != nil {
		return nil, err
	}

	channel, err := uc.channelRepo.GetByID(ctx, channel.ID)
	if err != nil {
		return nil, err
	}

	uc.publishPerUser(channel, members, ws.EventChannelCreated)
	return formatChannel(channel, requesterID, members), nil
}

func (uc *ChannelUseCase) createGroup(ctx context.Context, creatorID, name string, memberIDs []string, members map[string]*entity.User) (*ChannelView, error) {
	channel := &entity.Channel{
		Type:            entity.ChannelTypeGroup,
		Name:            name,
		Members:         memberIDs,
		InviteToken:     utils.GenerateInviteToken(),
		UnreadCounts:    zeroCounts(memberIDs),
		LastMessageTime: time.Now(),
	}
	if err := uc.channelRepo.Create(ctx, channel); err != nil {
		return nil, err
	}

	uc.publishPerUser(channel, members, ws.EventChannelCreated)
	return formatChannel(channel, creatorID, members), nil
}

// List returns the requester's channels, each summarized by the latest
// message still visible to them. A soft-deleted channel stays listed only
// while newer messages remain visible.
func (uc *ChannelUseCase) List(ctx context.Context, userID string) ([]*ChannelView, error) {
	channels, err := uc.channelRepo.ListByMember(ctx, userID)
	if err != nil {
		return nil, err
	}

	memberIDs := map[string]bool{}
	for _, ch := range channels {
		for _, id := range ch.Members {
			memberIDs[id] = true
		}
	}
	users, err := uc.userRepo.GetByIDs(ctx, keys(memberIDs))
	if err != nil {
		return nil, err
	}
	members := userMap(users)

	var views []*ChannelView
	for _, ch := range channels {
		latest, err := uc.messageRepo.LatestVisibleIn(ctx, ch.ID, userID)
		if err != nil {
			return nil, err
		}
		if ch.DeletedFor(userID) && latest == nil {
			continue
		}

		view := formatChannel(ch, userID, members)
		if latest != nil {
			view.LastMessage = latest.SummaryText()
			view.LastMessageTime = latest.CreatedAt
			view.LastMessageSenderID = latest.Author.ID
		} else {
			view.LastMessage = ""
			view.LastMessageTime = time.Time{}
			view.LastMessageSenderID = ""
		}
		views = append(views, view)
	}

	sort.SliceStable(views, func(i, j int) bool {
		if !views[i].LastMessageTime.Equal(views[j].LastMessageTime) {
			return views[i].LastMessageTime.After(views[j].LastMessageTime)
		}
		return views[i].UpdatedAt.After(views[j].UpdatedAt)
	})
	return views, nil
}

func (uc *ChannelUseCase) Get(ctx context.Context, userID, channelID string) (*ChannelView, error) {
	channel, err := uc.EnsureMember(ctx, channelID, userID)
	if err != nil {
		return nil, err
	}
	members, err := uc.loadMembers(ctx, channel)
	if err != nil {
		return nil, err
	}
	return formatChannel(channel, userID, members), nil
}

// Update renames a group channel and adds or removes members, posting a
// system message for each change. Direct channels cannot be updated.
func (uc *ChannelUseCase) Update(ctx context.Context, requesterID, channelID string, input UpdateChannelInput) (*ChannelView, error) {
	channel, err := uc.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	// Non-members are told the channel does not exist rather than that
	// it is off limits.
	if !channel.HasMember(requesterID) {
		return nil, errors.NotFound("Channel", nil)
	}
	if channel.Type != entity.ChannelTypeGroup {
		return nil, errors.BadRequest("Direct channels cannot be updated", nil)
	}

	requester, err := uc.userRepo.GetByID(ctx, requesterID)
	if err != nil {
		return nil, err
	}

	memberIDs := channel.Members
	var removed []string

	if name := trimmedName(input.Name); name != "" && name != channel.Name {
		if err := uc.channelRepo.SetName(ctx, channelID, name); err != nil {
			return nil, err
		}
		channel.Name = name
		uc.postSystemMessage(ctx, channel, memberIDs, requesterID,
			fmt.Sprintf("%s renamed the channel to %s", requester.Name, name))
	}

	if len(input.AddMemberIDs) > 0 {
		added, err := uc.userRepo.GetByIDs(ctx, input.AddMemberIDs)
		if err != nil {
			return nil, err
		}
		if len(added) != len(input.AddMemberIDs) {
			return nil, errors.BadRequest("One or more member ids do not exist", nil)
		}
		for _, u := range added {
			if channel.HasMember(u.ID) {
				continue
			}
			memberIDs = append(memberIDs, u.ID)
			channel.Members = memberIDs
			if err := uc.channelRepo.SetMembers(ctx, channelID, memberIDs); err != nil {
				return nil, err
			}
			if err := uc.channelRepo.SetUnread(ctx, channelID, u.ID, 0); err != nil {
				return nil, err
			}
			uc.postSystemMessage(ctx, channel, memberIDs, requesterID,
				fmt.Sprintf("%s joined the group", u.Name))
		}
	}

	for _, removeID := range input.RemoveMemberIDs {
		if removeID == requesterID {
			return nil, errors.BadRequest("Use channel deletion to leave a channel", nil)
		}
		if !channel.HasMember(removeID) {
			continue
		}
		removedUser, err := uc.userRepo.GetByID(ctx, removeID)
		if err != nil {
			return nil, err
		}
		memberIDs = without(memberIDs, removeID)
		channel.Members = memberIDs
		if err := uc.channelRepo.SetMembers(ctx, channelID, memberIDs); err != nil {
			return nil, err
		}
		removed = append(removed, removeID)
		uc.postSystemMessage(ctx, channel, memberIDs, requesterID,
			fmt.Sprintf("%s left the group", removedUser.Name))
	}

	channel, err = uc.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	members, err := uc.loadMembers(ctx, channel)
	if err != nil {
		return nil, err
	}

	uc.publishPerUser(channel, members, ws.EventChannelUpdated)
	for _, id := range removed {
		uc.bus.PublishToUser(id, ws.EventChannelDeleted, map[string]string{"id": channelID})
	}
	return formatChannel(channel, requesterID, members), nil
}

// DeleteForUser soft-deletes the channel for the requester: their deletion
// marker is set and they are stripped from every existing message's
// visibility. When the last member deletes, the channel and all its
// messages are purged for real.
func (uc *ChannelUseCase) DeleteForUser(ctx context.Context, requesterID, channelID string) error {
	channel, err := uc.EnsureMember(ctx, channelID, requesterID)
	if err != nil {
		return err
	}

	if err := uc.channelRepo.MarkDeleted(ctx, channelID, requesterID, time.Now()); err != nil {
		return err
	}
	if err := uc.messageRepo.RemoveFromVisibility(ctx, channelID, requesterID); err != nil {
		return err
	}
	if err := uc.channelRepo.SetUnread(ctx, channelID, requesterID, 0); err != nil {
		return err
	}

	channel, err = uc.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		return err
	}

	if channel.FullyDeleted() {
		messageIDs, err := uc.messageRepo.DeleteByChannel(ctx, channelID)
		if err != nil {
			return err
		}
		if err := uc.receiptRepo.DeleteByMessages(ctx, messageIDs); err != nil {
			return err
		}
		if err := uc.channelRepo.Delete(ctx, channelID); err != nil {
			return err
		}
		uc.bus.PublishToUser(requesterID, ws.EventChannelDeleted, map[string]string{"id": channelID})
		return nil
	}

	remaining := remainingMembers(channel)
	if channel.Type == entity.ChannelTypeGroup {
		requester, err := uc.userRepo.GetByID(ctx, requesterID)
		if err != nil {
			return err
		}
		uc.postSystemMessage(ctx, channel, remaining, requesterID,
			fmt.Sprintf("%s left the group", requester.Name))
		channel, err = uc.channelRepo.GetByID(ctx, channelID)
		if err != nil {
			return err
		}
	}

	members, err := uc.loadMembers(ctx, channel)
	if err != nil {
		return err
	}
	uc.bus.PublishToUser(requesterID, ws.EventChannelDeleted, map[string]string{"id": channelID})
	for _, id := range remaining {
		uc.bus.PublishToUser(id, ws.EventChannelUpdated, formatChannel(channel, id, members))
	}
	return nil
}

// InviteLink returns the channel's shareable invite URL, minting a token if
// the channel predates invite links.
func (uc *ChannelUseCase) InviteLink(ctx context.Context, requesterID, channelID string) (string, error) {
	channel, err := uc.EnsureMember(ctx, channelID, requesterID)
	if err != nil {
		return "", err
	}
	if channel.Type != entity.ChannelTypeGroup {
		return "", errors.BadRequest("Only group channels have invite links", nil)
	}

	token := channel.InviteToken
	if token == "" {
		token = utils.GenerateInviteToken()
		if err := uc.channelRepo.SetInviteToken(ctx, channelID, token); err != nil {
			return "", err
		}
	}
	return uc.inviteURL(token), nil
}

// RegenerateInvite replaces the invite token, invalidating previously
// shared links.
func (uc *ChannelUseCase) RegenerateInvite(ctx context.Context, requesterID, channelID string) (string, error) {
	channel, err := uc.EnsureMember(ctx, channelID, requesterID)
	if err != nil {
		return "", err
	}
	if channel.Type != entity.ChannelTypeGroup {
		return "", errors.BadRequest("Only group channels have invite links", nil)
	}

	token := utils.GenerateInviteToken()
	if err := uc.channelRepo.SetInviteToken(ctx, channelID, token); err != nil {
		return "", err
	}
	return uc.inviteURL(token), nil
}

func (uc *ChannelUseCase) AcceptInvite(ctx context.Context, userID, token string) (*ChannelView, error) {
	channel, err := uc.channelRepo.FindByInviteToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if channel.HasMember(userID) {
		if channel.DeletedFor(userID) {
			if err := uc.channelRepo.ClearDeleted(ctx, channel.ID, userID); err != nil {
				return nil, err
			}
			channel.DeletedAt = nil
		}
		members, err := uc.loadMembers(ctx, channel)
		if err != nil {
			return nil, err
		}
		return formatChannel(channel, userID, members), nil
	}

	joiner, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	memberIDs := append(channel.Members, userID)
	if err := uc.channelRepo.SetMembers(ctx, channel.ID, memberIDs); err != nil {
		return nil, err
	}
	if err := uc.channelRepo.SetUnread(ctx, channel.ID, userID, 0); err != nil {
		return nil, err
	}
	channel.Members = memberIDs

	uc.postSystemMessage(ctx, channel, memberIDs, userID,
		fmt.Sprintf("%s joined the group", joiner.Name))

	channel, err = uc.channelRepo.GetByID(ctx, channel.ID)
	if err != nil {
		return nil, err
	}
	members, err := uc.loadMembers(ctx, channel)
	if err != nil {
		return nil, err
	}

	uc.bus.PublishToUser(userID, ws.EventChannelCreated, formatChannel(channel, userID, members))
	for _, id := range channel.Members {
		if id == userID {
			continue
		}
		uc.bus.PublishToUser(id, ws.EventChannelUpdated, formatChannel(channel, id, members))
	}
	return formatChannel(channel, userID, members), nil
}

// EnsureMember loads the channel and verifies membership. Soft-deletion
// does not revoke membership; it only hides history.
func (uc *ChannelUseCase) EnsureMember(ctx context.Context, channelID, userID string) (*entity.Channel, error) {
	channel, err := uc.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if !channel.HasMember(userID) {
		return nil, errors.Forbidden("You are not a member of this channel", nil)
	}
	return channel, nil
}

// postSystemMessage records a membership or rename event as a message in
// the channel. It counts toward unread for every member except the acting
// user. Failures are logged, not surfaced: the membership change itself
// already committed.
func (uc *ChannelUseCase) postSystemMessage(ctx context.Context, channel *entity.Channel, visibleTo []string, actorID, text string) {
	msg := &entity.Message{
		ChannelID: channel.ID,
		Author:    entity.SystemAuthor(),
		Text:      text,
		Status:    entity.MessageStatusSent,
		VisibleTo: append([]string(nil), visibleTo...),
	}
	if err := uc.messageRepo.Create(ctx, msg); err != nil {
		logger.Error("Failed to post system message in channel %s: %v", channel.ID, err)
		return
	}
	if err := uc.channelRepo.SetSummary(ctx, channel.ID, entity.ChannelSummary{
		LastMessage:     text,
		LastMessageTime: msg.CreatedAt,
	}); err != nil {
		logger.Error("Failed to update summary for channel %s: %v", channel.ID, err)
	}
	if recipients := without(visibleTo, actorID); len(recipients) > 0 {
		if err := uc.channelRepo.IncrementUnread(ctx, channel.ID, recipients); err != nil {
			logger.Error("Failed to bump unread for channel %s: %v", channel.ID, err)
		}
	}
	uc.bus.PublishToChannel(channel.ID, ws.EventReceiveMessage, msg)
}

func (uc *ChannelUseCase) publishPerUser(channel *entity.Channel, members map[string]*entity.User, event string) {
	for _, id := range channel.Members {
		uc.bus.PublishToUser(id, event, formatChannel(channel, id, members))
	}
}

func (uc *ChannelUseCase) loadMembers(ctx context.Context, channel *entity.Channel) (map[string]*entity.User, error) {
	users, err := uc.userRepo.GetByIDs(ctx, channel.Members)
	if err != nil {
		return nil, err
	}
	return userMap(users), nil
}

func (uc *ChannelUseCase) inviteURL(token string) string {
	return fmt.Sprintf("%s/invite/%s", uc.publicURL, token)
}

func trimmedName(name *string) string {
	if name == nil {
		return ""
	}
	return strings.TrimSpace(*name)
}

func uniqueWith(first string, rest []string) []string {
	seen := map[string]bool{first: true}
	out := []string{first}
	for _, id := range rest {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func zeroCounts(memberIDs []string) map[string]int {
	counts := make(map[string]int, len(memberIDs))
	for _, id := range memberIDs {
		counts[id] = 0
	}
	return counts
}

func without(ids []string, remove string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != remove {
			out = append(out, id)
		}
	}
	return out
}

func remainingMembers(channel *entity.Channel) []string {
	var out []string
	for _, id := range channel.Members {
		if !channel.DeletedFor(id) {
			out = append(out, id)
		}
	}
	return out
}

func keys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
