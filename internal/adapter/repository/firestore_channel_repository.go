package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"parley/internal/domain/entity"
	"parley/internal/domain/repository"
	"parley/pkg/errors"
)

type firestoreChannelRepository struct {
	client *firestore.Client
}

func NewFirestoreChannelRepository(client *firestore.Client) repository.ChannelRepository {
	return &firestoreChannelRepository{
		client: client,
	}
}

func (r *firestoreChannelRepository) Create(ctx context.Context, channel *entity.Channel) error {
	if channel.ID == "" {
		doc := r.client.Collection("channels").NewDoc()
		channel.ID = doc.ID
	}

	now := time.Now()
	if channel.CreatedAt.IsZero() {
		channel.CreatedAt = now
	}
	channel.UpdatedAt = now

	_, err := r.client.Collection("channels").Doc(channel.ID).Set(ctx, channel)
	if err != nil {
		return errors.Internal("Failed to create channel", err)
	}
	return nil
}

func (r *firestoreChannelRepository) GetByID(ctx context.Context, id string) (*entity.Channel, error) {
	doc, err := r.client.Collection("channels").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Channel", err)
		}
		return nil, errors.Internal("Failed to get channel", err)
	}

	var channel entity.Channel
	if err := doc.DataTo(&channel); err != nil {
		return nil, errors.Internal("Failed to parse channel data", err)
	}
	return &channel, nil
}

func (r *firestoreChannelRepository) FindDirectByMembers(ctx context.Context, userA, userB string) (*entity.Channel, error) {
	// Firestore allows one array-contains clause per query, so filter on one
	// member and check the other in code.
	iter := r.client.Collection("channels").
		Where("type", "==", entity.ChannelTypeDirect).
		Where("members", "array-contains", userA).
		Documents(ctx)
	defer iter.Stop()

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to query direct channel", err)
		}

		var channel entity.Channel
		if err := doc.DataTo(&channel); err != nil {
			return nil, errors.Internal("Failed to parse channel data", err)
		}
		if len(channel.Members) == 2 && channel.HasMember(userB) {
			return &channel, nil
		}
	}
	return nil, errors.NotFound("Channel", nil)
}

func (r *firestoreChannelRepository) FindByInviteToken(ctx context.Context, token string) (*entity.Channel, error) {
	iter := r.client.Collection("channels").Where("inviteToken", "==", token).Limit(1).Documents(ctx)
	doc, err := iter.Next()
	if err != nil {
		if err == iterator.Done {
			return nil, errors.NotFound("Channel", nil)
		}
		return nil, errors.Internal("Failed to query channel by invite token", err)
	}

	var channel entity.Channel
	if err := doc.DataTo(&channel); err != nil {
		return nil, errors.Internal("Failed to parse channel data", err)
	}
	return &channel, nil
}

func (r *firestoreChannelRepository) ListByMember(ctx context.Context, userID string) ([]*entity.Channel, error) {
	iter := r.client.Collection("channels").
		Where("members", "array-contains", userID).
		OrderBy("updatedAt", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	var channels []*entity.Channel
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to iterate channels", err)
		}

		var channel entity.Channel
		if err := doc.DataTo(&channel); err != nil {
			return nil, errors.Internal("Failed to parse channel data", err)
		}
		channels = append(channels, &channel)
	}
	return channels, nil
}

func (r *firestoreChannelRepository) SetName(ctx context.Context, id, name string) error {
	return r.update(ctx, id, []firestore.Update{
		{Path: "name", Value: name},
		{Path: "updatedAt", Value: time.Now()},
	}, "Failed to update channel name")
}

func (r *firestoreChannelRepository) SetMembers(ctx context.Context, id string, members []string) error {
	return r.update(ctx, id, []firestore.Update{
		{Path: "members", Value: members},
		{Path: "updatedAt", Value: time.Now()},
	}, "Failed to update channel members")
}

func (r *firestoreChannelRepository) SetInviteToken(ctx context.Context, id, token string) error {
	return r.update(ctx, id, []firestore.Update{
		{Path: "inviteToken", Value: token},
		{Path: "updatedAt", Value: time.Now()},
	}, "Failed to update invite token")
}

func (r *firestoreChannelRepository) SetSummary(ctx context.Context, id string, summary entity.ChannelSummary) error {
	return r.update(ctx, id, []firestore.Update{
		{Path: "lastMessage", Value: summary.LastMessage},
		{Path: "lastMessageTime", Value: summary.LastMessageTime},
		{Path: "lastMessageSenderId", Value: summary.LastMessageSenderID},
		{Path: "updatedAt", Value: time.Now()},
	}, "Failed to update channel summary")
}

func (r *firestoreChannelRepository) IncrementUnread(ctx context.Context, id string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}

	updates := make([]firestore.Update, 0, len(userIDs)+1)
	for _, uid := range userIDs {
		updates = append(updates, firestore.Update{
			FieldPath: firestore.FieldPath{"unreadCounts", uid},
			Value:     firestore.Increment(1),
		})
	}
	updates = append(updates, firestore.Update{Path: "updatedAt", Value: time.Now()})
	return r.update(ctx, id, updates, "Failed to increment unread counts")
}

func (r *firestoreChannelRepository) SetUnread(ctx context.Context, id, userID string, count int) error {
	return r.update(ctx, id, []firestore.Update{
		{FieldPath: firestore.FieldPath{"unreadCounts", userID}, Value: count},
	}, "Failed to set unread count")
}

func (r *firestoreChannelRepository) MarkDeleted(ctx context.Context, id, userID string, at time.Time) error {
	return r.update(ctx, id, []firestore.Update{
		{FieldPath: firestore.FieldPath{"deletedAt", userID}, Value: at},
	}, "Failed to mark channel deleted")
}

func (r *firestoreChannelRepository) ClearDeleted(ctx context.Context, id, userID string) error {
	return r.update(ctx, id, []firestore.Update{
		{FieldPath: firestore.FieldPath{"deletedAt", userID}, Value: firestore.Delete},
	}, "Failed to clear channel deletion marker")
}

func (r *firestoreChannelRepository) Delete(ctx context.Context, id string) error {
	_, err := r.client.Collection("channels").Doc(id).Delete(ctx)
	if err != nil {
		return errors.Internal("Failed to delete channel", err)
	}
	return nil
}

func (r *firestoreChannelRepository) update(ctx context.Context, id string, updates []firestore.Update, msg string) error {
	_, err := r.client.Collection("channels").Doc(id).Update(ctx, updates)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Channel", err)
		}
		return errors.Internal(msg, err)
	}
	return nil
}
