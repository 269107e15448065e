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

type firestoreMessageRepository struct {
	client *firestore.Client
}

func NewFirestoreMessageRepository(client *firestore.Client) repository.MessageRepository {
	return &firestoreMessageRepository{
		client: client,
	}
}

func (r *firestoreMessageRepository) Create(ctx context.Context, message *entity.Message) error {
	if message.ID == "" {
		doc := r.client.Collection("messages").NewDoc()
		message.ID = doc.ID
	}

	now := time.Now()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = now
	}
	message.UpdatedAt = now

	_, err := r.client.Collection("messages").Doc(message.ID).Set(ctx, message)
	if err != nil {
		return errors.Internal("Failed to create message", err)
	}
	return nil
}

func (r *firestoreMessageRepository) GetByID(ctx context.Context, id string) (*entity.Message, error) {
	doc, err := r.client.Collection("messages").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Message", err)
		}
		return nil, errors.Internal("Failed to get message", err)
	}

	var message entity.Message
	if err := doc.DataTo(&message); err != nil {
		return nil, errors.Internal("Failed to parse message data", err)
	}
	return &message, nil
}

func (r *firestoreMessageRepository) ListVisible(ctx context.Context, channelID, userID string) ([]*entity.Message, error) {
	iter := r.client.Collection("messages").
		Where("channelId", "==", channelID).
		Where("visibleTo", "array-contains", userID).
		OrderBy("createdAt", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var messages []*entity.Message
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to iterate messages", err)
		}

		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			return nil, errors.Internal("Failed to parse message data", err)
		}
		messages = append(messages, &message)
	}
	return messages, nil
}

func (r *firestoreMessageRepository) LatestIn(ctx context.Context, channelID string) (*entity.Message, error) {
	iter := r.client.Collection("messages").
		Where("channelId", "==", channelID).
		OrderBy("createdAt", firestore.Desc).
		Limit(1).
		Documents(ctx)

	doc, err := iter.Next()
	if err != nil {
		if err == iterator.Done {
			return nil, nil
		}
		return nil, errors.Internal("Failed to query latest message", err)
	}

	var message entity.Message
	if err := doc.DataTo(&message); err != nil {
		return nil, errors.Internal("Failed to parse message data", err)
	}
	return &message, nil
}

func (r *firestoreMessageRepository) LatestVisibleIn(ctx context.Context, channelID, userID string) (*entity.Message, error) {
	iter := r.client.Collection("messages").
		Where("channelId", "==", channelID).
		Where("visibleTo", "array-contains", userID).
		OrderBy("createdAt", firestore.Desc).
		Limit(1).
		Documents(ctx)

	doc, err := iter.Next()
	if err != nil {
		if err == iterator.Done {
			return nil, nil
		}
		return nil, errors.Internal("Failed to query latest message", err)
	}

	var message entity.Message
	if err := doc.DataTo(&message); err != nil {
		return nil, errors.Internal("Failed to parse message data", err)
	}
	return &message, nil
}

func (r *firestoreMessageRepository) ListAuthoredByOthers(ctx context.Context, channelID, userID string) ([]*entity.Message, error) {
	messages, err := r.ListVisible(ctx, channelID, userID)
	if err != nil {
		return nil, err
	}

	var others []*entity.Message
	for _, m := range messages {
		if m.Author.Kind == entity.AuthorUser && m.Author.ID == userID {
			continue
		}
		others = append(others, m)
	}
	return others, nil
}

func (r *firestoreMessageRepository) SetText(ctx context.Context, id, text string) error {
	return r.update(ctx, id, []firestore.Update{
		{Path: "text", Value: text},
		{Path: "edited", Value: true},
		{Path: "updatedAt", Value: time.Now()},
	}, "Failed to update message text")
}

func (r *firestoreMessageRepository) SetStatus(ctx context.Context, id, status string) error {
	return r.update(ctx, id, []firestore.Update{
		{Path: "status", Value: status},
		{Path: "updatedAt", Value: time.Now()},
	}, "Failed to update message status")
}

func (r *firestoreMessageRepository) RemoveFromVisibility(ctx context.Context, channelID, userID string) error {
	iter := r.client.Collection("messages").
		Where("channelId", "==", channelID).
		Where("visibleTo", "array-contains", userID).
		Documents(ctx)
	defer iter.Stop()

	// Batched ArrayRemove so visibility only ever shrinks, even under
	// concurrent writers.
	bw := r.client.BulkWriter(ctx)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return errors.Internal("Failed to iterate messages", err)
		}
		_, err = bw.Update(doc.Ref, []firestore.Update{
			{Path: "visibleTo", Value: firestore.ArrayRemove(userID)},
		})
		if err != nil {
			return errors.Internal("Failed to queue visibility update", err)
		}
	}
	bw.End()
	return nil
}

func (r *firestoreMessageRepository) Delete(ctx context.Context, id string) error {
	_, err := r.client.Collection("messages").Doc(id).Delete(ctx)
	if err != nil {
		return errors.Internal("Failed to delete message", err)
	}
	return nil
}

func (r *firestoreMessageRepository) DeleteByChannel(ctx context.Context, channelID string) ([]string, error) {
	iter := r.client.Collection("messages").
		Where("channelId", "==", channelID).
		Documents(ctx)
	defer iter.Stop()

	var ids []string
	bw := r.client.BulkWriter(ctx)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to iterate messages", err)
		}
		ids = append(ids, doc.Ref.ID)
		if _, err := bw.Delete(doc.Ref); err != nil {
			return nil, errors.Internal("Failed to queue message deletion", err)
		}
	}
	bw.End()
	return ids, nil
}

func (r *firestoreMessageRepository) update(ctx context.Context, id string, updates []firestore.Update, msg string) error {
	_, err := r.client.Collection("messages").Doc(id).Update(ctx, updates)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Message", err)
		}
		return errors.Internal(msg, err)
	}
	return nil
}
