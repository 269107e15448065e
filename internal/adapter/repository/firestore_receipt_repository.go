package repository

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"parley/internal/domain/entity"
	"parley/internal/domain/repository"
	"parley/pkg/errors"
)

type firestoreReceiptRepository struct {
	client *firestore.Client
}

func NewFirestoreReceiptRepository(client *firestore.Client) repository.ReceiptRepository {
	return &firestoreReceiptRepository{
		client: client,
	}
}

// Receipt documents are keyed <messageID>_<userID>, so an upsert for the same
// pair always lands on the same document.
func receiptDocID(messageID, userID string) string {
	return fmt.Sprintf("%s_%s", messageID, userID)
}

func (r *firestoreReceiptRepository) Upsert(ctx context.Context, receipt *entity.ReadReceipt) error {
	docID := receiptDocID(receipt.MessageID, receipt.UserID)

	doc, err := r.client.Collection("read_receipts").Doc(docID).Get(ctx)
	if err == nil && doc.Exists() {
		// Already seen; keep the original SeenAt.
		return nil
	}

	_, err = r.client.Collection("read_receipts").Doc(docID).Set(ctx, receipt)
	if err != nil {
		return errors.Internal("Failed to record read receipt", err)
	}
	return nil
}

func (r *firestoreReceiptRepository) ListByMessage(ctx context.Context, messageID string) ([]*entity.ReadReceipt, error) {
	iter := r.client.Collection("read_receipts").
		Where("messageId", "==", messageID).
		Documents(ctx)
	defer iter.Stop()

	var receipts []*entity.ReadReceipt
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to iterate read receipts", err)
		}

		var receipt entity.ReadReceipt
		if err := doc.DataTo(&receipt); err != nil {
			return nil, errors.Internal("Failed to parse read receipt data", err)
		}
		receipts = append(receipts, &receipt)
	}
	return receipts, nil
}

func (r *firestoreReceiptRepository) SeenMessageIDs(ctx context.Context, userID string, messageIDs []string) (map[string]bool, error) {
	seen := make(map[string]bool, len(messageIDs))
	if len(messageIDs) == 0 {
		return seen, nil
	}

	refs := make([]*firestore.DocumentRef, 0, len(messageIDs))
	for _, id := range messageIDs {
		refs = append(refs, r.client.Collection("read_receipts").Doc(receiptDocID(id, userID)))
	}

	docs, err := r.client.GetAll(ctx, refs)
	if err != nil {
		return nil, errors.Internal("Failed to get read receipts", err)
	}

	for i, doc := range docs {
		if doc.Exists() {
			seen[messageIDs[i]] = true
		}
	}
	return seen, nil
}

func (r *firestoreReceiptRepository) DeleteByMessage(ctx context.Context, messageID string) error {
	iter := r.client.Collection("read_receipts").
		Where("messageId", "==", messageID).
		Documents(ctx)
	defer iter.Stop()

	bw := r.client.BulkWriter(ctx)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return errors.Internal("Failed to iterate read receipts", err)
		}
		if _, err := bw.Delete(doc.Ref); err != nil {
			return errors.Internal("Failed to queue receipt deletion", err)
		}
	}
	bw.End()
	return nil
}

func (r *firestoreReceiptRepository) DeleteByMessages(ctx context.Context, messageIDs []string) error {
	for _, id := range messageIDs {
		if err := r.DeleteByMessage(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
