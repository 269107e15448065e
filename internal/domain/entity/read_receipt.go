package entity

import "time"

// ReadReceipt is unique per (messageID, userID); upserts are idempotent.
type ReadReceipt struct {
	MessageID string    `json:"message_id" firestore:"messageId"`
	UserID    string    `json:"user_id" firestore:"userId"`
	SeenAt    time.Time `json:"seen_at" firestore:"seenAt"`
}
