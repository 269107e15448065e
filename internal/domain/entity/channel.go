package entity

import "time"

const (
	ChannelTypeDirect = "direct"
	ChannelTypeGroup  = "group"
)

type Channel struct {
	ID                  string               `json:"id" firestore:"id"`
	Type                string               `json:"type" firestore:"type"` // "direct", "group"
	Name                string               `json:"name,omitempty" firestore:"name,omitempty"`
	Members             []string             `json:"members" firestore:"members"`
	InviteToken         string               `json:"invite_token,omitempty" firestore:"inviteToken,omitempty"`
	LastMessage         string               `json:"last_message,omitempty" firestore:"lastMessage,omitempty"`
	LastMessageTime     time.Time            `json:"last_message_time" firestore:"lastMessageTime"`
	LastMessageSenderID string               `json:"last_message_sender_id,omitempty" firestore:"lastMessageSenderId,omitempty"`
	UnreadCounts        map[string]int       `json:"unread_counts" firestore:"unreadCounts"`         // userID -> unread count
	DeletedAt           map[string]time.Time `json:"deleted_at,omitempty" firestore:"deletedAt,omitempty"` // userID -> soft-delete time
	CreatedAt           time.Time            `json:"created_at" firestore:"createdAt"`
	UpdatedAt           time.Time            `json:"updated_at" firestore:"updatedAt"`
}

// ChannelSummary is the denormalized last-message state shown in channel lists.
type ChannelSummary struct {
	LastMessage         string
	LastMessageTime     time.Time
	LastMessageSenderID string
}

func (ch *Channel) HasMember(userID string) bool {
	for _, m := range ch.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// DeletedFor reports whether the channel is soft-deleted for the given user.
func (ch *Channel) DeletedFor(userID string) bool {
	if ch.DeletedAt == nil {
		return false
	}
	_, ok := ch.DeletedAt[userID]
	return ok
}

// FullyDeleted reports whether every member has soft-deleted the channel,
// which is the condition for a physical purge.
func (ch *Channel) FullyDeleted() bool {
	for _, m := range ch.Members {
		if !ch.DeletedFor(m) {
			return false
		}
	}
	return len(ch.Members) > 0
}

func (ch *Channel) UnreadFor(userID string) int {
	if ch.UnreadCounts == nil {
		return 0
	}
	if n := ch.UnreadCounts[userID]; n > 0 {
		return n
	}
	return 0
}
