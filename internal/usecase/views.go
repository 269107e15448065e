package usecase

import (
	"time"

	"parley/internal/domain/entity"
)

type MemberView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// ChannelView is a channel as one particular viewer sees it: their unread
// count, and for direct channels the other participant's name.
type ChannelView struct {
	ID                  string       `json:"id"`
	Type                string       `json:"type"`
	Name                string       `json:"name"`
	Members             []MemberView `json:"members"`
	LastMessage         string       `json:"last_message"`
	LastMessageTime     time.Time    `json:"last_message_time"`
	LastMessageSenderID string       `json:"last_message_sender_id,omitempty"`
	UnreadCount         int          `json:"unread_count"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// MessageView annotates a message with whether the viewer has seen it.
type MessageView struct {
	*entity.Message
	Seen bool `json:"seen"`
}

func formatChannel(ch *entity.Channel, viewerID string, users map[string]*entity.User) *ChannelView {
	view := &ChannelView{
		ID:                  ch.ID,
		Type:                ch.Type,
		Name:                ch.Name,
		LastMessage:         ch.LastMessage,
		LastMessageTime:     ch.LastMessageTime,
		LastMessageSenderID: ch.LastMessageSenderID,
		UnreadCount:         ch.UnreadFor(viewerID),
		CreatedAt:           ch.CreatedAt,
		UpdatedAt:           ch.UpdatedAt,
	}

	for _, memberID := range ch.Members {
		member := MemberView{ID: memberID}
		if u, ok := users[memberID]; ok {
			member.Name = u.Name
			member.AvatarURL = u.AvatarURL
		}
		view.Members = append(view.Members, member)

		// A direct channel is titled after the other participant.
		if ch.Type == entity.ChannelTypeDirect && memberID != viewerID {
			view.Name = member.Name
		}
	}
	return view
}

func userMap(users []*entity.User) map[string]*entity.User {
	m := make(map[string]*entity.User, len(users))
	for _, u := range users {
		m[u.ID] = u
	}
	return m
}
