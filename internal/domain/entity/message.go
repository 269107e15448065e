package entity

import "time"

const (
	MessageStatusSent = "sent"
	MessageStatusSeen = "seen"
)

const (
	AttachmentKindImage = "image"
	AttachmentKindFile  = "file"
)

type AuthorKind string

const (
	AuthorUser   AuthorKind = "user"
	AuthorSystem AuthorKind = "system"
)

// Author is a tagged variant: a user-authored message carries the sender
// snapshot taken at send time, a system-authored one carries no user at all.
type Author struct {
	Kind   AuthorKind `json:"kind" firestore:"kind"`
	ID     string     `json:"id,omitempty" firestore:"id,omitempty"`
	Name   string     `json:"name" firestore:"name"`
	Avatar string     `json:"avatar,omitempty" firestore:"avatar,omitempty"`
}

func UserAuthor(u *User) Author {
	return Author{Kind: AuthorUser, ID: u.ID, Name: u.Name, Avatar: u.AvatarURL}
}

func SystemAuthor() Author {
	return Author{Kind: AuthorSystem, Name: "System"}
}

func (a Author) IsSystem() bool {
	return a.Kind == AuthorSystem
}

type Attachment struct {
	ID   string `json:"id" firestore:"id"`
	Kind string `json:"type" firestore:"type"` // "image", "file"
	Name string `json:"name" firestore:"name"`
	URL  string `json:"url" firestore:"url"`
	Size int64  `json:"size,omitempty" firestore:"size,omitempty"`
}

// ReplyRef is the snapshot of the replied-to message frozen at reply time.
// Later edits to the original do not update it.
type ReplyRef struct {
	MessageID  string `json:"id" firestore:"messageId"`
	SenderID   string `json:"sender_id,omitempty" firestore:"senderId,omitempty"`
	SenderName string `json:"sender_name" firestore:"senderName"`
	Content    string `json:"content" firestore:"content"`
}

type Message struct {
	ID            string       `json:"id" firestore:"id"`
	ChannelID     string       `json:"channel_id" firestore:"channelId"`
	Author        Author       `json:"sender" firestore:"author"`
	Text          string       `json:"text" firestore:"text"`
	Attachments   []Attachment `json:"attachments,omitempty" firestore:"attachments,omitempty"`
	ReplyTo       *ReplyRef    `json:"reply_to,omitempty" firestore:"replyTo,omitempty"`
	ForwardedFrom string       `json:"forwarded_from,omitempty" firestore:"forwardedFrom,omitempty"`
	Status        string       `json:"status" firestore:"status"` // "sent", "seen"
	Edited        bool         `json:"edited" firestore:"edited"`
	VisibleTo     []string     `json:"visible_to" firestore:"visibleTo"`
	CreatedAt     time.Time    `json:"created_at" firestore:"createdAt"`
	UpdatedAt     time.Time    `json:"updated_at" firestore:"updatedAt"`
}

func (m *Message) VisibleFor(userID string) bool {
	for _, id := range m.VisibleTo {
		if id == userID {
			return true
		}
	}
	return false
}

// SummaryText is the string shown in channel lists for this message.
func (m *Message) SummaryText() string {
	if m.Text != "" {
		return m.Text
	}
	if len(m.Attachments) > 0 {
		return "[Attachment]"
	}
	return ""
}
