package websocket

import "encoding/json"

// Server-to-client event names.
const (
	EventChannelCreated  = "channelCreated"
	EventChannelUpdated  = "channelUpdated"
	EventChannelDeleted  = "channelDeleted"
	EventReceiveMessage  = "receiveMessage"
	EventMessageUpdated  = "messageUpdated"
	EventMessageDeleted  = "messageDeleted"
	EventMessageSeen     = "messageSeen"
	EventTyping          = "typing"
	EventUserNameUpdated = "userNameUpdated"
)

// Client-to-server frame types.
const (
	FrameJoinChat  = "joinChat"
	FrameLeaveChat = "leaveChat"
	FrameTyping    = "typing"
	FrameMarkSeen  = "markSeen"
)

// Event is a named payload pushed to connected clients.
type Event struct {
	Name    string      `json:"event"`
	Payload interface{} `json:"data"`
}

func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// ClientFrame is what a connected client may send over the socket.
type ClientFrame struct {
	Type      string `json:"type"`
	ChannelID string `json:"channelId,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	IsTyping  bool   `json:"isTyping,omitempty"`
}
