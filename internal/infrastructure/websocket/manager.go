package websocket

import (
	"context"
	"sync"

	"parley/pkg/logger"
)

// Backbone carries events between server processes so fan-out reaches users
// connected elsewhere.
type Backbone interface {
	Publish(ctx context.Context, env Envelope) error
}

// Envelope is the cross-process form of an event. Origin identifies the
// publishing process so it can skip its own echoes.
type Envelope struct {
	Origin  string   `json:"origin"`
	Scope   string   `json:"scope"` // "user", "channel"
	Target  string   `json:"target"`
	Exclude []string `json:"exclude,omitempty"`
	Event   Event    `json:"event"`
}

const (
	ScopeUser    = "user"
	ScopeChannel = "channel"
)

// Hooks are the domain callbacks for client-originated frames. They are
// bound at wiring time to avoid a dependency from this package on the
// use case layer.
type Hooks struct {
	CanJoin  func(ctx context.Context, channelID, userID string) error
	Typing   func(ctx context.Context, channelID, userID string, isTyping bool)
	MarkSeen func(ctx context.Context, channelID, messageID, userID string)
}

// Manager tracks connected clients and channel room membership, and fans
// events out locally and across the backbone.
type Manager struct {
	clients map[string]map[*Client]bool // userID -> connections
	rooms   map[string]map[string]bool  // channelID -> userIDs

	Register   chan *Client
	Unregister chan *Client

	hooks    Hooks
	backbone Backbone
	originID string
	done     chan struct{}

	mutex sync.RWMutex
}

func NewManager(originID string) *Manager {
	return &Manager{
		clients:    make(map[string]map[*Client]bool),
		rooms:      make(map[string]map[string]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		originID:   originID,
		done:       make(chan struct{}),
	}
}

// Add hands a new connection to the registration loop. A no-op once the
// manager has shut down.
func (m *Manager) Add(c *Client) {
	select {
	case m.Register <- c:
	case <-m.done:
	}
}

// Drop retires a connection. Safe to call after shutdown, when nothing
// reads the unregister channel anymore.
func (m *Manager) Drop(c *Client) {
	select {
	case m.Unregister <- c:
	case <-m.done:
	}
}

func (m *Manager) SetHooks(hooks Hooks) {
	m.hooks = hooks
}

func (m *Manager) SetBackbone(backbone Backbone) {
	m.backbone = backbone
}

// Start runs the registration loop until the context is cancelled.
func (m *Manager) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case client := <-m.Register:
				m.mutex.Lock()
				if m.clients[client.UserID] == nil {
					m.clients[client.UserID] = make(map[*Client]bool)
				}
				m.clients[client.UserID][client] = true
				m.mutex.Unlock()
				logger.Info("Client connected: %s", client.UserID)

			case client := <-m.Unregister:
				m.mutex.Lock()
				if conns, ok := m.clients[client.UserID]; ok && conns[client] {
					delete(conns, client)
					close(client.Send)
					if len(conns) == 0 {
						delete(m.clients, client.UserID)
						for _, members := range m.rooms {
							delete(members, client.UserID)
						}
					}
				}
				m.mutex.Unlock()
				logger.Info("Client disconnected: %s", client.UserID)

			case <-ctx.Done():
				close(m.done)
				return
			}
		}
	}()
}

// PublishToUser delivers an event to every connection the user holds, on
// this process and any other via the backbone.
func (m *Manager) PublishToUser(userID string, event string, payload interface{}) {
	ev := Event{Name: event, Payload: payload}
	m.deliverToUser(userID, ev)
	m.relay(Envelope{Scope: ScopeUser, Target: userID, Event: ev})
}

// PublishToChannel delivers an event to every user joined to the channel
// room, minus the excluded users.
func (m *Manager) PublishToChannel(channelID string, event string, payload interface{}, exclude ...string) {
	ev := Event{Name: event, Payload: payload}
	m.deliverToChannel(channelID, ev, exclude)
	m.relay(Envelope{Scope: ScopeChannel, Target: channelID, Exclude: exclude, Event: ev})
}

// ApplyRemote delivers an envelope received from the backbone to local
// connections only. Envelopes originated here are ignored.
func (m *Manager) ApplyRemote(env Envelope) {
	if env.Origin == m.originID {
		return
	}
	switch env.Scope {
	case ScopeUser:
		m.deliverToUser(env.Target, env.Event)
	case ScopeChannel:
		m.deliverToChannel(env.Target, env.Event, env.Exclude)
	}
}

func (m *Manager) relay(env Envelope) {
	if m.backbone == nil {
		return
	}
	env.Origin = m.originID
	if err := m.backbone.Publish(context.Background(), env); err != nil {
		logger.Error("Failed to relay event %s: %v", env.Event.Name, err)
	}
}

func (m *Manager) deliverToUser(userID string, ev Event) {
	raw, err := ev.Marshal()
	if err != nil {
		logger.Error("Failed to marshal event %s: %v", ev.Name, err)
		return
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()
	for client := range m.clients[userID] {
		m.send(client, raw)
	}
}

func (m *Manager) deliverToChannel(channelID string, ev Event, exclude []string) {
	raw, err := ev.Marshal()
	if err != nil {
		logger.Error("Failed to marshal event %s: %v", ev.Name, err)
		return
	}

	excluded := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()
	for userID := range m.rooms[channelID] {
		if excluded[userID] {
			continue
		}
		for client := range m.clients[userID] {
			m.send(client, raw)
		}
	}
}

// send assumes the read lock is held. A client with a full buffer is
// dropped rather than allowed to stall everyone else.
func (m *Manager) send(client *Client, raw []byte) {
	select {
	case client.Send <- raw:
	default:
		logger.Warn("Dropping slow client for user %s", client.UserID)
	}
}

func (m *Manager) joinRoom(channelID, userID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.rooms[channelID] == nil {
		m.rooms[channelID] = make(map[string]bool)
	}
	m.rooms[channelID][userID] = true
}

func (m *Manager) leaveRoom(channelID, userID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.rooms[channelID], userID)
}

// InRoom reports whether the user currently has the channel room joined.
func (m *Manager) InRoom(channelID, userID string) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.rooms[channelID][userID]
}

func (m *Manager) handleFrame(ctx context.Context, c *Client, frame ClientFrame) {
	switch frame.Type {
	case FrameJoinChat:
		if frame.ChannelID == "" {
			return
		}
		if m.hooks.CanJoin != nil {
			if err := m.hooks.CanJoin(ctx, frame.ChannelID, c.UserID); err != nil {
				logger.Warn("User %s denied joining channel %s: %v", c.UserID, frame.ChannelID, err)
				return
			}
		}
		m.joinRoom(frame.ChannelID, c.UserID)

	case FrameLeaveChat:
		if frame.ChannelID != "" {
			m.leaveRoom(frame.ChannelID, c.UserID)
		}

	case FrameTyping:
		if frame.ChannelID == "" || !m.InRoom(frame.ChannelID, c.UserID) {
			return
		}
		if m.hooks.Typing != nil {
			m.hooks.Typing(ctx, frame.ChannelID, c.UserID, frame.IsTyping)
		}

	case FrameMarkSeen:
		if frame.ChannelID == "" || frame.MessageID == "" {
			return
		}
		if m.hooks.MarkSeen != nil {
			m.hooks.MarkSeen(ctx, frame.ChannelID, frame.MessageID, c.UserID)
		}

	default:
		logger.Warn("Unknown frame type %q from user %s", frame.Type, c.UserID)
	}
}
