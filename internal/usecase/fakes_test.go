package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"parley/internal/domain/entity"
	"parley/internal/domain/repository"
	"parley/pkg/errors"
)

// In-memory repositories backing the use case tests. Reads return copies so
// callers mutating results cannot corrupt stored state, matching how a real
// document store behaves.

type memoryUserRepo struct {
	mu        sync.Mutex
	users     map[string]*entity.User
	createErr error
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: map[string]*entity.User{}}
}

func (r *memoryUserRepo) Create(ctx context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	r.users[user.ID] = copyUser(user)
	return nil
}

func (r *memoryUserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, errors.NotFound("User", nil)
	}
	return copyUser(u), nil
}

func (r *memoryUserRepo) GetByIDs(ctx context.Context, ids []string) ([]*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, copyUser(u))
		}
	}
	return out, nil
}

func (r *memoryUserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, errors.NotFound("User", nil)
}

func (r *memoryUserRepo) Update(ctx context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return errors.NotFound("User", nil)
	}
	user.UpdatedAt = time.Now()
	r.users[user.ID] = copyUser(user)
	return nil
}

func (r *memoryUserRepo) AddDeviceToken(ctx context.Context, userID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return errors.NotFound("User", nil)
	}
	u.FCMTokens = append(u.FCMTokens, token)
	return nil
}

func (r *memoryUserRepo) List(ctx context.Context, limit, offset int) ([]*entity.User, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.User
	for _, u := range r.users {
		out = append(out, copyUser(u))
	}
	return out, len(out), nil
}

type memoryChannelRepo struct {
	mu       sync.Mutex
	channels map[string]*entity.Channel
	seq      int
}

func newMemoryChannelRepo() *memoryChannelRepo {
	return &memoryChannelRepo{channels: map[string]*entity.Channel{}}
}

func (r *memoryChannelRepo) Create(ctx context.Context, channel *entity.Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if channel.ID == "" {
		r.seq++
		channel.ID = fmt.Sprintf("ch%d", r.seq)
	}
	now := time.Now()
	if channel.CreatedAt.IsZero() {
		channel.CreatedAt = now
	}
	channel.UpdatedAt = now
	r.channels[channel.ID] = copyChannel(channel)
	return nil
}

func (r *memoryChannelRepo) GetByID(ctx context.Context, id string) (*entity.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getLocked(id)
}

func (r *memoryChannelRepo) getLocked(id string) (*entity.Channel, error) {
	ch, ok := r.channels[id]
	if !ok {
		return nil, errors.NotFound("Channel", nil)
	}
	return copyChannel(ch), nil
}

func (r *memoryChannelRepo) FindDirectByMembers(ctx context.Context, userA, userB string) (*entity.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.channels {
		if ch.Type == entity.ChannelTypeDirect && len(ch.Members) == 2 && ch.HasMember(userA) && ch.HasMember(userB) {
			return copyChannel(ch), nil
		}
	}
	return nil, errors.NotFound("Channel", nil)
}

func (r *memoryChannelRepo) FindByInviteToken(ctx context.Context, token string) (*entity.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.channels {
		if ch.InviteToken == token && token != "" {
			return copyChannel(ch), nil
		}
	}
	return nil, errors.NotFound("Channel", nil)
}

func (r *memoryChannelRepo) ListByMember(ctx context.Context, userID string) ([]*entity.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Channel
	for _, ch := range r.channels {
		if ch.HasMember(userID) {
			out = append(out, copyChannel(ch))
		}
	}
	return out, nil
}

func (r *memoryChannelRepo) SetName(ctx context.Context, id, name string) error {
	return r.mutate(id, func(ch *entity.Channel) { ch.Name = name })
}

func (r *memoryChannelRepo) SetMembers(ctx context.Context, id string, members []string) error {
	return r.mutate(id, func(ch *entity.Channel) {
		ch.Members = append([]string(nil), members...)
	})
}

func (r *memoryChannelRepo) SetInviteToken(ctx context.Context, id, token string) error {
	return r.mutate(id, func(ch *entity.Channel) { ch.InviteToken = token })
}

func (r *memoryChannelRepo) SetSummary(ctx context.Context, id string, summary entity.ChannelSummary) error {
	return r.mutate(id, func(ch *entity.Channel) {
		ch.LastMessage = summary.LastMessage
		ch.LastMessageTime = summary.LastMessageTime
		ch.LastMessageSenderID = summary.LastMessageSenderID
	})
}

func (r *memoryChannelRepo) IncrementUnread(ctx context.Context, id string, userIDs []string) error {
	return r.mutate(id, func(ch *entity.Channel) {
		if ch.UnreadCounts == nil {
			ch.UnreadCounts = map[string]int{}
		}
		for _, uid := range userIDs {
			ch.UnreadCounts[uid]++
		}
	})
}

func (r *memoryChannelRepo) SetUnread(ctx context.Context, id, userID string, count int) error {
	return r.mutate(id, func(ch *entity.Channel) {
		if ch.UnreadCounts == nil {
			ch.UnreadCounts = map[string]int{}
		}
		ch.UnreadCounts[userID] = count
	})
}

func (r *memoryChannelRepo) MarkDeleted(ctx context.Context, id, userID string, at time.Time) error {
	return r.mutate(id, func(ch *entity.Channel) {
		if ch.DeletedAt == nil {
			ch.DeletedAt = map[string]time.Time{}
		}
		ch.DeletedAt[userID] = at
	})
}

func (r *memoryChannelRepo) ClearDeleted(ctx context.Context, id, userID string) error {
	return r.mutate(id, func(ch *entity.Channel) {
		delete(ch.DeletedAt, userID)
	})
}

func (r *memoryChannelRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.channels, id)
	return nil
}

func (r *memoryChannelRepo) mutate(id string, fn func(*entity.Channel)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[id]
	if !ok {
		return errors.NotFound("Channel", nil)
	}
	fn(ch)
	ch.UpdatedAt = time.Now()
	return nil
}

type memoryMessageRepo struct {
	mu       sync.Mutex
	messages map[string]*entity.Message
	order    []string
	seq      int
}

func newMemoryMessageRepo() *memoryMessageRepo {
	return &memoryMessageRepo{messages: map[string]*entity.Message{}}
}

func (r *memoryMessageRepo) Create(ctx context.Context, message *entity.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if message.ID == "" {
		r.seq++
		message.ID = fmt.Sprintf("m%d", r.seq)
	}
	now := time.Now()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = now
	}
	message.UpdatedAt = now
	r.messages[message.ID] = copyMessage(message)
	r.order = append(r.order, message.ID)
	return nil
}

func (r *memoryMessageRepo) GetByID(ctx context.Context, id string) (*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, errors.NotFound("Message", nil)
	}
	return copyMessage(m), nil
}

func (r *memoryMessageRepo) ListVisible(ctx context.Context, channelID, userID string) ([]*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Message
	for _, id := range r.order {
		m, ok := r.messages[id]
		if !ok || m.ChannelID != channelID || !m.VisibleFor(userID) {
			continue
		}
		out = append(out, copyMessage(m))
	}
	return out, nil
}

func (r *memoryMessageRepo) LatestIn(ctx context.Context, channelID string) (*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.order) - 1; i >= 0; i-- {
		m, ok := r.messages[r.order[i]]
		if ok && m.ChannelID == channelID {
			return copyMessage(m), nil
		}
	}
	return nil, nil
}

func (r *memoryMessageRepo) LatestVisibleIn(ctx context.Context, channelID, userID string) (*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.order) - 1; i >= 0; i-- {
		m, ok := r.messages[r.order[i]]
		if ok && m.ChannelID == channelID && m.VisibleFor(userID) {
			return copyMessage(m), nil
		}
	}
	return nil, nil
}

func (r *memoryMessageRepo) ListAuthoredByOthers(ctx context.Context, channelID, userID string) ([]*entity.Message, error) {
	visible, err := r.ListVisible(ctx, channelID, userID)
	if err != nil {
		return nil, err
	}
	var out []*entity.Message
	for _, m := range visible {
		if m.Author.Kind == entity.AuthorUser && m.Author.ID == userID {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *memoryMessageRepo) SetText(ctx context.Context, id, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return errors.NotFound("Message", nil)
	}
	m.Text = text
	m.Edited = true
	m.UpdatedAt = time.Now()
	return nil
}

func (r *memoryMessageRepo) SetStatus(ctx context.Context, id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return errors.NotFound("Message", nil)
	}
	m.Status = status
	m.UpdatedAt = time.Now()
	return nil
}

func (r *memoryMessageRepo) RemoveFromVisibility(ctx context.Context, channelID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ChannelID != channelID {
			continue
		}
		var kept []string
		for _, id := range m.VisibleTo {
			if id != userID {
				kept = append(kept, id)
			}
		}
		m.VisibleTo = kept
	}
	return nil
}

func (r *memoryMessageRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.messages, id)
	return nil
}

func (r *memoryMessageRepo) DeleteByChannel(ctx context.Context, channelID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, m := range r.messages {
		if m.ChannelID == channelID {
			ids = append(ids, id)
			delete(r.messages, id)
		}
	}
	return ids, nil
}

type memoryReceiptRepo struct {
	mu       sync.Mutex
	receipts map[string]*entity.ReadReceipt
}

func newMemoryReceiptRepo() *memoryReceiptRepo {
	return &memoryReceiptRepo{receipts: map[string]*entity.ReadReceipt{}}
}

func receiptKey(messageID, userID string) string {
	return messageID + "_" + userID
}

func (r *memoryReceiptRepo) Upsert(ctx context.Context, receipt *entity.ReadReceipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := receiptKey(receipt.MessageID, receipt.UserID)
	if _, ok := r.receipts[key]; ok {
		return nil
	}
	cp := *receipt
	r.receipts[key] = &cp
	return nil
}

func (r *memoryReceiptRepo) ListByMessage(ctx context.Context, messageID string) ([]*entity.ReadReceipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.ReadReceipt
	for _, rc := range r.receipts {
		if rc.MessageID == messageID {
			cp := *rc
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memoryReceiptRepo) SeenMessageIDs(ctx context.Context, userID string, messageIDs []string) (map[string]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]bool{}
	for _, id := range messageIDs {
		if _, ok := r.receipts[receiptKey(id, userID)]; ok {
			seen[id] = true
		}
	}
	return seen, nil
}

func (r *memoryReceiptRepo) DeleteByMessage(ctx context.Context, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, rc := range r.receipts {
		if rc.MessageID == messageID {
			delete(r.receipts, key)
		}
	}
	return nil
}

func (r *memoryReceiptRepo) DeleteByMessages(ctx context.Context, messageIDs []string) error {
	for _, id := range messageIDs {
		r.DeleteByMessage(ctx, id)
	}
	return nil
}

func (r *memoryReceiptRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.receipts)
}

type busEvent struct {
	Scope   string
	Target  string
	Event   string
	Payload interface{}
	Exclude []string
}

// captureBus records published events instead of delivering them.
type captureBus struct {
	mu     sync.Mutex
	events []busEvent
}

func (b *captureBus) PublishToUser(userID string, event string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, busEvent{Scope: "user", Target: userID, Event: event, Payload: payload})
}

func (b *captureBus) PublishToChannel(channelID string, event string, payload interface{}, exclude ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, busEvent{Scope: "channel", Target: channelID, Event: event, Payload: payload, Exclude: exclude})
}

func (b *captureBus) named(event string) []busEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []busEvent
	for _, e := range b.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func (b *captureBus) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

type captureNotifier struct {
	mu     sync.Mutex
	tokens [][]string
	bodies []string
}

func (n *captureNotifier) Notify(ctx context.Context, tokens []string, title, body string, data map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tokens = append(n.tokens, tokens)
	n.bodies = append(n.bodies, body)
}

type fakeAuthClient struct {
	nextUID string
	deleted []string
}

func (f *fakeAuthClient) CreateUser(ctx context.Context, email, password, displayName string) (string, error) {
	return f.nextUID, nil
}

func (f *fakeAuthClient) VerifyToken(ctx context.Context, token string) (string, error) {
	return f.nextUID, nil
}

func (f *fakeAuthClient) DeleteUser(ctx context.Context, uid string) error {
	f.deleted = append(f.deleted, uid)
	return nil
}

type fakeFileStore struct {
	deleted []string
}

func (f *fakeFileStore) DeleteFile(ctx context.Context, fileURL string) error {
	f.deleted = append(f.deleted, fileURL)
	return nil
}

// fixture wires every use case against the in-memory repositories with
// three seeded users.
type fixture struct {
	users    *memoryUserRepo
	channels *memoryChannelRepo
	messages *memoryMessageRepo
	receipts *memoryReceiptRepo
	bus      *captureBus
	notifier *captureNotifier
	files    *fakeFileStore

	channelUC *ChannelUseCase
	messageUC *MessageUseCase
	receiptUC *ReceiptUseCase
	userUC    *UserUseCase
}

func newFixture() *fixture {
	f := &fixture{
		users:    newMemoryUserRepo(),
		channels: newMemoryChannelRepo(),
		messages: newMemoryMessageRepo(),
		receipts: newMemoryReceiptRepo(),
		bus:      &captureBus{},
		notifier: &captureNotifier{},
		files:    &fakeFileStore{},
	}
	f.channelUC = NewChannelUseCase(f.channels, f.messages, f.receipts, f.users, f.bus, "http://localhost:8080")
	f.messageUC = NewMessageUseCase(f.messages, f.channels, f.receipts, f.users, f.bus, f.notifier)
	f.receiptUC = NewReceiptUseCase(f.receipts, f.messages, f.channels, f.users, f.bus)
	f.userUC = NewUserUseCase(f.users, f.channels, f.bus, f.files)

	ctx := context.Background()
	f.users.Create(ctx, &entity.User{ID: "u1", Email: "alice@example.com", Name: "Alice"})
	f.users.Create(ctx, &entity.User{ID: "u2", Email: "bob@example.com", Name: "Bob"})
	f.users.Create(ctx, &entity.User{ID: "u3", Email: "carol@example.com", Name: "Carol"})
	return f
}

var _ repository.UserRepository = (*memoryUserRepo)(nil)
var _ repository.ChannelRepository = (*memoryChannelRepo)(nil)
var _ repository.MessageRepository = (*memoryMessageRepo)(nil)
var _ repository.ReceiptRepository = (*memoryReceiptRepo)(nil)
var _ Bus = (*captureBus)(nil)
var _ Notifier = (*captureNotifier)(nil)
var _ AuthClient = (*fakeAuthClient)(nil)
var _ FileStore = (*fakeFileStore)(nil)

func copyUser(u *entity.User) *entity.User {
	cp := *u
	cp.FCMTokens = append([]string(nil), u.FCMTokens...)
	return &cp
}

func copyChannel(ch *entity.Channel) *entity.Channel {
	cp := *ch
	cp.Members = append([]string(nil), ch.Members...)
	if ch.UnreadCounts != nil {
		cp.UnreadCounts = make(map[string]int, len(ch.UnreadCounts))
		for k, v := range ch.UnreadCounts {
			cp.UnreadCounts[k] = v
		}
	}
	if ch.DeletedAt != nil {
		cp.DeletedAt = make(map[string]time.Time, len(ch.DeletedAt))
		for k, v := range ch.DeletedAt {
			cp.DeletedAt[k] = v
		}
	}
	return &cp
}

func copyMessage(m *entity.Message) *entity.Message {
	cp := *m
	cp.Attachments = append([]entity.Attachment(nil), m.Attachments...)
	cp.VisibleTo = append([]string(nil), m.VisibleTo...)
	if m.ReplyTo != nil {
		ref := *m.ReplyTo
		cp.ReplyTo = &ref
	}
	return &cp
}
