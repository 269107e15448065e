package usecase

import "context"

// Bus fans events out to connected clients, locally and across processes.
// Implemented by the websocket manager; injected so use cases never hold a
// global singleton and tests can capture published events.
type Bus interface {
	PublishToUser(userID string, event string, payload interface{})
	PublishToChannel(channelID string, event string, payload interface{}, exclude ...string)
}

// Notifier delivers push notifications. Fire and forget: implementations
// swallow delivery failures.
type Notifier interface {
	Notify(ctx context.Context, tokens []string, title, body string, data map[string]string)
}

// AuthClient is the identity provider surface the use cases need.
type AuthClient interface {
	CreateUser(ctx context.Context, email, password, displayName string) (string, error)
	VerifyToken(ctx context.Context, token string) (string, error)
	DeleteUser(ctx context.Context, uid string) error
}

// FileStore is the blob storage surface the use cases need.
type FileStore interface {
	DeleteFile(ctx context.Context, fileURL string) error
}
