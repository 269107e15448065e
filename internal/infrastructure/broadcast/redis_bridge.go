package broadcast

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"

	ws "parley/internal/infrastructure/websocket"
	"parley/pkg/logger"
)

const fanoutChannel = "parley:fanout"

// RedisBridge relays fan-out envelopes between server processes over a
// Redis pub/sub channel, so events reach users connected to other nodes.
type RedisBridge struct {
	client  *redis.Client
	manager *ws.Manager
}

func NewRedisBridge(client *redis.Client, manager *ws.Manager) *RedisBridge {
	return &RedisBridge{
		client:  client,
		manager: manager,
	}
}

func (b *RedisBridge) Publish(ctx context.Context, env ws.Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, fanoutChannel, raw).Err()
}

// Listen subscribes to the fan-out channel and applies remote envelopes to
// the local manager until the context is cancelled.
func (b *RedisBridge) Listen(ctx context.Context) {
	sub := b.client.Subscribe(ctx, fanoutChannel)

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env ws.Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					logger.Error("Failed to decode fan-out envelope: %v", err)
					continue
				}
				b.manager.ApplyRemote(env)

			case <-ctx.Done():
				return
			}
		}
	}()
}
