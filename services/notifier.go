package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Notifier is told about every committed change to a game. Delivery is best
// effort: implementations log failures and never fail the caller.
type Notifier interface {
	GameChanged(ctx context.Context, gameID string)
}

type nopNotifier struct{}

func (nopNotifier) GameChanged(context.Context, string) {}

const UpdatesChannel = "teamtrivia:games"

// RedisNotifier publishes game ids so every instance's hub can refresh its
// own clients.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

func NewRedisNotifier(client *redis.Client, logger *slog.Logger) *RedisNotifier {
	return &RedisNotifier{client: client, channel: UpdatesChannel, logger: logger}
}

func (n *RedisNotifier) GameChanged(ctx context.Context, gameID string) {
	if err := n.client.Publish(ctx, n.channel, gameID).Err(); err != nil {
		n.logger.Warn("failed to publish game update", "game_id", gameID, "error", err)
	}
}

// Relay forwards game ids published on Redis to a local notifier.
type Relay struct {
	sub    *redis.PubSub
	local  Notifier
	logger *slog.Logger
}

// StartRelay subscribes to the updates channel and waits until Redis confirms
// the subscription.
func StartRelay(ctx context.Context, client *redis.Client, local Notifier, logger *slog.Logger) (*Relay, error) {
	sub := client.Subscribe(ctx, UpdatesChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", UpdatesChannel, err)
	}
	logger.Info("relaying game updates from redis", "channel", UpdatesChannel)
	return &Relay{sub: sub, local: local, logger: logger}, nil
}

// Run forwards updates until ctx is done. It returns an error when the
// subscription ends first.
func (r *Relay) Run(ctx context.Context) error {
	defer r.sub.Close()

	ch := r.sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			r.local.GameChanged(ctx, msg.Payload)
		}
	}
}
