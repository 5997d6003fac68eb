package channel

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"sheetport/internal/delegation"
)

// Redis carries delegation messages over Redis pub/sub.
type Redis struct {
	client *redis.Client
	name   string
	logger *slog.Logger
}

type RedisOption func(*Redis)

func WithRedisChannel(name string) RedisOption {
	return func(r *Redis) {
		if name != "" {
			r.name = name
		}
	}
}

func WithRedisLogger(logger *slog.Logger) RedisOption {
	return func(r *Redis) {
		r.logger = logger
	}
}

func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	r := &Redis{client: client, name: delegation.ChannelName, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) Publish(ctx context.Context, msg delegation.Message) error {
	payload, err := encode(msg)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.name, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribe returns once Redis has confirmed the subscription, so messages
// published afterwards are guaranteed to arrive.
func (r *Redis) Subscribe(ctx context.Context) (delegation.Subscription, error) {
	ps := r.client.Subscribe(ctx, r.name)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", r.name, err)
	}

	rl := newRelay(r.logger, ps.Close)
	in := ps.Channel()
	go func() {
		defer rl.finish()
		for {
			select {
			case <-rl.stopping():
				return
			case m, ok := <-in:
				if !ok {
					return
				}
				if !rl.deliver([]byte(m.Payload)) {
					return
				}
			}
		}
	}()
	return rl, nil
}
