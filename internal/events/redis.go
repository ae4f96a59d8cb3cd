package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisPublisher publishes events to a Redis pub/sub channel.
type RedisPublisher struct {
	Client  *redis.Client
	Channel string
	Timeout time.Duration
	Logger  *zap.Logger
}

func NewRedisPublisher(client *redis.Client, channel string, timeout time.Duration, logger *zap.Logger) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPublisher{Client: client, Channel: channel, Timeout: timeout, Logger: logger}
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opt), nil
}

func (p *RedisPublisher) Publish(ctx context.Context, ev Event) {
	if p == nil || p.Client == nil {
		return
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		p.Logger.Warn("events: marshal failed", zap.String("type", ev.Type), zap.Error(err))
		return
	}
	// Detached from ctx so an expired run context still gets its event out.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.Timeout)
	defer cancel()
	if err := p.Client.Publish(pubCtx, p.Channel, raw).Err(); err != nil {
		p.Logger.Warn("events: publish failed",
			zap.String("channel", p.Channel),
			zap.String("type", ev.Type),
			zap.Error(err),
		)
	}
}

func (p *RedisPublisher) Subscribe(ctx context.Context) (<-chan []byte, func(), error) {
	sub := p.Client.Subscribe(ctx, p.Channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}
	out := make(chan []byte, 64)
	done := make(chan struct{})
	go func() {
		defer close(out)
		msgs := sub.Channel()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				default:
				}
			}
		}
	}()
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = sub.Close()
		})
	}
	return out, cancel, nil
}

func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.Client.Ping(ctx).Err()
}
