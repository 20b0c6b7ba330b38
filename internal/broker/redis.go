package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Redis fans messages out through Redis pub/sub so several server
// instances can serve the same room.
type Redis struct {
	client *redis.Client
	buffer int
	log    *slog.Logger
}

func NewRedis(ctx context.Context, addr string, buffer int, log *slog.Logger) (*Redis, error) {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if log == nil {
		log = slog.Default()
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}

	return &Redis{client: client, buffer: buffer, log: log}, nil
}

func (r *Redis) Publish(ctx context.Context, channel string, payload []byte) error {
	return r.client.Publish(ctx, channel, payload).Err()
}

func (r *Redis) Subscribe(ctx context.Context, channels ...string) (Subscription, error) {
	ps := r.client.Subscribe(ctx, channels...)
	// Wait for the subscription confirmation so no publish is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %v: %w", channels, err)
	}

	sub := &redisSubscription{
		ps: ps,
		ch: make(chan Message, r.buffer),
	}
	go sub.pump(r.log)
	return sub, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

type redisSubscription struct {
	ps   *redis.PubSub
	ch   chan Message
	once sync.Once
}

func (s *redisSubscription) C() <-chan Message {
	return s.ch
}

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		err = s.ps.Close()
	})
	return err
}

func (s *redisSubscription) pump(log *slog.Logger) {
	defer close(s.ch)
	for msg := range s.ps.Channel() {
		select {
		case s.ch <- Message{Channel: msg.Channel, Payload: []byte(msg.Payload)}:
		default:
			log.Debug("dropping broker message", slog.String("channel", msg.Channel))
		}
	}
}
