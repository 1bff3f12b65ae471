package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/skillswap/backend/internal/logging"
)

// RedisFeed distributes change events over Redis pub/sub so every API
// instance sees writes made by the others.
type RedisFeed struct {
	rdb *redis.Client
}

// NewRedisFeed creates a feed on top of the provided client.
func NewRedisFeed(rdb *redis.Client) *RedisFeed {
	return &RedisFeed{rdb: rdb}
}

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// Publish sends ev on the table's channel.
func (f *RedisFeed) Publish(ctx context.Context, ev ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	if err := f.rdb.Publish(ctx, Channel(ev.Table), payload).Err(); err != nil {
		return fmt.Errorf("publish change event: %w", err)
	}
	return nil
}

// Subscribe listens on the table's channel. It returns once Redis has
// confirmed the subscription.
func (f *RedisFeed) Subscribe(ctx context.Context, table string) (<-chan ChangeEvent, func(), error) {
	sub := f.rdb.Subscribe(ctx, Channel(table))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", Channel(table), err)
	}

	ctx, stop := context.WithCancel(ctx)
	out := make(chan ChangeEvent, subscriberBuffer)
	msgs := sub.Channel()
	logger := logging.FromContext(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(out)
		defer func() { _ = sub.Close() }()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in change feed subscriber", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					logger.Warn("discarding malformed change event", slog.String("channel", msg.Channel), slog.String("error", err.Error()))
					continue
				}
				select {
				case out <- ev:
				default:
				}
			}
		}
	}()

	cancel := func() {
		stop()
		wg.Wait()
	}
	return out, cancel, nil
}

var _ Feed = (*RedisFeed)(nil)
