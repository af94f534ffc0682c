package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DedupeStore is the subset of *redis.Client used for send-once markers.
type DedupeStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Deduped wraps a notifier so each (payment, kind) is delivered at most once
// within ttl. Redis errors fail open: the event is still delivered.
type Deduped struct {
	next   Notifier
	store  DedupeStore
	ttl    time.Duration
	logger *zap.Logger
}

func NewDeduped(next Notifier, store DedupeStore, ttl time.Duration, logger *zap.Logger) *Deduped {
	return &Deduped{next: next, store: store, ttl: ttl, logger: logger}
}

func dedupeKey(ev Event) string {
	return fmt.Sprintf("courtmaster:notified:%s:%s", ev.PaymentID, ev.Kind)
}

func (d *Deduped) Notify(ctx context.Context, ev Event) error {
	key := dedupeKey(ev)

	first, err := d.store.SetNX(ctx, key, ev.Source, d.ttl).Result()
	if err != nil {
		d.logger.Warn("notification dedupe unavailable", zap.String("key", key), zap.Error(err))
		return d.next.Notify(ctx, ev)
	}
	if !first {
		d.logger.Info("notification already sent", zap.String("key", key))
		return nil
	}

	if err := d.next.Notify(ctx, ev); err != nil {
		// allow a later delivery to try again
		d.store.Del(ctx, key)
		return err
	}
	return nil
}

// NewRedisClient connects and pings redis.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}
