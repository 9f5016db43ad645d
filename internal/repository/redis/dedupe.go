package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "webhook:seen:"

// Deduper remembers processed webhook deliveries in Redis with a TTL.
type Deduper struct {
	client *goredis.Client
}

// NewDeduper creates a new Deduper connected to addr.
func NewDeduper(addr, password string, db int) *Deduper {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Deduper{client: rdb}
}

// Ping checks that Redis is reachable.
func (d *Deduper) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}

func (d *Deduper) Seen(ctx context.Context, key string) (bool, error) {
	_, err := d.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check webhook key %s: %w", key, err)
	}
	return true, nil
}

func (d *Deduper) Mark(ctx context.Context, key string, ttl time.Duration) error {
	if err := d.client.Set(ctx, keyPrefix+key, 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to mark webhook key %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (d *Deduper) Close() error {
	return d.client.Close()
}
