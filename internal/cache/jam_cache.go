package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"musicjam/internal/model"
)

// JamCache is a Redis lookaside for active jams, keyed by code. It keeps the
// hot join/report path off MongoDB; the store stays the source of truth.
type JamCache interface {
	Set(ctx context.Context, jam *model.Jam) error
	Get(ctx context.Context, code string) (*model.Jam, error)
	Delete(ctx context.Context, code string) error
	Exists(ctx context.Context, code string) (bool, error)
}

type jamCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewJamCache(client *redis.Client) JamCache {
	return &jamCache{
		client: client,
		ttl:    24 * time.Hour, // jams are short-lived sessions
	}
}

func (c *jamCache) key(code string) string {
	return fmt.Sprintf("jam:%s", code)
}

func (c *jamCache) Set(ctx context.Context, jam *model.Jam) error {
	data, err := json.Marshal(jam)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(jam.Code), data, c.ttl).Err()
}

func (c *jamCache) Get(ctx context.Context, code string) (*model.Jam, error) {
	data, err := c.client.Get(ctx, c.key(code)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var jam model.Jam
	if err := json.Unmarshal([]byte(data), &jam); err != nil {
		return nil, err
	}
	return &jam, nil
}

func (c *jamCache) Delete(ctx context.Context, code string) error {
	return c.client.Del(ctx, c.key(code)).Err()
}

func (c *jamCache) Exists(ctx context.Context, code string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(code)).Result()
	return n > 0, err
}
