package templates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"whatsapp-sender/internal/whatsapp"
)

const redisNamespace = "wa-templates"

// RedisBackend shares listings between processes. Values are JSON encoded and
// expire through the Redis TTL.
type RedisBackend struct {
	client redis.UniversalClient
}

func NewRedisBackend(addr, password string) *RedisBackend {
	return &RedisBackend{client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})}
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]whatsapp.Template, bool, error) {
	raw, err := r.client.Get(ctx, redisNamespace+":"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var templates []whatsapp.Template
	if err := json.Unmarshal(raw, &templates); err != nil {
		return nil, false, fmt.Errorf("decode cached templates: %w", err)
	}
	return templates, true, nil
}

func (r *RedisBackend) Set(ctx context.Context, key string, templates []whatsapp.Template, ttl time.Duration) error {
	raw, err := json.Marshal(templates)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, redisNamespace+":"+key, raw, ttl).Err()
}

func (r *RedisBackend) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, redisNamespace+":*", 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}
