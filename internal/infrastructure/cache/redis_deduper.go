// Package cache holds the redis-backed helpers shared by every gateway instance.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupePrefix = "shopdesk:notify:"

// NewRedisClient connects and pings the server at url (redis://...).
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	cli := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cli.Ping(ctx).Err(); err != nil {
		cli.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return cli, nil
}

// RedisDeduper claims a notification tag with SET NX so that only one session across all instances
// alerts for it within ttl.
type RedisDeduper struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisDeduper(client redis.Cmdable, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (d *RedisDeduper) FirstSeen(ctx context.Context, tag string) (bool, error) {
	ok, err := d.client.SetNX(ctx, dedupePrefix+tag, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", tag, err)
	}
	return ok, nil
}
