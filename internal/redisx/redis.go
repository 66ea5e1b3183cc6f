package redisx

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// NewClient builds a client from a redis:// URL when given, otherwise from
// an address. It returns nil when neither is set.
func NewClient(url, addr, password string, db int) (*redis.Client, error) {
	if url != "" {
		opts, err := redis.ParseURL(url)
		if err != nil {
			return nil, err
		}
		return redis.NewClient(opts), nil
	}
	if addr == "" {
		return nil, nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}), nil
}

func Ping(ctx context.Context, client *redis.Client) error {
	if client == nil {
		return errors.New("redis not configured")
	}
	return client.Ping(ctx).Err()
}
