package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"imgadapt/internal/core/domain"

	"github.com/redis/go-redis/v9"
)

// Redis stores records as JSON strings under <prefix>:<batch id> with an optional TTL.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedis(ctx context.Context, redisURL, prefix string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing redis url: %w", err)
	}

	opts.MaxRetries = 3
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("error connecting to redis: %w", err)
	}

	return &Redis{client: client, prefix: prefix, ttl: ttl}, nil
}

func (r *Redis) key(batchID string) string {
	return r.prefix + ":" + batchID
}

func (r *Redis) Save(ctx context.Context, status domain.BatchStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("error encoding status: %w", err)
	}

	if err := r.client.Set(ctx, r.key(status.BatchID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("error saving status %s: %w", status.BatchID, err)
	}

	return nil
}

func (r *Redis) Load(ctx context.Context, batchID string) (domain.BatchStatus, error) {
	data, err := r.client.Get(ctx, r.key(batchID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.BatchStatus{}, domain.ErrBatchNotFound
	}
	if err != nil {
		return domain.BatchStatus{}, fmt.Errorf("error loading status %s: %w", batchID, err)
	}

	var status domain.BatchStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return domain.BatchStatus{}, fmt.Errorf("error decoding status %s: %w", batchID, err)
	}

	return status, nil
}

func (r *Redis) Delete(ctx context.Context, batchID string) error {
	if err := r.client.Del(ctx, r.key(batchID)).Err(); err != nil {
		return fmt.Errorf("error deleting status %s: %w", batchID, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
