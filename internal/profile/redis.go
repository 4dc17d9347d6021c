package profile

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisProfileKey = "dhroxy:profile"

// RedisStore keeps all entries in one Redis hash.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client, key: redisProfileKey}, nil
}

// Get returns the value stored under key.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.HGet(ctx, s.key, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, true, nil
}

// Put creates or replaces a value.
func (s *RedisStore) Put(ctx context.Context, key, value string) error {
	if err := s.client.HSet(ctx, s.key, key, value).Err(); err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

// Delete removes a key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.HDel(ctx, s.key, key).Err()
}

// Keys lists the stored keys.
func (s *RedisStore) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.client.HKeys(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// ExportJSON exports all entries to a JSON writer.
func (s *RedisStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return fmt.Errorf("failed to list entries: %w", err)
	}
	entries := make([]Entry, 0, len(all))
	for k, v := range all {
		entries = append(entries, Entry{Key: k, Value: v})
	}
	return writeExport(writer, entries)
}

// ImportJSON imports entries from a JSON reader.
func (s *RedisStore) ImportJSON(ctx context.Context, reader io.Reader) (int, int, error) {
	return importEntries(ctx, s, reader)
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
