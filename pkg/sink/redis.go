package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSink appends values to a Redis list with RPUSH. Values are buffered
// and pushed in one round trip per Flush.
type RedisSink struct {
	redis      *redis.Client
	key        string
	raw        bool
	pending    []interface{}
	ownsClient bool
}

// NewRedisSink creates a sink on key. With truncate set, any existing list
// under key is deleted first.
func NewRedisSink(ctx context.Context, redisClient *redis.Client, key string, truncate, raw bool) (*RedisSink, error) {
	if redisClient == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if key == "" {
		return nil, fmt.Errorf("redis key is required")
	}

	if truncate {
		if err := redisClient.Del(ctx, key).Err(); err != nil {
			SinkErrors.WithLabelValues(string(TypeRedis), "truncate").Inc()
			return nil, fmt.Errorf("redis del: %w", err)
		}
	}

	return &RedisSink{
		redis: redisClient,
		key:   key,
		raw:   raw,
	}, nil
}

// Key returns the list key.
func (s *RedisSink) Key() string {
	return s.key
}

// Write buffers value until the next Flush.
func (s *RedisSink) Write(ctx context.Context, value json.RawMessage) error {
	s.pending = append(s.pending, string(render(value, s.raw)))
	return nil
}

// Flush pushes buffered values in order.
func (s *RedisSink) Flush(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}

	if err := s.redis.RPush(ctx, s.key, s.pending...).Err(); err != nil {
		SinkErrors.WithLabelValues(string(TypeRedis), "flush").Inc()
		return fmt.Errorf("redis rpush: %w", err)
	}

	SinkWrites.WithLabelValues(string(TypeRedis)).Add(float64(len(s.pending)))
	s.pending = s.pending[:0]
	return nil
}

// Close flushes remaining values. The client is closed only when the sink
// created it.
func (s *RedisSink) Close() error {
	err := s.Flush(context.Background())
	if s.ownsClient {
		if cerr := s.redis.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close redis: %w", cerr)
		}
	}
	return err
}
