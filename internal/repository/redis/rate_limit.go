package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const rateLimitKeyPrefix = "omms:ratelimit:"

// RateLimitStore keeps sliding-window attempt records in Redis sorted
// sets, scored by the attempt timestamp in nanoseconds.
type RateLimitStore struct {
	client *goredis.Client
}

// NewRateLimitStore wires the store onto an established Redis client.
func NewRateLimitStore(client *goredis.Client) *RateLimitStore {
	return &RateLimitStore{client: client}
}

func (s *RateLimitStore) TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error {
	cutoff := reference.Add(-window).UnixNano()
	err := s.client.ZRemRangeByScore(ctx, s.key(identifier), "-inf", strconv.FormatInt(cutoff, 10)).Err()
	if err != nil {
		return fmt.Errorf("rate limit trim: %w", err)
	}
	return nil
}

func (s *RateLimitStore) CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	cutoff := reference.Add(-window).UnixNano()
	count, err := s.client.ZCount(ctx, s.key(identifier), strconv.FormatInt(cutoff, 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("rate limit count: %w", err)
	}
	return int(count), nil
}

func (s *RateLimitStore) RecordAttempt(ctx context.Context, identifier string, at time.Time) error {
	key := s.key(identifier)
	member := goredis.Z{
		Score:  float64(at.UnixNano()),
		Member: strconv.FormatInt(at.UnixNano(), 10),
	}
	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, member)
	pipe.Expire(ctx, key, 24*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rate limit record: %w", err)
	}
	return nil
}

func (s *RateLimitStore) OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	cutoff := reference.Add(-window).UnixNano()
	entries, err := s.client.ZRangeByScoreWithScores(ctx, s.key(identifier), &goredis.ZRangeBy{
		Min:   strconv.FormatInt(cutoff, 10),
		Max:   "+inf",
		Count: 1,
	}).Result()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("rate limit oldest: %w", err)
	}
	if len(entries) == 0 {
		return time.Time{}, false, nil
	}
	return time.Unix(0, int64(entries[0].Score)), true, nil
}

func (s *RateLimitStore) key(identifier string) string {
	return rateLimitKeyPrefix + identifier
}
