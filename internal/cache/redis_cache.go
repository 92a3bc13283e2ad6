package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/utils"
	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned when a key is absent or the cache is disabled
var ErrCacheMiss = errors.New("cache miss")

type CacheService interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
}

// LeaderboardEntry is one ranked row of an exam leaderboard
type LeaderboardEntry struct {
	Rank       int     `json:"rank"`
	AttemptID  uint    `json:"attempt_id"`
	UserID     string  `json:"user_id"`
	Score      float64 `json:"score"`
	Percentage float64 `json:"percentage"`
	Percentile float64 `json:"percentile"`
}

// LeaderboardCache stores the ranked standings of each exam
type LeaderboardCache interface {
	ReplaceLeaderboard(ctx context.Context, examID uint, entries []LeaderboardEntry) error
	Leaderboard(ctx context.Context, examID uint, limit int) ([]LeaderboardEntry, error)
}

// Cache is the full set of caching capabilities the services rely on
type Cache interface {
	CacheService
	LeaderboardCache
}

const keyPrefix = "exam-service:"

// LeaderboardKey is the sorted set holding an exam's standings
func LeaderboardKey(examID uint) string {
	return fmt.Sprintf("%sleaderboard:%d", keyPrefix, examID)
}

// ExamKey caches exam metadata
func ExamKey(examID uint) string {
	return fmt.Sprintf("%sexam:%d", keyPrefix, examID)
}

type redisCache struct {
	client *redis.Client
	logger utils.Logger
}

func NewRedisCache(client *redis.Client, logger utils.Logger) Cache {
	return &redisCache{
		client: client,
		logger: logger,
	}
}

func (r *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		r.logger.Warn("Cache set failed", "key", key, "error", err)
		return err
	}
	return nil
}

func (r *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		r.logger.Warn("Cache get failed", "key", key, "error", err)
		return err
	}
	return json.Unmarshal(data, dest)
}

func (r *redisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}


// ReplaceLeaderboard swaps the whole sorted set atomically. The member is
// the JSON encoded entry and the score is its rank, so ascending range
// order equals ranking order including tie breaks.
func (r *redisCache) ReplaceLeaderboard(ctx context.Context, examID uint, entries []LeaderboardEntry) error {
	key := LeaderboardKey(examID)

	members := make([]redis.Z, 0, len(entries))
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal leaderboard entry: %w", err)
		}
		members = append(members, redis.Z{Score: float64(e.Rank), Member: string(data)})
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(members) > 0 {
			pipe.ZAdd(ctx, key, members...)
		}
		return nil
	})
	if err != nil {
		r.logger.Warn("Leaderboard write failed", "exam_id", examID, "error", err)
		return err
	}
	return nil
}

func (r *redisCache) Leaderboard(ctx context.Context, examID uint, limit int) ([]LeaderboardEntry, error) {
	key := LeaderboardKey(examID)

	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, ErrCacheMiss
	}

	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	members, err := r.client.ZRange(ctx, key, 0, stop).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(members))
	for _, m := range members {
		var e LeaderboardEntry
		if err := json.Unmarshal([]byte(m), &e); err != nil {
			return nil, fmt.Errorf("corrupt leaderboard member: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
