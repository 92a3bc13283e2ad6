package cache

import (
	"context"
	"time"
)

// noopCache is used when no redis is configured. Reads always miss.
type noopCache struct{}

func NewNoopCache() Cache {
	return noopCache{}
}

func (noopCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

func (noopCache) Get(ctx context.Context, key string, dest interface{}) error {
	return ErrCacheMiss
}

func (noopCache) Delete(ctx context.Context, key string) error {
	return nil
}


func (noopCache) ReplaceLeaderboard(ctx context.Context, examID uint, entries []LeaderboardEntry) error {
	return nil
}

func (noopCache) Leaderboard(ctx context.Context, examID uint, limit int) ([]LeaderboardEntry, error) {
	return nil, ErrCacheMiss
}
