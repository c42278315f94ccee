package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SAP-F-2025/exam-session/internal/models"
)

const DefaultProgressTTL = 24 * time.Hour

// ProgressCache keeps the latest local checkpoint of each in-flight session so a
// resumed session can be compared with the server snapshot.
type ProgressCache struct {
	cache CacheService
	ttl   time.Duration
}

func NewProgressCache(cache CacheService, ttl time.Duration) *ProgressCache {
	if ttl <= 0 {
		ttl = DefaultProgressTTL
	}
	return &ProgressCache{cache: cache, ttl: ttl}
}

func progressKey(userID string, attemptID uint) string {
	return fmt.Sprintf("session:progress:%s:%d", userID, attemptID)
}

func (p *ProgressCache) Save(ctx context.Context, userID string, progress models.Progress) error {
	return p.cache.Set(ctx, progressKey(userID, progress.AttemptID), progress, p.ttl)
}

// Load returns nil without error when no checkpoint exists.
func (p *ProgressCache) Load(ctx context.Context, userID string, attemptID uint) (*models.Progress, error) {
	var progress models.Progress
	err := p.cache.Get(ctx, progressKey(userID, attemptID), &progress)
	if errors.Is(err, ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

func (p *ProgressCache) Delete(ctx context.Context, userID string, attemptID uint) error {
	return p.cache.Delete(ctx, progressKey(userID, attemptID))
}

// DeleteUser drops every checkpoint owned by userID.
func (p *ProgressCache) DeleteUser(ctx context.Context, userID string) error {
	return p.cache.DeletePattern(ctx, fmt.Sprintf("session:progress:%s:*", userID))
}
