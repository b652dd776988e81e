package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// ScopeTracker marks which quizzes have a live monitor scope on this instance.
// Notes:
//   - The broadcast itself stays in-process (app.Hub); Redis only records liveness.
//   - Markers expire after ttl so a crashed instance does not leave them behind.
type ScopeTracker struct {
	client  *redis.Client
	ttl     time.Duration
	timeout time.Duration
}

func NewScopeTracker(client *redis.Client, ttl time.Duration) *ScopeTracker {
	return &ScopeTracker{client: client, ttl: ttl, timeout: 2 * time.Second}
}

func (t *ScopeTracker) ScopeOpened(ctx context.Context, quizID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout)
	defer cancel()
	// best-effort liveness marker
	_ = t.client.Set(ctx, t.key(quizID), "1", t.ttl).Err()
}

func (t *ScopeTracker) ScopeClosed(ctx context.Context, quizID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout)
	defer cancel()
	_ = t.client.Del(ctx, t.key(quizID)).Err()
}

func (t *ScopeTracker) key(quizID string) string {
	return "quiz:monitor:" + quizID
}
