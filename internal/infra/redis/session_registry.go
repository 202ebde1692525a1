package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"serpukhov-quiz-bot/internal/domain"
	"github.com/redis/go-redis/v9"
)

// SessionRegistry keeps attempt sessions in Redis as JSON snapshots with a
// TTL. Unlike the in-memory registry, in-flight attempts survive a process
// restart as long as the TTL has not elapsed. Cursor updates are serialized
// through a local mutex; the service processes events for one attempt
// sequentially, so cross-instance contention is not a concern here.
type SessionRegistry struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.Mutex
}

func NewSessionRegistry(client *redis.Client, ttl time.Duration) *SessionRegistry {
	return &SessionRegistry{client: client, ttl: ttl}
}

func (r *SessionRegistry) Start(ctx context.Context, session domain.AttemptSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return r.client.Set(ctx, r.key(session.AttemptID), data, r.ttl).Err()
}

func (r *SessionRegistry) Get(ctx context.Context, attemptID int64) (domain.AttemptSession, error) {
	data, err := r.client.Get(ctx, r.key(attemptID)).Bytes()
	if err == redis.Nil {
		return domain.AttemptSession{}, domain.ErrSessionExpired
	}
	if err != nil {
		return domain.AttemptSession{}, err
	}
	var session domain.AttemptSession
	if err := json.Unmarshal(data, &session); err != nil {
		return domain.AttemptSession{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return session, nil
}

func (r *SessionRegistry) Advance(ctx context.Context, attemptID int64) (domain.AttemptSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, err := r.Get(ctx, attemptID)
	if err != nil {
		return domain.AttemptSession{}, err
	}
	session.Cursor++
	data, err := json.Marshal(session)
	if err != nil {
		return domain.AttemptSession{}, fmt.Errorf("marshal session: %w", err)
	}
	if err := r.client.Set(ctx, r.key(attemptID), data, r.ttl).Err(); err != nil {
		return domain.AttemptSession{}, err
	}
	return session, nil
}

func (r *SessionRegistry) End(ctx context.Context, attemptID int64) error {
	return r.client.Del(ctx, r.key(attemptID)).Err()
}

func (r *SessionRegistry) key(attemptID int64) string {
	return "attempt:session:" + strconv.FormatInt(attemptID, 10)
}
