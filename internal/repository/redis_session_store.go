package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"dining-concierge/internal/domain"
)

const sessionKeyPrefix = "dining:session:"

// RedisSessionStore keeps conversation state as JSON under a TTL that is
// refreshed on every read and write.
type RedisSessionStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisSessionStore(client redis.UniversalClient, ttl time.Duration) (*RedisSessionStore, error) {
	if client == nil {
		return nil, errors.New("repository: redis client must not be nil")
	}
	if ttl <= 0 {
		ttl = defaultSession
	}
	return &RedisSessionStore{client: client, ttl: ttl}, nil
}

func (s *RedisSessionStore) key(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

func (s *RedisSessionStore) Load(ctx context.Context, sessionID string) (domain.ConversationState, bool, error) {
	key := s.key(sessionID)
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ConversationState{}, false, nil
	}
	if err != nil {
		return domain.ConversationState{}, false, fmt.Errorf("repository: redis Load: %w", err)
	}

	var state domain.ConversationState
	if err := json.Unmarshal(val, &state); err != nil {
		return domain.ConversationState{}, false, fmt.Errorf("repository: redis Load decode: %w", err)
	}
	state.SessionID = sessionID

	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "session ttl refresh failed", "session_id", sessionID, "err", err)
	}
	return state, true, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, state domain.ConversationState) error {
	if strings.TrimSpace(state.SessionID) == "" {
		return errors.New("repository: redis Save: session id is required")
	}
	val, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("repository: redis Save encode: %w", err)
	}
	if err := s.client.Set(ctx, s.key(state.SessionID), val, s.ttl).Err(); err != nil {
		return fmt.Errorf("repository: redis Save: %w", err)
	}
	return nil
}
