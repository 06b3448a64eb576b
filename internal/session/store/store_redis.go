package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/platform/sentinel"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/requestcontext"

	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/session/models"
)

const (
	sessionKeyPrefix = "kyc:session:"
	userKeyPrefix    = "kyc:session:user:"

	// evictionSlack keeps keys around slightly past the logical deadline so
	// an expired session can still be read and reported as EXPIRED.
	evictionSlack = time.Hour
)

// RedisStore is the production session store. Keys carry a TTL slightly
// beyond the session deadline; logical expiry is always checked by callers.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a Redis-backed session store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func sessionKey(sessionID string) string { return sessionKeyPrefix + sessionID }

func userKey(userID id.UserID) string { return userKeyPrefix + userID.String() }

func ttlFor(s *models.Session, now time.Time) time.Duration {
	ttl := s.ExpiresAt.Sub(now) + evictionSlack
	if ttl < time.Minute {
		ttl = time.Minute
	}
	return ttl
}

func (s *RedisStore) FindByID(ctx context.Context, sessionID string) (*models.Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

func (s *RedisStore) FindActiveByUser(ctx context.Context, userID id.UserID) (*models.Session, error) {
	sessionID, err := s.client.Get(ctx, userKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user session pointer: %w", err)
	}
	session, err := s.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.StatusActive || session.IsExpired(requestcontext.Now(ctx)) {
		return nil, sentinel.ErrNotFound
	}
	return session, nil
}

func (s *RedisStore) Save(ctx context.Context, session *models.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ttl := ttlFor(session, requestcontext.Now(ctx))

	pipe := s.client.Pipeline()
	pipe.Set(ctx, sessionKey(session.ID), raw, ttl)
	if session.Status == models.StatusActive {
		pipe.Set(ctx, userKey(session.UserID), session.ID, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	session, err := s.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		return err
	}
	pipe := s.client.Pipeline()
	pipe.Del(ctx, sessionKey(sessionID))
	pipe.Del(ctx, userKey(session.UserID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
