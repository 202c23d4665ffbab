package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Default configuration for the Redis-backed store.
const (
	// DefaultSessionTTL bounds how long an abandoned dialogue survives.
	DefaultSessionTTL = 24 * time.Hour
	// keyPrefix namespaces session keys in a shared Redis instance.
	keyPrefix = "postforge:session:"
)

// RedisStore keeps sessions in Redis so dialogue state survives process
// restarts and can be shared between instances.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithSessionTTL overrides the session expiry.
func WithSessionTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = ttl }
}

// NewRedisStore connects to Redis at addr and verifies the connection.
func NewRedisStore(ctx context.Context, addr string, opts ...RedisOption) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Error("RedisStore ping failed", "error", err, "addr", addr)
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	s := &RedisStore{client: client, ttl: DefaultSessionTTL}
	for _, opt := range opts {
		opt(s)
	}
	slog.Info("RedisStore connected", "addr", addr, "ttl", s.ttl)
	return s, nil
}

// Get fetches the session, creating an idle one when the key is absent.
func (s *RedisStore) Get(ctx context.Context, userID string) (*Session, error) {
	data, err := s.client.Get(ctx, keyPrefix+userID).Bytes()
	if err == redis.Nil {
		slog.Debug("RedisStore creating session", "userID", userID)
		return New(userID), nil
	}
	if err != nil {
		slog.Error("RedisStore Get failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get session for %s: %w", userID, err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		slog.Error("RedisStore session decode failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to decode session for %s: %w", userID, err)
	}
	if sess.Fields == nil {
		sess.Fields = make(map[string]string)
	}
	if sess.Scratch == nil {
		sess.Scratch = make(map[string]string)
	}
	return &sess, nil
}

// Put serializes and stores the session with the configured TTL.
func (s *RedisStore) Put(ctx context.Context, sess *Session) error {
	sess.UpdatedAt = time.Now()
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session for %s: %w", sess.UserID, err)
	}
	if err := s.client.Set(ctx, keyPrefix+sess.UserID, data, s.ttl).Err(); err != nil {
		slog.Error("RedisStore Put failed", "error", err, "userID", sess.UserID)
		return fmt.Errorf("failed to store session for %s: %w", sess.UserID, err)
	}
	slog.Debug("RedisStore session saved", "userID", sess.UserID, "flow", sess.ActiveFlow, "step", sess.CurrentStep)
	return nil
}

// Clear resets the stored session to idle, preserving the group operator.
func (s *RedisStore) Clear(ctx context.Context, userID string) error {
	sess, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	cleared := New(userID)
	cleared.Operator = sess.Operator
	return s.Put(ctx, cleared)
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
