// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wanquanY/Plan-A-sub001/pkg/chat"
	"github.com/wanquanY/Plan-A-sub001/pkg/config"
	"github.com/wanquanY/Plan-A-sub001/pkg/logger"
)

// Default timeouts for Redis operations.
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
)

// Options tune a RedisStore.
type Options struct {
	KeyPrefix   string
	MaxMessages int
	MaxSessions int
	TTL         time.Duration
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	d := config.Default().Memory
	if o.MaxMessages <= 0 {
		o.MaxMessages = d.MaxMessages
	}
	if o.MaxSessions <= 0 {
		o.MaxSessions = d.MaxSessions
	}
	if o.TTL <= 0 {
		o.TTL = d.TTL.Std()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// RedisStore keeps session memory in Redis.
//
// Keys:
//
//	{prefix}session:{id}:messages  list of JSON messages
//	{prefix}session:{id}:owner     user id owning the session
//	{prefix}user:{id}:sessions     sorted set of session ids scored by last append
type RedisStore struct {
	client redis.UniversalClient
	opts   Options

	scoreMu   sync.Mutex
	lastScore int64
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to the Redis server described by cfg. The
// connection is lazy; use Ping to check it.
func NewRedisStore(cfg config.MemoryConfig) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Username:     cfg.RedisUsername,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  DefaultDialTimeout,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	})
	return NewRedisStoreWithClient(client, Options{
		KeyPrefix:   cfg.KeyPrefix,
		MaxMessages: cfg.MaxMessages,
		MaxSessions: cfg.MaxSessions,
		TTL:         cfg.TTL.Std(),
	})
}

// NewRedisStoreWithClient creates a RedisStore with a pre-configured client.
// This is useful for testing with miniredis.
func NewRedisStoreWithClient(client redis.UniversalClient, opts Options) *RedisStore {
	return &RedisStore{client: client, opts: opts.withDefaults()}
}

func (s *RedisStore) messagesKey(sessionID string) string {
	return s.opts.KeyPrefix + "session:" + sessionID + ":messages"
}

func (s *RedisStore) ownerKey(sessionID string) string {
	return s.opts.KeyPrefix + "session:" + sessionID + ":owner"
}

func (s *RedisStore) sessionsKey(userID string) string {
	return s.opts.KeyPrefix + "user:" + userID + ":sessions"
}

// nextScore returns a strictly increasing microsecond timestamp so that two
// appends within the same clock tick still order correctly.
func (s *RedisStore) nextScore() float64 {
	s.scoreMu.Lock()
	defer s.scoreMu.Unlock()
	now := s.opts.Now().UnixMicro()
	if now <= s.lastScore {
		now = s.lastScore + 1
	}
	s.lastScore = now
	return float64(now)
}

// Append adds one message to the session.
func (s *RedisStore) Append(ctx context.Context, sessionID, userID string, msg chat.Message) {
	s.AppendMany(ctx, sessionID, userID, []chat.Message{msg})
}

// AppendMany adds messages to the session, trims it to MaxMessages, slides
// its expiry and evicts the user's least recently used sessions beyond
// MaxSessions.
func (s *RedisStore) AppendMany(ctx context.Context, sessionID, userID string, msgs []chat.Message) {
	if sessionID == "" || len(msgs) == 0 {
		return
	}

	values := make([]any, 0, len(msgs))
	for _, msg := range msgs {
		data, err := json.Marshal(msg)
		if err != nil {
			logger.Warnw("dropping unencodable message", "session", sessionID, "error", err)
			continue
		}
		values = append(values, data)
	}
	if len(values) == 0 {
		return
	}

	msgKey := s.messagesKey(sessionID)
	ttl := s.opts.TTL
	limit := int64(s.opts.MaxMessages)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, msgKey, values...)
		pipe.LTrim(ctx, msgKey, -limit, -1)
		pipe.Expire(ctx, msgKey, ttl)
		if userID != "" {
			pipe.Set(ctx, s.ownerKey(sessionID), userID, ttl)
			pipe.ZAdd(ctx, s.sessionsKey(userID), redis.Z{Score: s.nextScore(), Member: sessionID})
			pipe.Expire(ctx, s.sessionsKey(userID), ttl)
		}
		return nil
	})
	if err != nil {
		s.degraded("append", sessionID, err)
		return
	}

	if userID != "" {
		s.evict(ctx, userID)
	}
}

// evict drops the user's oldest sessions beyond MaxSessions together with
// their messages.
func (s *RedisStore) evict(ctx context.Context, userID string) {
	key := s.sessionsKey(userID)
	count, err := s.client.ZCard(ctx, key).Result()
	if err != nil {
		s.degraded("evict", userID, err)
		return
	}
	excess := count - int64(s.opts.MaxSessions)
	if excess <= 0 {
		return
	}

	oldest, err := s.client.ZRange(ctx, key, 0, excess-1).Result()
	if err != nil {
		s.degraded("evict", userID, err)
		return
	}
	if len(oldest) == 0 {
		return
	}

	members := make([]any, 0, len(oldest))
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range oldest {
			pipe.Del(ctx, s.messagesKey(id), s.ownerKey(id))
			members = append(members, id)
		}
		pipe.ZRem(ctx, key, members...)
		return nil
	})
	if err != nil {
		s.degraded("evict", userID, err)
		return
	}
	logger.Debugw("evicted sessions", "user", userID, "sessions", oldest)
}

// Read returns the session's messages, oldest first. Entries that cannot be
// decoded are skipped.
func (s *RedisStore) Read(ctx context.Context, sessionID string) []chat.Message {
	if sessionID == "" {
		return nil
	}
	raw, err := s.client.LRange(ctx, s.messagesKey(sessionID), 0, -1).Result()
	if err != nil {
		s.degraded("read", sessionID, err)
		return nil
	}

	out := make([]chat.Message, 0, len(raw))
	for _, item := range raw {
		var msg chat.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			logger.Warnw("skipping corrupt message", "session", sessionID, "error", err)
			continue
		}
		out = append(out, msg)
	}
	return out
}

// Clear removes the session and its entry in the owner's index.
func (s *RedisStore) Clear(ctx context.Context, sessionID string) {
	if sessionID == "" {
		return
	}
	owner, err := s.client.Get(ctx, s.ownerKey(sessionID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		s.degraded("clear", sessionID, err)
		return
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.messagesKey(sessionID), s.ownerKey(sessionID))
		if owner != "" {
			pipe.ZRem(ctx, s.sessionsKey(owner), sessionID)
		}
		return nil
	})
	if err != nil {
		s.degraded("clear", sessionID, err)
	}
}

// Sessions returns the user's sessions, most recently used first.
func (s *RedisStore) Sessions(ctx context.Context, userID string) []string {
	if userID == "" {
		return nil
	}
	ids, err := s.client.ZRevRange(ctx, s.sessionsKey(userID), 0, -1).Result()
	if err != nil {
		s.degraded("sessions", userID, err)
		return nil
	}
	return ids
}

// Ping checks Redis connectivity (health check).
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (*RedisStore) degraded(op, id string, err error) {
	logger.Warnw("session memory unavailable", "operation", op, "id", id, "error", err)
}
