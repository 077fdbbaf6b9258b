package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/platform/logger"
)

// SessionStore keeps short per-session conversation history for prompt
// context. History is best effort: backend failures degrade to empty history
// and are logged, never returned.
type SessionStore interface {
	CreateSession(ctx context.Context) string
	AddExchange(ctx context.Context, sessionID, userMessage, assistantMessage string)
	GetConversationHistory(ctx context.Context, sessionID string) string
	ClearSession(ctx context.Context, sessionID string)
}

// NewSessionStore picks the store backend from SESSION_STORE: "redis" wires
// the Redis store, anything else the in-memory one.
func NewSessionStore(maxHistory int, baseLog *logger.Logger) (SessionStore, error) {
	if strings.EqualFold(strings.TrimSpace(os.Getenv("SESSION_STORE")), "redis") {
		return NewRedisSessionStore(maxHistory, baseLog)
	}
	return NewMemorySessionStore(maxHistory, baseLog), nil
}

type memorySessionStore struct {
	log        *logger.Logger
	maxHistory int

	mu       sync.Mutex
	counter  int
	sessions map[string][]string
}

func NewMemorySessionStore(maxHistory int, baseLog *logger.Logger) SessionStore {
	if maxHistory <= 0 {
		maxHistory = 2
	}
	return &memorySessionStore{
		log:        baseLog.With("service", "MemorySessionStore"),
		maxHistory: maxHistory,
		sessions:   make(map[string][]string),
	}
}

func (s *memorySessionStore) CreateSession(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter++
	sessionID := fmt.Sprintf("session_%d", s.counter)
	s.sessions[sessionID] = nil
	return sessionID
}

func (s *memorySessionStore) AddExchange(ctx context.Context, sessionID, userMessage, assistantMessage string) {
	if sessionID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := append(s.sessions[sessionID],
		"User: "+userMessage,
		"Assistant: "+assistantMessage,
	)
	// Keep the last maxHistory exchanges (two lines each).
	if window := 2 * s.maxHistory; len(lines) > window {
		lines = lines[len(lines)-window:]
	}
	s.sessions[sessionID] = lines
}

func (s *memorySessionStore) GetConversationHistory(ctx context.Context, sessionID string) string {
	if sessionID == "" {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.sessions[sessionID], "\n")
}

func (s *memorySessionStore) ClearSession(ctx context.Context, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

const redisSessionTTL = 24 * time.Hour

type redisSessionStore struct {
	log        *logger.Logger
	rdb        *goredis.Client
	maxHistory int
}

func NewRedisSessionStore(maxHistory int, baseLog *logger.Logger) (SessionStore, error) {
	if maxHistory <= 0 {
		maxHistory = 2
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisSessionStore{
		log:        baseLog.With("service", "RedisSessionStore"),
		rdb:        rdb,
		maxHistory: maxHistory,
	}, nil
}

func (s *redisSessionStore) sessionKey(sessionID string) string {
	return "rag:session:" + sessionID + ":messages"
}

func (s *redisSessionStore) CreateSession(ctx context.Context) string {
	return uuid.NewString()
}

func (s *redisSessionStore) AddExchange(ctx context.Context, sessionID, userMessage, assistantMessage string) {
	if sessionID == "" {
		return
	}
	key := s.sessionKey(sessionID)

	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key, "User: "+userMessage, "Assistant: "+assistantMessage)
	pipe.LTrim(ctx, key, int64(-2*s.maxHistory), -1)
	pipe.Expire(ctx, key, redisSessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn("Session exchange write failed", "session_id", sessionID, "error", err)
	}
}

func (s *redisSessionStore) GetConversationHistory(ctx context.Context, sessionID string) string {
	if sessionID == "" {
		return ""
	}
	lines, err := s.rdb.LRange(ctx, s.sessionKey(sessionID), 0, -1).Result()
	if err != nil {
		s.log.Warn("Session history read failed", "session_id", sessionID, "error", err)
		return ""
	}
	return strings.Join(lines, "\n")
}

func (s *redisSessionStore) ClearSession(ctx context.Context, sessionID string) {
	if sessionID == "" {
		return
	}
	if err := s.rdb.Del(ctx, s.sessionKey(sessionID)).Err(); err != nil {
		s.log.Warn("Session clear failed", "session_id", sessionID, "error", err)
	}
}
