package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
)

// SessionStore keeps one session per terminal.
type SessionStore interface {
	// Load returns a fresh welcome session when the terminal has none, and
	// ErrSessionCorrupt when the stored value cannot be decoded.
	Load(ctx context.Context, terminalID string) (Session, error)
	Save(ctx context.Context, terminalID string, s Session) error
	Delete(ctx context.Context, terminalID string) error
}

type RedisSessionStore struct {
	redis *redis.Client
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{redis: client}
}

func sessionKey(terminalID string) string {
	return fmt.Sprintf("atm:session:%s", terminalID)
}

func (s *RedisSessionStore) Load(ctx context.Context, terminalID string) (Session, error) {
	data, err := s.redis.Get(ctx, sessionKey(terminalID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return NewSession(), nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	return session, nil
}

// Save stores the session without expiry; sessions end only on eject, cancel or reset.
func (s *RedisSessionStore) Save(ctx context.Context, terminalID string, session Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(terminalID), data, 0).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, terminalID string) error {
	return s.redis.Del(ctx, sessionKey(terminalID)).Err()
}

type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]Session)}
}

func (s *MemorySessionStore) Load(ctx context.Context, terminalID string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[terminalID]; ok {
		return session, nil
	}
	return NewSession(), nil
}

func (s *MemorySessionStore) Save(ctx context.Context, terminalID string, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[terminalID] = session
	return nil
}

func (s *MemorySessionStore) Delete(ctx context.Context, terminalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, terminalID)
	return nil
}
