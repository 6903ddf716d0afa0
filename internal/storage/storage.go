// Package storage はサーバー内で進行中のデザインセッションを保持します。
package storage

import (
	"sync"

	"github.com/shouni/go-tattoo-kit/pkg/design"
)

// SessionStore はセッション ID をキーにしたメモリ上のレジストリなのだ。
type SessionStore struct {
	sessions map[string]*design.Session
	mu       sync.RWMutex
}

func New() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*design.Session),
	}
}

func (s *SessionStore) Get(sessionID string) (*design.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, exists := s.sessions[sessionID]
	return session, exists
}

func (s *SessionStore) Set(session *design.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID()] = session
}

// Snapshots は全セッションの現在の状態を返すのだ。
func (s *SessionStore) Snapshots() []design.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]design.Snapshot, 0, len(s.sessions))
	for _, session := range s.sessions {
		result = append(result, session.Snapshot())
	}
	return result
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}
