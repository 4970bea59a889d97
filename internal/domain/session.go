package domain

import (
	"sync"
	"time"
)

// Session is the per-connection state: who is connected and which room,
// if any, the connection has joined.
type Session struct {
	ID            string
	UserID        string
	Nickname      string
	Roles         []string
	Authenticated bool
	CurrentRoomID string
	CreatedAt     time.Time
	LastActiveAt  time.Time
	mu            sync.RWMutex
}

func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

func (s *Session) Authenticate(id Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UserID = id.UserID
	s.Nickname = id.Nickname
	s.Roles = id.Roles
	s.Authenticated = true
	s.LastActiveAt = time.Now()
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Authenticated
}

func (s *Session) Identity() Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Identity{UserID: s.UserID, Nickname: s.Nickname, Roles: s.Roles}
}

func (s *Session) JoinRoom(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CurrentRoomID = roomID
	s.LastActiveAt = time.Now()
}

// LeaveRoom clears the current room only if it is still roomID, so a late
// leave for an old room cannot drop a newer join.
func (s *Session) LeaveRoom(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CurrentRoomID == roomID {
		s.CurrentRoomID = ""
	}
	s.LastActiveAt = time.Now()
}

func (s *Session) CurrentRoom() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.CurrentRoomID
}

func (s *Session) IsInRoom() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.CurrentRoomID != ""
}

func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActiveAt = time.Now()
}
