package domain

import (
	"sync"
	"time"
)

// SessionState is the lifecycle of one connection.
type SessionState int

const (
	StateUnauthenticated SessionState = iota
	StateAuthenticated
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is the runtime state bound to one live connection.
type Session struct {
	ID           string
	UserID       string
	Username     string
	Fullname     string
	Email        string
	State        SessionState
	CreatedAt    time.Time
	LastActiveAt time.Time
	mu           sync.RWMutex
}

func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		State:        StateUnauthenticated,
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// Authenticate binds the session to an identity. It succeeds on a fresh
// session or when re-authenticating as the same user; it refuses to switch
// identity and never reopens a closed session. first is true only for the
// transition out of StateUnauthenticated.
func (s *Session) Authenticate(userID, username, fullname, email string) (ok, first bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.State {
	case StateClosed:
		return false, false
	case StateAuthenticated:
		if s.UserID != userID {
			return false, false
		}
		s.LastActiveAt = time.Now()
		return true, false
	}

	s.UserID = userID
	s.Username = username
	s.Fullname = fullname
	s.Email = email
	s.State = StateAuthenticated
	s.LastActiveAt = time.Now()
	return true, true
}

// Close moves the session to StateClosed. It returns the previous state so
// the caller runs teardown once.
func (s *Session) Close() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.State
	s.State = StateClosed
	return prev
}

func (s *Session) GetState() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.State
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.State == StateAuthenticated
}

func (s *Session) GetUserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.UserID
}

func (s *Session) GetUsername() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Username
}

// Identity returns the user id and display name in one read.
func (s *Session) Identity() (userID, username string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.UserID, s.Username
}

func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActiveAt = time.Now()
}

// IdleSince reports how long the session has gone without inbound frames.
func (s *Session) IdleSince(now time.Time) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return now.Sub(s.LastActiveAt)
}
