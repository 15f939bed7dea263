package realtime

import (
	"sync"

	"relatim-chat/model"
)

// Conn is the transport side of a realtime connection.
type Conn interface {
	ID() string
	Emit(event string, payload interface{}) error
}

type State int

const (
	StateConnecting State = iota
	StateAuthenticated
	StateJoined
	StateActive
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateJoined:
		return "joined"
	case StateActive:
		return "active"
	default:
		return "disconnected"
	}
}

// Session is one realtime connection of an authenticated user.
type Session struct {
	conn Conn
	user *model.User

	mu    sync.Mutex
	state State
}

func (s *Session) ID() string {
	return s.conn.ID()
}

func (s *Session) User() *model.User {
	return s.user
}

func (s *Session) UserID() uint {
	if s.user == nil {
		return 0
	}
	return s.user.ID
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) transition(from, to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return false
	}
	s.state = to
	return true
}

// close moves the session to disconnected and reports the state it left.
func (s *Session) close() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.state
	s.state = StateDisconnected
	return prev
}
