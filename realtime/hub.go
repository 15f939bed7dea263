package realtime

import (
	"fmt"
	"sort"
	"sync"
)

func ChatRoom(chatID uint) string {
	return fmt.Sprintf("chat_%d", chatID)
}

func UserRoom(userID uint) string {
	return fmt.Sprintf("user_%d", userID)
}

type membership struct {
	session *Session
	rooms   map[string]struct{}
}

// Hub maps room keys to the sessions joined to them. It is the only
// registry of live connections on this node.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*Session
	conns map[string]*membership
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[string]*Session),
		conns: make(map[string]*membership),
	}
}

func (h *Hub) Join(room string, s *Session) {
	id := s.ID()

	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Session)
		h.rooms[room] = members
	}
	members[id] = s

	m, ok := h.conns[id]
	if !ok {
		m = &membership{session: s, rooms: make(map[string]struct{})}
		h.conns[id] = m
	}
	m.rooms[room] = struct{}{}
}

// Remove drops s from every room and returns the rooms it was in, sorted.
func (h *Hub) Remove(s *Session) []string {
	id := s.ID()

	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.conns[id]
	if !ok {
		return nil
	}

	rooms := make([]string, 0, len(m.rooms))
	for room := range m.rooms {
		rooms = append(rooms, room)
		delete(h.rooms[room], id)
		if len(h.rooms[room]) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(h.conns, id)

	sort.Strings(rooms)
	return rooms
}

func (h *Hub) InRoom(room string, s *Session) bool {
	h.mu.RLock()
	_, ok := h.rooms[room][s.ID()]
	h.mu.RUnlock()
	return ok
}

// Members returns a snapshot of the sessions in room.
func (h *Hub) Members(room string) []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := make([]*Session, 0, len(h.rooms[room]))
	for _, s := range h.rooms[room] {
		members = append(members, s)
	}
	return members
}

// Sessions returns a snapshot of every joined session.
func (h *Hub) Sessions() []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sessions := make([]*Session, 0, len(h.conns))
	for _, m := range h.conns {
		sessions = append(sessions, m.session)
	}
	return sessions
}

func (h *Hub) Len() int {
	h.mu.RLock()
	n := len(h.conns)
	h.mu.RUnlock()
	return n
}
