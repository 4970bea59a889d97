package registry

import (
	"sync"

	"github.com/sasachat/sasachat/internal/domain"
)

type roomEntry struct {
	order  []string                      // nicknames in registration order
	byNick map[string]domain.Participant // nickname -> participant
}

type connRef struct {
	roomID   string
	nickname string
}

// MemoryRegistry is the process-local Registry.
type MemoryRegistry struct {
	mu     sync.RWMutex
	rooms  map[string]*roomEntry
	byConn map[string]connRef
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		rooms:  make(map[string]*roomEntry),
		byConn: make(map[string]connRef),
	}
}

func (r *MemoryRegistry) Register(roomID string, p domain.Participant) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ref, ok := r.byConn[p.ConnID]; ok {
		if ref.roomID == roomID && ref.nickname == p.Nickname {
			return false
		}
		r.removeLocked(p.ConnID)
	}

	room, ok := r.rooms[roomID]
	if !ok {
		room = &roomEntry{byNick: make(map[string]domain.Participant)}
		r.rooms[roomID] = room
	}

	if existing, ok := room.byNick[p.Nickname]; ok {
		// Last registered connection wins the nickname.
		delete(r.byConn, existing.ConnID)
		room.byNick[p.Nickname] = p
		r.byConn[p.ConnID] = connRef{roomID: roomID, nickname: p.Nickname}
		return false
	}

	room.order = append(room.order, p.Nickname)
	room.byNick[p.Nickname] = p
	r.byConn[p.ConnID] = connRef{roomID: roomID, nickname: p.Nickname}
	return true
}

func (r *MemoryRegistry) Unregister(connID string) (string, domain.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ref, ok := r.byConn[connID]
	if !ok {
		return "", domain.Participant{}, false
	}
	p := r.removeLocked(connID)
	return ref.roomID, p, true
}

// removeLocked must be called with r.mu held and connID indexed.
func (r *MemoryRegistry) removeLocked(connID string) domain.Participant {
	ref := r.byConn[connID]
	delete(r.byConn, connID)

	room := r.rooms[ref.roomID]
	if room == nil {
		return domain.Participant{}
	}
	p := room.byNick[ref.nickname]
	delete(room.byNick, ref.nickname)
	for i, n := range room.order {
		if n == ref.nickname {
			room.order = append(room.order[:i], room.order[i+1:]...)
			break
		}
	}
	if len(room.order) == 0 {
		delete(r.rooms, ref.roomID)
	}
	return p
}

func (r *MemoryRegistry) ListNicknames(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return []string{}
	}
	out := make([]string, len(room.order))
	copy(out, room.order)
	return out
}

func (r *MemoryRegistry) Participants(roomID string) []domain.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return []domain.Participant{}
	}
	out := make([]domain.Participant, 0, len(room.order))
	for _, n := range room.order {
		out = append(out, room.byNick[n])
	}
	return out
}

func (r *MemoryRegistry) RoomOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ref, ok := r.byConn[connID]
	return ref.roomID, ok
}

func (r *MemoryRegistry) Count(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if room, ok := r.rooms[roomID]; ok {
		return len(room.order)
	}
	return 0
}

func (r *MemoryRegistry) Rooms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		out = append(out, id)
	}
	return out
}

func (r *MemoryRegistry) RemoveRoom(roomID string) []domain.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]domain.Participant, 0, len(room.order))
	for _, n := range room.order {
		p := room.byNick[n]
		delete(r.byConn, p.ConnID)
		out = append(out, p)
	}
	delete(r.rooms, roomID)
	return out
}
