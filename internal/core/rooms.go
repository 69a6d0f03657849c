package core

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fileroom/fileroom/internal/domain"
)

type roomEntry struct {
	room         *domain.Room
	messageIDs   []domain.MessageID // arrival order, append-only except deletes
	lastActivity time.Time
}

// RoomRegistry owns room existence and the ordered message-id list per room.
// Message payloads live in the MessageStore; the registry holds references.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomCode]*roomEntry
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{rooms: make(map[domain.RoomCode]*roomEntry)}
}

// GetOrCreate is idempotent; a room springs into existence on first reference.
func (r *RoomRegistry) GetOrCreate(code domain.RoomCode) *domain.Room {
	r.mu.RLock()
	e, ok := r.rooms[code]
	r.mu.RUnlock()
	if ok {
		return e.room
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok = r.rooms[code]; ok {
		return e.room
	}
	now := time.Now()
	e = &roomEntry{
		room:         &domain.Room{Code: code, CreatedAt: now},
		lastActivity: now,
	}
	r.rooms[code] = e
	log.Info().Str("module", "core.rooms").Str("room", string(code)).Msg("room created")
	return e.room
}

// Has reports whether the room exists without creating it.
func (r *RoomRegistry) Has(code domain.RoomCode) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[code]
	return ok
}

// AppendMessage records a message id at the end of the room's list.
// The append is atomic with respect to the room: two racing sends land
// exactly once each, in some consistent order.
func (r *RoomRegistry) AppendMessage(code domain.RoomCode, id domain.MessageID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rooms[code]
	if !ok {
		return domain.ErrRoomNotFound
	}
	e.messageIDs = append(e.messageIDs, id)
	e.lastActivity = time.Now()
	return nil
}

// RemoveMessage detaches an id from the room's list. No-op when either the
// room or the id is absent.
func (r *RoomRegistry) RemoveMessage(code domain.RoomCode, id domain.MessageID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rooms[code]
	if !ok {
		return
	}
	for i, mid := range e.messageIDs {
		if mid == id {
			e.messageIDs = append(e.messageIDs[:i], e.messageIDs[i+1:]...)
			return
		}
	}
}

// ClearMessages empties the room's list and returns how many ids it held.
func (r *RoomRegistry) ClearMessages(code domain.RoomCode) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rooms[code]
	if !ok {
		return 0
	}
	n := len(e.messageIDs)
	e.messageIDs = nil
	e.lastActivity = time.Now()
	return n
}

// MessageIDs returns a snapshot of the room's message ids in arrival order.
func (r *RoomRegistry) MessageIDs(code domain.RoomCode) []domain.MessageID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.rooms[code]
	if !ok {
		return nil
	}
	out := make([]domain.MessageID, len(e.messageIDs))
	copy(out, e.messageIDs)
	return out
}

// SweepIdle drops rooms that hold no messages, have no members per inUse,
// and have been quiet longer than idleAfter. Keeps pathological room churn
// from growing the table without bound; live rooms are never touched.
func (r *RoomRegistry) SweepIdle(now time.Time, idleAfter time.Duration, inUse func(domain.RoomCode) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for code, e := range r.rooms {
		if len(e.messageIDs) > 0 {
			continue
		}
		if now.Sub(e.lastActivity) < idleAfter {
			continue
		}
		if inUse != nil && inUse(code) {
			continue
		}
		delete(r.rooms, code)
		removed++
	}
	if removed > 0 {
		log.Info().Str("module", "core.rooms").Int("removed", removed).Msg("idle rooms swept")
	}
	return removed
}
