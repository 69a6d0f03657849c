package core

import (
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set"
	"github.com/rs/zerolog/log"

	"github.com/fileroom/fileroom/internal/domain"
)

// PresenceTracker owns user records and per-room membership. A user is
// "active" while their last activity is within the timeout; SweepTimeouts
// is the only path that removes membership for inactivity.
type PresenceTracker struct {
	mu      sync.RWMutex
	users   map[domain.UserID]*domain.User
	members map[domain.RoomCode]mapset.Set // room -> set of domain.UserID
	timeout time.Duration
}

func NewPresenceTracker(timeout time.Duration) *PresenceTracker {
	return &PresenceTracker{
		users:   make(map[domain.UserID]*domain.User),
		members: make(map[domain.RoomCode]mapset.Set),
		timeout: timeout,
	}
}

// JoinResult reports what Join did so the caller can pick the broadcast.
type JoinResult struct {
	UserID  domain.UserID
	Name    string
	OldName string
	IsNew   bool
	Renamed bool
}

// Join refreshes a known identity or mints a new one, and records room
// membership either way. An empty or whitespace-only rename is ignored.
func (p *PresenceTracker) Join(room domain.RoomCode, userID domain.UserID, name string) JoinResult {
	now := time.Now()
	name = domain.CleanDisplayName(name)

	p.mu.Lock()
	defer p.mu.Unlock()

	if u, ok := p.users[userID]; userID != "" && ok {
		u.LastSeen = now
		u.Room = room
		res := JoinResult{UserID: u.ID, Name: u.Name}
		if name != "" && name != u.Name {
			res.OldName = u.Name
			u.Name = name
			res.Name = name
			res.Renamed = true
			log.Info().Str("module", "core.presence").Str("user", string(u.ID)).Str("name", name).Msg("renamed")
		}
		p.memberSet(room).Add(u.ID)
		return res
	}

	if name == "" {
		name = domain.NewDisplayName()
	}
	u := &domain.User{
		ID:       domain.NewUserID(),
		Name:     name,
		Room:     room,
		JoinedAt: now,
		LastSeen: now,
	}
	p.users[u.ID] = u
	p.memberSet(room).Add(u.ID)
	log.Info().Str("module", "core.presence").Str("user", string(u.ID)).Str("room", string(room)).Msg("new user joined")
	return JoinResult{UserID: u.ID, Name: u.Name, IsNew: true}
}

// Heartbeat refreshes last-seen. Unknown users are a silent no-op; callers
// must treat absence as non-fatal.
func (p *PresenceTracker) Heartbeat(userID domain.UserID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.users[userID]
	if !ok {
		return false
	}
	u.LastSeen = time.Now()
	return true
}

// NameOf returns the current display name for a user.
func (p *PresenceTracker) NameOf(userID domain.UserID) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	u, ok := p.users[userID]
	if !ok {
		return "", false
	}
	return u.Name, true
}

// ActiveUsers returns room members whose last activity is within the timeout.
func (p *PresenceTracker) ActiveUsers(room domain.RoomCode, now time.Time) []domain.UserInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()

	set, ok := p.members[room]
	if !ok {
		return nil
	}
	out := make([]domain.UserInfo, 0, set.Cardinality())
	for _, v := range set.ToSlice() {
		id := v.(domain.UserID)
		u, ok := p.users[id]
		if !ok {
			continue
		}
		if now.Sub(u.LastSeen) < p.timeout {
			out = append(out, domain.UserInfo{ID: u.ID, Name: u.Name})
		}
	}
	return out
}

// Members returns a snapshot of every member id of the room, active or not.
// Broadcast iterates this snapshot, never the live set.
func (p *PresenceTracker) Members(room domain.RoomCode) []domain.UserID {
	p.mu.RLock()
	defer p.mu.RUnlock()

	set, ok := p.members[room]
	if !ok {
		return nil
	}
	out := make([]domain.UserID, 0, set.Cardinality())
	for _, v := range set.ToSlice() {
		out = append(out, v.(domain.UserID))
	}
	return out
}

// HasMembers reports whether any user is still recorded as a room member.
func (p *PresenceTracker) HasMembers(room domain.RoomCode) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	set, ok := p.members[room]
	return ok && set.Cardinality() > 0
}

// Eviction records one user timed out of one room.
type Eviction struct {
	Room   domain.RoomCode
	UserID domain.UserID
	Name   string
}

// SweepTimeouts removes membership for every user whose last activity is
// past the timeout and returns one eviction record each, so the caller can
// broadcast exactly one departure per timeout event. Evicted user records
// are dropped; a returning client gets a fresh identity.
func (p *PresenceTracker) SweepTimeouts(now time.Time) []Eviction {
	p.mu.Lock()
	defer p.mu.Unlock()

	var evicted []Eviction
	for room, set := range p.members {
		for _, v := range set.ToSlice() {
			id := v.(domain.UserID)
			u, ok := p.users[id]
			if !ok {
				set.Remove(id)
				continue
			}
			if now.Sub(u.LastSeen) <= p.timeout {
				continue
			}
			set.Remove(id)
			delete(p.users, id)
			evicted = append(evicted, Eviction{Room: room, UserID: id, Name: u.Name})
		}
		if set.Cardinality() == 0 {
			delete(p.members, room)
		}
	}
	if len(evicted) > 0 {
		log.Info().Str("module", "core.presence").Int("evicted", len(evicted)).Msg("timed-out users swept")
	}
	return evicted
}

// memberSet must be called with the write lock held.
func (p *PresenceTracker) memberSet(room domain.RoomCode) mapset.Set {
	set, ok := p.members[room]
	if !ok {
		set = mapset.NewThreadUnsafeSet()
		p.members[room] = set
	}
	return set
}
