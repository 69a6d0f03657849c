package core

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/fileroom/fileroom/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

// Sender is one user's live outbound channel.
// Owned by the adapter; the adapter must Close() it.
type Sender interface {
	// TrySend must not block; a full or dead peer returns an error.
	TrySend(data []byte) error
	Close()
}

// MemberSource yields a snapshot of a room's member ids for fan-out.
type MemberSource interface {
	Members(room domain.RoomCode) []domain.UserID
}

// BroadcastHub maps user ids to their live channels and fans events out to
// room members. Delivery is best-effort: a failed send drops that channel
// and moves on, it never aborts the rest and never reaches the caller.
type BroadcastHub struct {
	mu      sync.RWMutex
	senders map[domain.UserID]Sender
	members MemberSource
}

func NewBroadcastHub(members MemberSource) *BroadcastHub {
	return &BroadcastHub{
		senders: make(map[domain.UserID]Sender),
		members: members,
	}
}

// Register binds the channel for a user, replacing any previous one so the
// same id never gets dual delivery. The previous sender is returned; its
// lifecycle stays with the adapter that created it.
func (h *BroadcastHub) Register(userID domain.UserID, s Sender) Sender {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.senders[userID]
	h.senders[userID] = s
	if prev != nil {
		log.Info().Str("module", "core.hub").Str("user", string(userID)).Msg("channel replaced")
	}
	return prev
}

// Unregister drops the mapping. Idempotent.
func (h *BroadcastHub) Unregister(userID domain.UserID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.senders, userID)
}

// UnregisterSender drops the mapping only while s is still the registered
// channel, so a connection tearing down never evicts its replacement.
func (h *BroadcastHub) UnregisterSender(userID domain.UserID, s Sender) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.senders[userID] == s {
		delete(h.senders, userID)
	}
}

// Registered reports whether the user currently has a live channel.
func (h *BroadcastHub) Registered(userID domain.UserID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.senders[userID]
	return ok
}

// Broadcast marshals the event once and delivers it to every member of the
// room with a registered channel. Dead channels are pruned in place.
func (h *BroadcastHub) Broadcast(room domain.RoomCode, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("module", "core.hub").Msg("event marshal")
		return
	}

	// Snapshot membership and channels before delivering; membership may
	// change while sends are in flight.
	ids := h.members.Members(room)
	h.mu.RLock()
	targets := make(map[domain.UserID]Sender, len(ids))
	for _, id := range ids {
		if s, ok := h.senders[id]; ok {
			targets[id] = s
		}
	}
	h.mu.RUnlock()

	for id, s := range targets {
		if err := s.TrySend(data); err != nil {
			log.Warn().Err(err).Str("module", "core.hub").Str("user", string(id)).Msg("send failed, dropping channel")
			h.UnregisterSender(id, s)
			s.Close()
		}
	}
}

// Send delivers an event to a single user, best-effort.
func (h *BroadcastHub) Send(userID domain.UserID, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("module", "core.hub").Msg("event marshal")
		return
	}
	h.mu.RLock()
	s, ok := h.senders[userID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	if err := s.TrySend(data); err != nil {
		log.Warn().Err(err).Str("module", "core.hub").Str("user", string(userID)).Msg("send failed, dropping channel")
		h.UnregisterSender(userID, s)
		s.Close()
	}
}
