package core

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fileroom/fileroom/internal/domain"
)

// BlobDeleter is the slice of the blob store the expiry reaper needs.
type BlobDeleter interface {
	Delete(ctx context.Context, key string) error
}

// ExpiryReaper periodically purges expired messages and their blobs.
// Reclamation is silent: nothing is broadcast, readers discover absence
// through room-data queries.
type ExpiryReaper struct {
	Store    *MessageStore
	Rooms    *RoomRegistry
	Presence *PresenceTracker
	Blobs    BlobDeleter

	Interval      time.Duration
	RoomIdleAfter time.Duration
}

func (r *ExpiryReaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	log.Info().Str("module", "core.reaper").Dur("interval", r.Interval).Msg("expiry reaper started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "core.reaper").Msg("expiry reaper stopped")
			return
		case <-ticker.C:
			r.cycle(ctx, time.Now())
		}
	}
}

func (r *ExpiryReaper) cycle(ctx context.Context, now time.Time) {
	// A panicking cycle must not kill the loop; the next tick proceeds.
	defer func() {
		if v := recover(); v != nil {
			log.Error().Str("module", "core.reaper").Any("panic", v).Msg("expiry cycle panicked")
		}
	}()

	expired := r.Store.ExpireBatch(now)
	for _, m := range expired {
		if m.IsFile() {
			// Best-effort: no lock is held here, a failed delete is
			// logged and never retried.
			if err := r.Blobs.Delete(ctx, m.StoredName); err != nil {
				log.Error().Err(err).Str("module", "core.reaper").Str("blob", m.StoredName).Msg("blob delete failed")
			}
		}
		r.Rooms.RemoveMessage(m.Room, m.ID)
	}
	if len(expired) > 0 {
		log.Info().Str("module", "core.reaper").Int("expired", len(expired)).Msg("expired messages purged")
	}

	if r.RoomIdleAfter > 0 {
		r.Rooms.SweepIdle(now, r.RoomIdleAfter, r.Presence.HasMembers)
	}
}

// PresenceReaper periodically evicts timed-out users and announces each
// departure to the room.
type PresenceReaper struct {
	Presence *PresenceTracker
	Hub      *BroadcastHub

	Interval time.Duration
}

func (r *PresenceReaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	log.Info().Str("module", "core.reaper").Dur("interval", r.Interval).Msg("presence reaper started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "core.reaper").Msg("presence reaper stopped")
			return
		case <-ticker.C:
			r.cycle(time.Now())
		}
	}
}

func (r *PresenceReaper) cycle(now time.Time) {
	defer func() {
		if v := recover(); v != nil {
			log.Error().Str("module", "core.reaper").Any("panic", v).Msg("presence cycle panicked")
		}
	}()

	for _, ev := range r.Presence.SweepTimeouts(now) {
		r.Hub.Broadcast(ev.Room, domain.UserLeftEvent{
			Type:     domain.EventUserLeft,
			UserID:   ev.UserID,
			UserName: ev.Name,
		})
	}
}
