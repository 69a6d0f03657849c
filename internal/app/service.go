// Package app wires the core components into the operations the transport
// adapters call. Each operation mutates the tables first, then hands the
// resulting event to the hub; broadcast failures never reach the caller.
package app

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fileroom/fileroom/internal/core"
	"github.com/fileroom/fileroom/internal/domain"
	"github.com/fileroom/fileroom/internal/storage"
)

// AnonymousName is the username snapshot for senders with no identity.
const AnonymousName = "Anonymous"

type Service struct {
	Rooms    *core.RoomRegistry
	Presence *core.PresenceTracker
	Store    *core.MessageStore
	Hub      *core.BroadcastHub
	Blobs    storage.Store

	TTL           time.Duration
	MaxUploadSize int64
}

// Join creates the room on first reference, refreshes or mints the user's
// identity, and announces the join or rename to the room.
func (s *Service) Join(room domain.RoomCode, userID domain.UserID, name string) core.JoinResult {
	s.Rooms.GetOrCreate(room)
	res := s.Presence.Join(room, userID, name)

	switch {
	case res.IsNew:
		s.Hub.Broadcast(room, domain.UserJoinedEvent{
			Type:     domain.EventUserJoined,
			UserID:   res.UserID,
			UserName: res.Name,
		})
	case res.Renamed:
		s.Hub.Broadcast(room, domain.UserRenamedEvent{
			Type:    domain.EventUserRenamed,
			UserID:  res.UserID,
			OldName: res.OldName,
			NewName: res.Name,
		})
	}
	return res
}

// SendText appends a text message. Validation happens before any mutation:
// a rejected send leaves no trace.
func (s *Service) SendText(room domain.RoomCode, userID domain.UserID, text string) (domain.MessageID, error) {
	if !s.Rooms.Has(room) {
		return "", domain.ErrRoomNotFound
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.ErrEmptyText
	}

	m := s.newMessage(room, userID, domain.KindText)
	m.Text = text
	return s.appendAndAnnounce(m)
}

// SendLocation appends a location message. Both coordinates are required.
func (s *Service) SendLocation(room domain.RoomCode, userID domain.UserID, lat, lng *float64) (domain.MessageID, error) {
	if !s.Rooms.Has(room) {
		return "", domain.ErrRoomNotFound
	}
	if lat == nil || lng == nil {
		return "", domain.ErrMissingCoords
	}

	m := s.newMessage(room, userID, domain.KindLocation)
	m.Latitude = *lat
	m.Longitude = *lng
	return s.appendAndAnnounce(m)
}

// Upload is one incoming file of a batch.
type Upload struct {
	Name    string
	Size    int64
	Content io.Reader
}

type AcceptedFile struct {
	MessageID domain.MessageID `json:"id"`
	Name      string           `json:"name"`
}

type UploadResult struct {
	Count    int            `json:"count"`
	Accepted []AcceptedFile `json:"files"`
}

// UploadFiles stores a batch of file/image/voice messages. Oversized or
// broken files are skipped, never failing the batch; each accepted file
// gets its own message and broadcast.
func (s *Service) UploadFiles(ctx context.Context, room domain.RoomCode, userID domain.UserID, kind domain.MessageKind, files []Upload) (UploadResult, error) {
	if !domain.ValidUploadKind(kind) {
		return UploadResult{}, domain.ErrInvalidKind
	}
	if !s.Rooms.Has(room) {
		return UploadResult{}, domain.ErrRoomNotFound
	}

	var res UploadResult
	for _, f := range files {
		if f.Name == "" {
			continue
		}
		if f.Size > s.MaxUploadSize {
			log.Info().Str("module", "app.service").Str("file", f.Name).Int64("size", f.Size).Msg("file over size ceiling, skipped")
			continue
		}

		m := s.newMessage(room, userID, kind)
		m.OriginalName = filepath.Base(f.Name)
		m.StoredName = fmt.Sprintf("%s_%s", m.ID, m.OriginalName)

		// Blob I/O happens with no table lock held.
		size, err := s.Blobs.Save(ctx, m.StoredName, io.LimitReader(f.Content, s.MaxUploadSize+1))
		if err != nil {
			log.Error().Err(err).Str("module", "app.service").Str("file", f.Name).Msg("blob save failed, file skipped")
			continue
		}
		if size > s.MaxUploadSize {
			// Declared size lied; reclaim the partial blob and skip.
			_ = s.Blobs.Delete(ctx, m.StoredName)
			log.Info().Str("module", "app.service").Str("file", f.Name).Msg("file over size ceiling, skipped")
			continue
		}
		m.SizeBytes = size

		if _, err := s.appendAndAnnounce(m); err != nil {
			_ = s.Blobs.Delete(ctx, m.StoredName)
			log.Error().Err(err).Str("module", "app.service").Str("file", f.Name).Msg("file message append failed")
			continue
		}
		res.Count++
		res.Accepted = append(res.Accepted, AcceptedFile{MessageID: m.ID, Name: m.OriginalName})
	}
	return res, nil
}

// DeleteMessage removes one message, requesting blob deletion first for
// file payloads. Deleting twice yields ErrMessageNotFound the second time;
// the blob is never double-freed.
func (s *Service) DeleteMessage(ctx context.Context, id domain.MessageID) error {
	m, err := s.Store.Get(id)
	if err != nil {
		return err
	}

	if m.IsFile() {
		if err := s.Blobs.Delete(ctx, m.StoredName); err != nil {
			log.Error().Err(err).Str("module", "app.service").Str("blob", m.StoredName).Msg("blob delete failed")
		}
	}
	s.Store.Delete(id)
	s.Rooms.RemoveMessage(m.Room, id)

	s.Hub.Broadcast(m.Room, domain.MessageDeletedEvent{
		Type:      domain.EventMessageDeleted,
		MessageID: id,
	})
	return nil
}

// ClearRoom deletes every message in the room, blobs included, and returns
// how many records were removed.
func (s *Service) ClearRoom(ctx context.Context, room domain.RoomCode) (int, error) {
	if !s.Rooms.Has(room) {
		return 0, domain.ErrRoomNotFound
	}

	count := 0
	for _, id := range s.Rooms.MessageIDs(room) {
		m, err := s.Store.Get(id)
		if err != nil {
			continue
		}
		if m.IsFile() {
			if err := s.Blobs.Delete(ctx, m.StoredName); err != nil {
				log.Error().Err(err).Str("module", "app.service").Str("blob", m.StoredName).Msg("blob delete failed")
			}
		}
		s.Store.Delete(id)
		count++
	}
	s.Rooms.ClearMessages(room)

	s.Hub.Broadcast(room, domain.RoomClearedEvent{
		Type:    domain.EventRoomCleared,
		Message: "All messages deleted",
	})
	return count, nil
}

// Data returns the room's visible messages with derived fields, plus its
// active users. Unknown rooms yield empty state, not an error.
func (s *Service) Data(room domain.RoomCode, now time.Time) RoomData {
	data := RoomData{
		Messages: []MessageView{},
		Users:    []domain.UserInfo{},
	}
	for _, id := range s.Rooms.MessageIDs(room) {
		m, err := s.Store.Get(id)
		if err != nil || !m.Visible(now) {
			continue
		}
		data.Messages = append(data.Messages, viewOf(m, now))
	}
	if users := s.Presence.ActiveUsers(room, now); users != nil {
		data.Users = users
	}
	return data
}

// DownloadMeta describes the blob behind a file message.
type DownloadMeta struct {
	Name string
	Size int64
}

// Download opens the blob behind a file message. Expired content returns
// ErrGone so clients can tell it apart from "never existed".
func (s *Service) Download(ctx context.Context, id domain.MessageID) (DownloadMeta, io.ReadCloser, error) {
	m, err := s.Store.Get(id)
	if err != nil {
		return DownloadMeta{}, nil, err
	}
	if !m.IsFile() {
		return DownloadMeta{}, nil, domain.ErrNotFileMessage
	}
	if !m.Visible(time.Now()) {
		return DownloadMeta{}, nil, domain.ErrGone
	}

	rc, err := s.Blobs.Get(ctx, m.StoredName)
	if err != nil {
		return DownloadMeta{}, nil, err
	}
	return DownloadMeta{Name: m.OriginalName, Size: m.SizeBytes}, rc, nil
}

// Heartbeat refreshes the user's last-seen time; unknown ids are ignored.
func (s *Service) Heartbeat(userID domain.UserID) bool {
	return s.Presence.Heartbeat(userID)
}

// UsersList builds the one-shot presence snapshot sent on connect.
func (s *Service) UsersList(room domain.RoomCode, now time.Time) domain.UsersListEvent {
	ev := domain.UsersListEvent{Type: domain.EventUsersList, Users: []domain.UserInfo{}}
	if users := s.Presence.ActiveUsers(room, now); users != nil {
		ev.Users = users
	}
	return ev
}

func (s *Service) newMessage(room domain.RoomCode, userID domain.UserID, kind domain.MessageKind) *domain.Message {
	now := time.Now()
	username := AnonymousName
	if name, ok := s.Presence.NameOf(userID); ok {
		username = name
		s.Presence.Heartbeat(userID)
	}
	return &domain.Message{
		ID:        domain.NewMessageID(),
		Kind:      kind,
		Room:      room,
		UserID:    userID,
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(s.TTL),
	}
}

// appendAndAnnounce stores the message, attaches it to its room, and fans
// the new_message event out. A failed room append rolls the record back so
// nothing is ever half-applied.
func (s *Service) appendAndAnnounce(m *domain.Message) (domain.MessageID, error) {
	if err := s.Store.Put(m); err != nil {
		return "", err
	}
	if err := s.Rooms.AppendMessage(m.Room, m.ID); err != nil {
		s.Store.Delete(m.ID)
		return "", err
	}
	s.Hub.Broadcast(m.Room, NewMessageEvent{
		Type:    domain.EventNewMessage,
		Message: viewOf(m, m.CreatedAt),
	})
	return m.ID, nil
}
