package core

import (
	"sync"
	"time"

	"github.com/fileroom/fileroom/internal/domain"
)

// MessageStore owns message payloads keyed by id. Rooms hold only ids;
// blob bytes live in the external store, referenced by StoredName.
type MessageStore struct {
	mu       sync.RWMutex
	messages map[domain.MessageID]*domain.Message
}

func NewMessageStore() *MessageStore {
	return &MessageStore{messages: make(map[domain.MessageID]*domain.Message)}
}

func (s *MessageStore) Put(m *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[m.ID]; ok {
		return domain.ErrDuplicateID
	}
	s.messages[m.ID] = m
	return nil
}

func (s *MessageStore) Get(id domain.MessageID) (*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, domain.ErrMessageNotFound
	}
	return m, nil
}

// Delete removes the record unconditionally and is idempotent. The caller
// requests blob deletion first when the message carries a file payload.
func (s *MessageStore) Delete(id domain.MessageID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, id)
}

// Len reports how many records are held, expired or not.
func (s *MessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// ExpireBatch removes every message with ExpiresAt <= now in one critical
// section and returns them. The caller handles blob cleanup and detaches
// the ids from their rooms.
func (s *MessageStore) ExpireBatch(now time.Time) []*domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []*domain.Message
	for id, m := range s.messages {
		if !m.Visible(now) {
			expired = append(expired, m)
			delete(s.messages, id)
		}
	}
	return expired
}
