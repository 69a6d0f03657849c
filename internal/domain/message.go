package domain

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

type MessageKind string

const (
	KindText     MessageKind = "text"
	KindLocation MessageKind = "location"
	KindFile     MessageKind = "file"
	KindImage    MessageKind = "image"
	KindVoice    MessageKind = "voice"
)

// ValidUploadKind reports whether k names a blob-carrying message kind.
func ValidUploadKind(k MessageKind) bool {
	switch k {
	case KindFile, KindImage, KindVoice:
		return true
	}
	return false
}

type MessageID string

// Message is a tagged union over text/location/file payloads. Only the
// fields matching Kind are meaningful.
type Message struct {
	ID        MessageID   `json:"id"`
	Kind      MessageKind `json:"kind"`
	Room      RoomCode    `json:"room"`
	UserID    UserID      `json:"user_id"`
	Username  string      `json:"username"` // snapshot at send time
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt time.Time   `json:"expires_at"`

	// text
	Text string `json:"text,omitempty"`

	// location
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`

	// file | image | voice
	OriginalName string `json:"original_name,omitempty"`
	StoredName   string `json:"stored_name,omitempty"` // blob store key
	SizeBytes    int64  `json:"size_bytes,omitempty"`
}

// Visible reports whether the message may still be shown. Expired messages
// are inert; the reaper purges them, readers just skip them.
func (m *Message) Visible(now time.Time) bool {
	return now.Before(m.ExpiresAt)
}

// IsFile reports whether the message references blob-store content.
func (m *Message) IsFile() bool {
	return ValidUploadKind(m.Kind)
}

// Remaining returns whole seconds until expiry, never negative.
func (m *Message) Remaining(now time.Time) int {
	d := m.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return int(d.Seconds())
}

// NewMessageID returns a short url-safe random token.
func NewMessageID() MessageID {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return MessageID(base64.RawURLEncoding.EncodeToString(buf))
}
