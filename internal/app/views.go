package app

import (
	"math"
	"time"

	"github.com/fileroom/fileroom/internal/core"
	"github.com/fileroom/fileroom/internal/domain"
)

// MessageView is a message with the derived fields clients render:
// wall-clock send time, remaining TTL, extracted links, size in MiB.
type MessageView struct {
	ID            domain.MessageID   `json:"id"`
	Type          domain.MessageKind `json:"type"`
	Username      string             `json:"username"`
	Time          string             `json:"time"`
	TimeRemaining int                `json:"time_remaining"`

	Text  string   `json:"text,omitempty"`
	Links []string `json:"links,omitempty"`

	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	Filename string  `json:"filename,omitempty"`
	SizeMB   float64 `json:"size_mb,omitempty"`
}

type NewMessageEvent struct {
	Type    string      `json:"type"`
	Message MessageView `json:"message"`
}

// RoomData is the full visible state of a room at one instant.
type RoomData struct {
	Messages []MessageView     `json:"messages"`
	Users    []domain.UserInfo `json:"users"`
}

func viewOf(m *domain.Message, now time.Time) MessageView {
	v := MessageView{
		ID:            m.ID,
		Type:          m.Kind,
		Username:      m.Username,
		Time:          m.CreatedAt.Format("15:04"),
		TimeRemaining: m.Remaining(now),
	}
	switch m.Kind {
	case domain.KindText:
		v.Text = m.Text
		v.Links = core.ExtractLinks(m.Text)
	case domain.KindLocation:
		lat, lng := m.Latitude, m.Longitude
		v.Latitude = &lat
		v.Longitude = &lng
	default:
		v.Filename = m.OriginalName
		v.SizeMB = roundMB(m.SizeBytes)
	}
	return v
}

func roundMB(size int64) float64 {
	return math.Round(float64(size)/(1024*1024)*100) / 100
}
