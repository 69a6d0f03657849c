// Package domain contains entities without logic, just meta-data.
package domain

import (
	"crypto/rand"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
)

const MaxUsernameLen = 20

var adjectives = []string{
	"Happy", "Sunny", "Bright", "Swift", "Cool",
	"Smart", "Lucky", "Bold", "Calm", "Free",
}

var nouns = []string{
	"Panda", "Tiger", "Eagle", "Dolphin", "Fox",
	"Bear", "Wolf", "Cat", "Dog", "Lion",
}

type UserID string

type User struct {
	ID       UserID    `json:"id"`
	Name     string    `json:"name"`
	Room     RoomCode  `json:"room"`
	JoinedAt time.Time `json:"joined_at"`
	LastSeen time.Time `json:"last_seen"`
}

// NewUserID mints an opaque identity token. The client holds on to it and
// presents it on later joins; there is no authentication behind it.
func NewUserID() UserID {
	return UserID(uuid.NewString())
}

// NewDisplayName draws an adjective+noun pair, e.g. "SwiftPanda".
func NewDisplayName() string {
	return pick(adjectives) + pick(nouns)
}

// CleanDisplayName trims whitespace and truncates to MaxUsernameLen runes.
// Returns "" for empty or whitespace-only input, which callers treat as
// "no name supplied".
func CleanDisplayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	runes := []rune(name)
	if len(runes) > MaxUsernameLen {
		runes = runes[:MaxUsernameLen]
	}
	return string(runes)
}

func pick(words []string) string {
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(words))))
	if err != nil {
		panic(err)
	}
	return words[idx.Int64()]
}
