package domain

import (
	"crypto/rand"
	"math/big"
	"time"
)

// RoomCodeAlphabet excludes 0/O/1/I so codes survive being read aloud or
// typed from a phone screen.
const (
	RoomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	RoomCodeLen      = 6
)

type RoomCode string

type Room struct {
	Code      RoomCode  `json:"code"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRoomCode draws a fresh 6-char code from the restricted alphabet.
func NewRoomCode() RoomCode {
	buf := make([]byte, RoomCodeLen)
	n := big.NewInt(int64(len(RoomCodeAlphabet)))
	for i := range buf {
		idx, err := rand.Int(rand.Reader, n)
		if err != nil {
			// crypto/rand fails only when the platform entropy source is broken
			panic(err)
		}
		buf[i] = RoomCodeAlphabet[idx.Int64()]
	}
	return RoomCode(buf)
}
