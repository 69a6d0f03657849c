package domain

import "errors"

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrUserNotFound    = errors.New("user not found")

	// ErrDuplicateID means a freshly generated id collided with a stored
	// one. Random ids make this a programmer error, not a user error.
	ErrDuplicateID = errors.New("duplicate message id")

	ErrEmptyText      = errors.New("empty message text")
	ErrMissingCoords  = errors.New("missing location coordinates")
	ErrInvalidKind    = errors.New("invalid message kind")
	ErrNotFileMessage = errors.New("message carries no file")

	// ErrGone marks content that existed but has expired, so clients can
	// tell "never existed" from "too late".
	ErrGone = errors.New("content expired")
)
