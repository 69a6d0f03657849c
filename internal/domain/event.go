package domain

// Server -> client event kinds carried over the realtime channel.
const (
	EventUsersList      = "users_list"
	EventNewMessage     = "new_message"
	EventUserJoined     = "user_joined"
	EventUserLeft       = "user_left"
	EventUserRenamed    = "user_renamed"
	EventMessageDeleted = "message_deleted"
	EventRoomCleared    = "room_cleared"
)

// UserInfo is the read-only member view shipped in presence events.
type UserInfo struct {
	ID   UserID `json:"id"`
	Name string `json:"name"`
}

type UsersListEvent struct {
	Type  string     `json:"type"`
	Users []UserInfo `json:"users"`
}

type UserJoinedEvent struct {
	Type     string `json:"type"`
	UserID   UserID `json:"user_id"`
	UserName string `json:"user_name"`
}

type UserLeftEvent struct {
	Type     string `json:"type"`
	UserID   UserID `json:"user_id"`
	UserName string `json:"user_name"`
}

type UserRenamedEvent struct {
	Type    string `json:"type"`
	UserID  UserID `json:"user_id"`
	OldName string `json:"old_name"`
	NewName string `json:"new_name"`
}

type MessageDeletedEvent struct {
	Type      string    `json:"type"`
	MessageID MessageID `json:"message_id"`
}

type RoomClearedEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
