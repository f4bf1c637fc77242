package event

import (
	"time"

	"chat-core/domain"
)

// DomainEvent is anything the hub can fan out to the sessions of a room.
type DomainEvent interface {
	RoomID() domain.RoomID
}

// MessagePosted is published after a message has been durably appended.
type MessagePosted struct {
	ID         int64
	Room       int64
	SenderID   string
	SenderName string
	Content    string
	At         time.Time
}

func (e MessagePosted) RoomID() domain.RoomID { return domain.RoomID(e.Room) }

// TypingChanged carries an ephemeral typing signal. Never persisted.
type TypingChanged struct {
	Room     int64
	UserID   string
	Username string
	IsTyping bool
}

func (e TypingChanged) RoomID() domain.RoomID { return domain.RoomID(e.Room) }

// MessageRead is published after a reader has been added to a message's
// read-by set.
type MessageRead struct {
	Room     int64
	Message  int64
	UserID   string
	Username string
}

func (e MessageRead) RoomID() domain.RoomID { return domain.RoomID(e.Room) }
