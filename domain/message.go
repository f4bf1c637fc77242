// This file defines Message records and related rules.
// Messages are immutable once appended; only their read state evolves.
package domain

import "time"

// Message is a durable chat message. At is assigned server-side and is
// strictly increasing within a room. IsRead is true iff ReadBy is non-empty,
// and the sender never appears in ReadBy.
type Message struct {
	ID         int64
	Room       RoomID
	SenderID   string
	SenderName string
	Content    string
	At         time.Time
	IsRead     bool
	ReadBy     []string
}

func (m Message) ReadByUser(userID string) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}
