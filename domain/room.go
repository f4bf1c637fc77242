package domain

import "time"

type RoomID int64

// Room is a named or ad-hoc group of identities sharing one message stream.
// Invariants: a room has at least one member and the creator is always a member.
type Room struct {
	ID        RoomID
	Name      string
	IsGroup   bool
	Members   []string
	CreatedBy string
	CreatedAt time.Time
}

func (r Room) HasMember(userID string) bool {
	for _, m := range r.Members {
		if m == userID {
			return true
		}
	}
	return r.CreatedBy == userID
}
