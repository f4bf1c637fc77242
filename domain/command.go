package domain

// Command is an inbound intent scoped to a single room.
type Command interface {
	RoomID() RoomID
}

type PostMessageCommand struct {
	Room    int64
	Sender  Identity
	Content string
}

func (c PostMessageCommand) RoomID() RoomID { return RoomID(c.Room) }

// TypingCommand is ephemeral; it is broadcast but never persisted.
type TypingCommand struct {
	Room     int64
	Sender   Identity
	IsTyping bool
}

func (c TypingCommand) RoomID() RoomID { return RoomID(c.Room) }

type MarkReadCommand struct {
	Room    int64
	Reader  Identity
	Message int64
}

func (c MarkReadCommand) RoomID() RoomID { return RoomID(c.Room) }

type GetMessagesCommand struct {
	Room   int64
	Cursor *string
}

func (c GetMessagesCommand) RoomID() RoomID { return RoomID(c.Room) }
