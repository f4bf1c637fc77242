package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"chat-core/contract"
	"chat-core/domain"
	"chat-core/domain/event"
	"chat-core/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

type recordingHub struct {
	published   []event.DomainEvent
	subscribed  []string
	unsubscribd []string
}

func (h *recordingHub) Subscribe(_ domain.RoomID, sessionID string, _ contract.EventSink) {
	h.subscribed = append(h.subscribed, sessionID)
}

func (h *recordingHub) Unsubscribe(_ domain.RoomID, sessionID string) {
	h.unsubscribd = append(h.unsubscribd, sessionID)
}

func (h *recordingHub) Publish(_ context.Context, _ domain.RoomID, e event.DomainEvent) {
	h.published = append(h.published, e)
}

type failingMessages struct {
	repositories.IMessageRepository
}

func (failingMessages) Append(int64, domain.Identity, string) (domain.Message, error) {
	return domain.Message{}, errors.New("disk full")
}

type chatFixture struct {
	service  *ChatService
	hub      *recordingHub
	messages *repositories.MessageRepository
}

func newChatFixture(t *testing.T) chatFixture {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := slog.New(slog.DiscardHandler)
	messages, err := repositories.NewMessageRepository(db, logger, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = messages.Close() })

	hub := &recordingHub{}
	return chatFixture{
		service:  NewChatService(logger, messages, hub, nil),
		hub:      hub,
		messages: messages,
	}
}

var (
	alice = domain.Identity{ID: "id-alice", Username: "alice"}
	bob   = domain.Identity{ID: "id-bob", Username: "bob"}
)

func Test_PostMessage_Persists_Then_Broadcasts(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)

	// When a message is posted
	message, err := f.service.PostMessage(context.Background(), domain.PostMessageCommand{
		Room: 1, Sender: alice, Content: "hello",
	})
	req.NoError(err)
	req.Positive(message.ID)

	// Then it is durable before any subscriber hears about it
	stored, err := f.messages.GetByID(message.ID)
	req.NoError(err)
	req.Equal("hello", stored.Content)

	req.Len(f.hub.published, 1)
	posted, ok := f.hub.published[0].(event.MessagePosted)
	req.True(ok)
	req.Equal(message.ID, posted.ID)
	req.Equal(alice.ID, posted.SenderID)
	req.Equal(alice.Username, posted.SenderName)
	req.Equal(message.At, posted.At)
}

func Test_PostMessage_Store_Failure_Broadcasts_Nothing(t *testing.T) {
	req := require.New(t)
	hub := &recordingHub{}
	service := NewChatService(slog.New(slog.DiscardHandler), failingMessages{}, hub, nil)

	// When persistence fails
	_, err := service.PostMessage(context.Background(), domain.PostMessageCommand{
		Room: 1, Sender: alice, Content: "lost",
	})

	// Then the error goes back to the sender alone
	req.Error(err)
	req.Empty(hub.published)
}

func Test_Typing_Is_Broadcast_Not_Persisted(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)

	f.service.Typing(context.Background(), domain.TypingCommand{
		Room: 1, Sender: alice, IsTyping: true,
	})

	req.Len(f.hub.published, 1)
	typing, ok := f.hub.published[0].(event.TypingChanged)
	req.True(ok)
	req.True(typing.IsTyping)
	req.Equal(alice.Username, typing.Username)

	// Nothing reached the store
	stored, _, err := f.messages.GetMessages(1, nil)
	req.NoError(err)
	req.Empty(stored)
}

func Test_MarkRead_Broadcasts_Receipt(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)

	message, err := f.service.PostMessage(context.Background(), domain.PostMessageCommand{
		Room: 1, Sender: alice, Content: "read me",
	})
	req.NoError(err)

	// When another participant marks it read
	err = f.service.MarkRead(context.Background(), domain.MarkReadCommand{
		Room: 1, Reader: bob, Message: message.ID,
	})
	req.NoError(err)

	// Then the state is durable and the receipt is broadcast
	stored, err := f.messages.GetByID(message.ID)
	req.NoError(err)
	req.True(stored.ReadByUser(bob.ID))

	req.Len(f.hub.published, 2)
	read, ok := f.hub.published[1].(event.MessageRead)
	req.True(ok)
	req.Equal(message.ID, read.Message)
	req.Equal(bob.ID, read.UserID)
}

func Test_MarkRead_By_Sender_Is_A_Silent_Noop(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)

	message, err := f.service.PostMessage(context.Background(), domain.PostMessageCommand{
		Room: 1, Sender: alice, Content: "mine",
	})
	req.NoError(err)

	// When the sender marks their own message
	err = f.service.MarkRead(context.Background(), domain.MarkReadCommand{
		Room: 1, Reader: alice, Message: message.ID,
	})

	// Then no error, no state change, no event
	req.NoError(err)
	stored, err := f.messages.GetByID(message.ID)
	req.NoError(err)
	req.False(stored.IsRead)
	req.Len(f.hub.published, 1) // only the MessagePosted from setup
}

func Test_MarkRead_Unknown_Message(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)

	err := f.service.MarkRead(context.Background(), domain.MarkReadCommand{
		Room: 1, Reader: bob, Message: 404,
	})
	req.Error(err)
	req.Empty(f.hub.published)
}

func Test_JoinRoom_And_LeaveRoom_Delegate_To_Hub(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)

	f.service.JoinRoom(domain.RoomID(1), "session-1", nil)
	f.service.LeaveRoom(domain.RoomID(1), "session-1")

	req.Equal([]string{"session-1"}, f.hub.subscribed)
	req.Equal([]string{"session-1"}, f.hub.unsubscribd)
}
