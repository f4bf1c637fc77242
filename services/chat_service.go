package services

import (
	"context"
	"log/slog"

	"chat-core/contract"
	"chat-core/domain"
	"chat-core/domain/event"
	"chat-core/observability"
	"chat-core/repositories"
)

type IChatService interface {
	PostMessage(ctx context.Context, cmd domain.PostMessageCommand) (domain.Message, error)
	Typing(ctx context.Context, cmd domain.TypingCommand)
	MarkRead(ctx context.Context, cmd domain.MarkReadCommand) error
	GetMessages(cmd domain.GetMessagesCommand) ([]domain.Message, *string, error)
	JoinRoom(roomID domain.RoomID, sessionID string, sink contract.EventSink)
	LeaveRoom(roomID domain.RoomID, sessionID string)
}

// ChatService serializes session events against the message store and the
// broadcast hub.
type ChatService struct {
	log      *slog.Logger
	messages repositories.IMessageRepository
	hub      contract.IHub
	monitor  *observability.Monitor
}

func NewChatService(log *slog.Logger, messages repositories.IMessageRepository,
	hub contract.IHub, monitor *observability.Monitor) *ChatService {
	return &ChatService{log: log, messages: messages, hub: hub, monitor: monitor}
}

// PostMessage persists the message first, then fans it out. Persistence must
// complete before publish so every recipient observes a durable message; on
// store failure nothing is broadcast and the error goes back to the sender
// alone.
func (s *ChatService) PostMessage(ctx context.Context, cmd domain.PostMessageCommand) (domain.Message, error) {
	message, err := s.messages.Append(cmd.Room, cmd.Sender, cmd.Content)
	if err != nil {
		s.log.Error("Message append failed", "room_id", cmd.Room, "err", err)
		return domain.Message{}, err
	}
	if s.monitor != nil {
		s.monitor.IncrPersisted()
	}

	s.hub.Publish(ctx, cmd.RoomID(), event.MessagePosted{
		ID:         message.ID,
		Room:       cmd.Room,
		SenderID:   cmd.Sender.ID,
		SenderName: cmd.Sender.Username,
		Content:    message.Content,
		At:         message.At,
	})
	return message, nil
}

// Typing goes straight to the hub. Ephemeral, never persisted.
func (s *ChatService) Typing(ctx context.Context, cmd domain.TypingCommand) {
	s.hub.Publish(ctx, cmd.RoomID(), event.TypingChanged{
		Room:     cmd.Room,
		UserID:   cmd.Sender.ID,
		Username: cmd.Sender.Username,
		IsTyping: cmd.IsTyping,
	})
}

// MarkRead records a read receipt and broadcasts it room-wide. A reader
// marking their own message is silently ignored: no state change, no event.
func (s *ChatService) MarkRead(ctx context.Context, cmd domain.MarkReadCommand) error {
	message, err := s.messages.GetByID(cmd.Message)
	if err != nil {
		return err
	}

	if message.SenderID == cmd.Reader.ID {
		s.log.Debug("Ignoring read receipt from the sender",
			"message_id", cmd.Message, "user_id", cmd.Reader.ID)
		return nil
	}

	if _, err := s.messages.MarkRead(cmd.Message, cmd.Reader.ID); err != nil {
		return err
	}

	s.hub.Publish(ctx, cmd.RoomID(), event.MessageRead{
		Room:     cmd.Room,
		Message:  cmd.Message,
		UserID:   cmd.Reader.ID,
		Username: cmd.Reader.Username,
	})
	return nil
}

func (s *ChatService) GetMessages(cmd domain.GetMessagesCommand) ([]domain.Message, *string, error) {
	return s.messages.GetMessages(cmd.Room, cmd.Cursor)
}

func (s *ChatService) JoinRoom(roomID domain.RoomID, sessionID string, sink contract.EventSink) {
	s.hub.Subscribe(roomID, sessionID, sink)
}

func (s *ChatService) LeaveRoom(roomID domain.RoomID, sessionID string) {
	s.hub.Unsubscribe(roomID, sessionID)
}
