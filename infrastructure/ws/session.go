package ws

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"chat-core/domain"
	"chat-core/domain/event"
	"chat-core/errors"
	"chat-core/observability"
	"chat-core/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
	maxFrameSize = 64 * 1024
)

// Session owns exactly one connection and one authenticated identity for its
// lifetime. It is the hub-facing EventSink of that connection: Consume
// enqueues into a bounded outbound buffer drained by the write pump, so a
// slow peer saturates its own buffer and gets disconnected instead of
// stalling the room.
type Session struct {
	id       string
	conn     *websocket.Conn
	identity domain.Identity
	room     domain.RoomID

	chat    services.IChatService
	log     *slog.Logger
	monitor *observability.Monitor

	send         chan []byte
	done         chan struct{}
	writeTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	closed    atomic.Bool
}

func newSession(conn *websocket.Conn, identity domain.Identity, room domain.RoomID,
	chat services.IChatService, log *slog.Logger, monitor *observability.Monitor,
	bufferSize int, writeTimeout time.Duration) *Session {

	// The session outlives the upgrade request, so its context is detached
	// from the HTTP request context.
	ctx, cancel := context.WithCancel(context.Background())

	return &Session{
		id:           uuid.NewString(),
		conn:         conn,
		identity:     identity,
		room:         room,
		chat:         chat,
		log:          log,
		monitor:      monitor,
		send:         make(chan []byte, bufferSize),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (s *Session) ID() string { return s.id }

// Consume implements contract.EventSink. Called by the hub under the room
// lock, so it must never block: a full buffer is a delivery failure and the
// hub will tear this session down.
func (s *Session) Consume(_ context.Context, e event.DomainEvent) error {
	if s.closed.Load() {
		return errors.ErrSessionClosed
	}

	payload, ok := encodeEvent(e)
	if !ok {
		s.log.Debug("No wire encoding for event", "event", fmt.Sprintf("%T", e))
		return nil
	}

	select {
	case s.send <- payload:
		return nil
	default:
		return errors.ErrBufferFull
	}
}

// Close tears the session down exactly once: deregisters from the hub,
// releases the connection, logs the closure. Safe to call from the read
// pump, the write pump, and the hub's failure path concurrently.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.cancel()
		s.chat.LeaveRoom(s.room, s.id)
		close(s.done)
		_ = s.conn.Close()
		if s.monitor != nil {
			s.monitor.SessionClosed()
		}
		s.log.Info("Session closed",
			"session_id", s.id, "user", s.identity.Username, "room_id", s.room)
	})
	return nil
}

func (s *Session) readPump() {
	defer func() { _ = s.Close() }()

	s.conn.SetReadLimit(maxFrameSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				s.log.Warn("Unexpected read error",
					"session_id", s.id, "user", s.identity.Username, "err", err)
			} else {
				s.log.Debug("Client disconnected",
					"session_id", s.id, "user", s.identity.Username)
			}
			return
		}
		s.dispatch(raw)
	}
}

// dispatch routes one inbound frame. A malformed or unrecognized frame is a
// protocol error: answered to this client only, connection stays open.
func (s *Session) dispatch(raw []byte) {
	decoded, err := decodeFrame(raw)
	if err != nil {
		s.sendError(err.Error())
		return
	}

	switch evt := decoded.(type) {
	case sendMessage:
		cmd := domain.PostMessageCommand{
			Room:    int64(s.room),
			Sender:  s.identity,
			Content: evt.Text,
		}
		if _, err := s.chat.PostMessage(s.ctx, cmd); err != nil {
			s.sendError("message could not be stored")
		}

	case typingStatus:
		s.chat.Typing(s.ctx, domain.TypingCommand{
			Room:     int64(s.room),
			Sender:   s.identity,
			IsTyping: evt.IsTyping,
		})

	case markRead:
		cmd := domain.MarkReadCommand{
			Room:    int64(s.room),
			Reader:  s.identity,
			Message: evt.MessageID,
		}
		if err := s.chat.MarkRead(s.ctx, cmd); err != nil {
			s.sendError(err.Error())
		}

	case unknownFrame:
		s.sendError(fmt.Sprintf("unsupported frame type %q", evt.Kind))
	}
}

// sendError enqueues an error frame for this client only. Best effort: if
// the buffer is already full the write pump is in trouble anyway.
func (s *Session) sendError(message string) {
	select {
	case s.send <- encodeError(message):
	default:
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = s.Close()
	}()

	for {
		select {
		case payload := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.log.Debug("Write failed, closing session",
					"session_id", s.id, "err", err)
				return
			}

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
