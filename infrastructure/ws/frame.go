// Package ws is the WebSocket edge of the chat core: connection gateway,
// session lifecycle, and the JSON frame protocol spoken with clients.
package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"chat-core/domain/event"
)

const (
	frameTypeMessage = "message"
	frameTypeTyping  = "typing"
	frameTypeRead    = "read"
	frameTypeError   = "error"
)

// inboundFrame is the raw shape of everything a client may send.
type inboundFrame struct {
	Type      string  `json:"type"`
	Message   *string `json:"message"`
	IsTyping  *bool   `json:"is_typing"`
	MessageID *int64  `json:"message_id"`
}

// The decoded inbound variants. Exactly one of these comes out of
// decodeFrame; unknownFrame captures unrecognized kinds so the caller can
// answer with a protocol error instead of dropping the connection.
type inboundEvent interface{ isInbound() }

type sendMessage struct{ Text string }
type typingStatus struct{ IsTyping bool }
type markRead struct{ MessageID int64 }
type unknownFrame struct{ Kind string }

func (sendMessage) isInbound()  {}
func (typingStatus) isInbound() {}
func (markRead) isInbound()     {}
func (unknownFrame) isInbound() {}

func decodeFrame(raw []byte) (inboundEvent, error) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	switch frame.Type {
	case frameTypeMessage:
		if frame.Message == nil {
			return nil, fmt.Errorf("message frame missing message")
		}
		return sendMessage{Text: *frame.Message}, nil
	case frameTypeTyping:
		if frame.IsTyping == nil {
			return nil, fmt.Errorf("typing frame missing is_typing")
		}
		return typingStatus{IsTyping: *frame.IsTyping}, nil
	case frameTypeRead:
		if frame.MessageID == nil {
			return nil, fmt.Errorf("read frame missing message_id")
		}
		return markRead{MessageID: *frame.MessageID}, nil
	default:
		return unknownFrame{Kind: frame.Type}, nil
	}
}

type messageFrame struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	MessageID int64  `json:"message_id"`
	Username  string `json:"username"`
	UserID    string `json:"user_id"`
	Timestamp string `json:"timestamp"`
}

type typingFrame struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	IsTyping bool   `json:"is_typing"`
}

type readFrame struct {
	Type      string `json:"type"`
	MessageID int64  `json:"message_id"`
	Username  string `json:"username"`
	UserID    string `json:"user_id"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// encodeEvent serializes a hub event into its wire frame. The second return
// is false for event kinds this edge does not expose.
func encodeEvent(e event.DomainEvent) ([]byte, bool) {
	var frame any

	switch evt := e.(type) {
	case event.MessagePosted:
		frame = messageFrame{
			Type:      frameTypeMessage,
			Message:   evt.Content,
			MessageID: evt.ID,
			Username:  evt.SenderName,
			UserID:    evt.SenderID,
			Timestamp: evt.At.Format(time.RFC3339Nano),
		}
	case event.TypingChanged:
		frame = typingFrame{
			Type:     frameTypeTyping,
			Username: evt.Username,
			IsTyping: evt.IsTyping,
		}
	case event.MessageRead:
		frame = readFrame{
			Type:      frameTypeRead,
			MessageID: evt.Message,
			Username:  evt.Username,
			UserID:    evt.UserID,
		}
	default:
		return nil, false
	}

	payload, err := json.Marshal(frame)
	if err != nil {
		return nil, false
	}
	return payload, true
}

func encodeError(message string) []byte {
	payload, _ := json.Marshal(errorFrame{Type: frameTypeError, Message: message})
	return payload
}
