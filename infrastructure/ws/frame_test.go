package ws

import (
	"encoding/json"
	"testing"
	"time"

	"chat-core/domain"
	"chat-core/domain/event"

	"github.com/stretchr/testify/require"
)

func Test_DecodeFrame_Message(t *testing.T) {
	req := require.New(t)

	decoded, err := decodeFrame([]byte(`{"type":"message","message":"hello"}`))
	req.NoError(err)
	req.Equal(sendMessage{Text: "hello"}, decoded)
}

func Test_DecodeFrame_Typing(t *testing.T) {
	req := require.New(t)

	decoded, err := decodeFrame([]byte(`{"type":"typing","is_typing":true}`))
	req.NoError(err)
	req.Equal(typingStatus{IsTyping: true}, decoded)

	decoded, err = decodeFrame([]byte(`{"type":"typing","is_typing":false}`))
	req.NoError(err)
	req.Equal(typingStatus{IsTyping: false}, decoded)
}

func Test_DecodeFrame_Read(t *testing.T) {
	req := require.New(t)

	decoded, err := decodeFrame([]byte(`{"type":"read","message_id":42}`))
	req.NoError(err)
	req.Equal(markRead{MessageID: 42}, decoded)
}

func Test_DecodeFrame_Missing_Fields(t *testing.T) {
	req := require.New(t)

	// A message frame without its text is a protocol error, not an empty send
	_, err := decodeFrame([]byte(`{"type":"message"}`))
	req.Error(err)

	// An explicitly empty text is still a valid frame
	decoded, err := decodeFrame([]byte(`{"type":"message","message":""}`))
	req.NoError(err)
	req.Equal(sendMessage{Text: ""}, decoded)

	// A typing frame must carry its flag explicitly
	_, err = decodeFrame([]byte(`{"type":"typing"}`))
	req.Error(err)

	// A read frame must name the message
	_, err = decodeFrame([]byte(`{"type":"read"}`))
	req.Error(err)
}

func Test_DecodeFrame_Malformed_JSON(t *testing.T) {
	_, err := decodeFrame([]byte(`{"type":`))
	require.Error(t, err)
}

func Test_DecodeFrame_Unknown_Type_Is_Not_An_Error(t *testing.T) {
	req := require.New(t)

	// Unknown kinds decode cleanly so the session can answer with a
	// protocol error instead of tearing the connection down.
	decoded, err := decodeFrame([]byte(`{"type":"presence"}`))
	req.NoError(err)
	req.Equal(unknownFrame{Kind: "presence"}, decoded)
}

func Test_EncodeEvent_MessagePosted(t *testing.T) {
	req := require.New(t)
	at := time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC)

	payload, ok := encodeEvent(event.MessagePosted{
		ID:         7,
		Room:       1,
		SenderID:   "id-alice",
		SenderName: "alice",
		Content:    "hello",
		At:         at,
	})
	req.True(ok)

	var frame map[string]any
	req.NoError(json.Unmarshal(payload, &frame))
	req.Equal("message", frame["type"])
	req.Equal("hello", frame["message"])
	req.Equal(float64(7), frame["message_id"])
	req.Equal("alice", frame["username"])
	req.Equal("id-alice", frame["user_id"])
	req.Equal(at.Format(time.RFC3339Nano), frame["timestamp"])
}

func Test_EncodeEvent_TypingChanged(t *testing.T) {
	req := require.New(t)

	payload, ok := encodeEvent(event.TypingChanged{
		Room:     1,
		UserID:   "id-alice",
		Username: "alice",
		IsTyping: true,
	})
	req.True(ok)

	var frame map[string]any
	req.NoError(json.Unmarshal(payload, &frame))
	req.Equal("typing", frame["type"])
	req.Equal("alice", frame["username"])
	req.Equal(true, frame["is_typing"])
}

func Test_EncodeEvent_MessageRead(t *testing.T) {
	req := require.New(t)

	payload, ok := encodeEvent(event.MessageRead{
		Room:     1,
		Message:  42,
		UserID:   "id-bob",
		Username: "bob",
	})
	req.True(ok)

	var frame map[string]any
	req.NoError(json.Unmarshal(payload, &frame))
	req.Equal("read", frame["type"])
	req.Equal(float64(42), frame["message_id"])
	req.Equal("bob", frame["username"])
	req.Equal("id-bob", frame["user_id"])
}

type unexposedEvent struct{}

func (unexposedEvent) RoomID() domain.RoomID { return 1 }

func Test_EncodeEvent_Unknown_Kind(t *testing.T) {
	_, ok := encodeEvent(unexposedEvent{})
	require.False(t, ok)
}

func Test_EncodeError(t *testing.T) {
	req := require.New(t)

	var frame map[string]any
	req.NoError(json.Unmarshal(encodeError("unsupported frame type"), &frame))
	req.Equal("error", frame["type"])
	req.Equal("unsupported frame type", frame["message"])
}
