package rest

import (
	"time"

	"chat-core/domain"
	"chat-core/repositories"

	"github.com/samber/lo"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type UserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

type CreateRoomRequest struct {
	Name    string   `json:"name"`
	IsGroup bool     `json:"is_group"`
	Members []string `json:"members"`
}

type MessageResponse struct {
	ID         int64    `json:"id"`
	RoomID     int64    `json:"room_id"`
	SenderID   string   `json:"sender_id"`
	SenderName string   `json:"sender_name"`
	Content    string   `json:"content"`
	Timestamp  string   `json:"timestamp"`
	IsRead     bool     `json:"is_read"`
	ReadBy     []string `json:"read_by"`
}

type RoomResponse struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	IsGroup     bool             `json:"is_group"`
	Members     []string         `json:"members"`
	CreatedBy   string           `json:"created_by"`
	CreatedAt   string           `json:"created_at"`
	LastMessage *MessageResponse `json:"last_message,omitempty"`
	UnreadCount int              `json:"unread_count"`
}

type MessagesPage struct {
	Messages []MessageResponse `json:"messages"`
	Cursor   *string           `json:"cursor,omitempty"`
}

type MarkReadResponse struct {
	Marked int `json:"marked"`
}

func toUserResponse(user repositories.User) UserResponse {
	return UserResponse{ID: user.ID, Username: user.Username, Email: user.Email}
}

func toMessageResponse(m domain.Message) MessageResponse {
	return MessageResponse{
		ID:         m.ID,
		RoomID:     int64(m.Room),
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Content:    m.Content,
		Timestamp:  m.At.Format(time.RFC3339Nano),
		IsRead:     m.IsRead,
		ReadBy:     m.ReadBy,
	}
}

func toRoomResponse(room domain.Room, last *domain.Message, unread int) RoomResponse {
	response := RoomResponse{
		ID:          int64(room.ID),
		Name:        room.Name,
		IsGroup:     room.IsGroup,
		Members:     room.Members,
		CreatedBy:   room.CreatedBy,
		CreatedAt:   room.CreatedAt.Format(time.RFC3339Nano),
		UnreadCount: unread,
	}
	if last != nil {
		response.LastMessage = lo.ToPtr(toMessageResponse(*last))
	}
	return response
}
