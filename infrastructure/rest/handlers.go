package rest

import (
	stderrors "errors"
	"log/slog"
	"net/http"
	"strconv"

	"chat-core/domain"
	"chat-core/errors"
	"chat-core/observability"
	"chat-core/repositories"
	"chat-core/services"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

// Handlers carries the service dependencies of the REST surface. The REST
// API covers everything that does not need a live socket: account lifecycle,
// room management, history reads and bulk read marking.
type Handlers struct {
	log      *slog.Logger
	auth     services.IAuthService
	rooms    services.IRoomService
	chat     services.IChatService
	users    repositories.IUserRepository
	messages repositories.IMessageRepository
	monitor  *observability.Monitor
}

func NewHandlers(log *slog.Logger, auth services.IAuthService, rooms services.IRoomService,
	chat services.IChatService, users repositories.IUserRepository,
	messages repositories.IMessageRepository, monitor *observability.Monitor) *Handlers {

	return &Handlers{
		log:      log,
		auth:     auth,
		rooms:    rooms,
		chat:     chat,
		users:    users,
		messages: messages,
		monitor:  monitor,
	}
}

// Register handles POST /api/register.
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	token, err := h.auth.Register(req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case stderrors.Is(err, errors.ErrUserAlreadyExists):
			c.JSON(http.StatusConflict, ErrorResponse{Error: errors.ErrUserAlreadyExists.Error()})
		case stderrors.Is(err, errors.ErrInvalidPassword):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		default:
			h.log.Error("Registration failed", "username", req.Username, "err", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "registration failed"})
		}
		return
	}

	c.JSON(http.StatusCreated, TokenResponse{Token: string(token)})
}

// Login handles POST /api/login.
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	token, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: errors.ErrInvalidCredentials.Error()})
		return
	}

	c.JSON(http.StatusOK, TokenResponse{Token: string(token)})
}

// Me handles GET /api/users/me.
func (h *Handlers) Me(c *gin.Context) {
	identity, ok := CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: errors.ErrMissingCredential.Error()})
		return
	}

	user, err := h.users.GetByID(identity.ID)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: errors.ErrUserNotFound.Error()})
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}

// ListUsers handles GET /api/users: the directory everyone picks chat
// partners from. The caller is excluded and emails stay private to their
// owner.
func (h *Handlers) ListUsers(c *gin.Context) {
	identity, _ := CurrentIdentity(c)

	users, err := h.users.ListUsers()
	if err != nil {
		h.log.Error("Listing users failed", "err", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "listing users failed"})
		return
	}

	others := lo.Filter(users, func(user repositories.User, _ int) bool {
		return user.ID != identity.ID
	})
	c.JSON(http.StatusOK, lo.Map(others, func(user repositories.User, _ int) UserResponse {
		return UserResponse{ID: user.ID, Username: user.Username}
	}))
}

// CreateRoom handles POST /api/rooms.
func (h *Handlers) CreateRoom(c *gin.Context) {
	identity, _ := CurrentIdentity(c)

	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	room, err := h.rooms.CreateRoom(identity, req.Members, req.Name, req.IsGroup)
	if err != nil {
		h.log.Error("Room creation failed", "creator", identity.Username, "err", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "room creation failed"})
		return
	}

	c.JSON(http.StatusCreated, toRoomResponse(room, nil, 0))
}

// ListRooms handles GET /api/rooms: every room the caller belongs to,
// enriched with the latest message and the caller's unread count.
func (h *Handlers) ListRooms(c *gin.Context) {
	identity, _ := CurrentIdentity(c)

	rooms, err := h.rooms.RoomsForUser(identity.ID)
	if err != nil {
		h.log.Error("Listing rooms failed", "user", identity.Username, "err", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "listing rooms failed"})
		return
	}

	response := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		last, err := h.messages.LastMessage(int64(room.ID))
		if err != nil {
			h.log.Error("Last message lookup failed", "room_id", room.ID, "err", err)
		}
		unread, err := h.messages.CountUnread(int64(room.ID), identity.ID)
		if err != nil {
			h.log.Error("Unread count failed", "room_id", room.ID, "err", err)
		}
		response = append(response, toRoomResponse(room, last, unread))
	}

	c.JSON(http.StatusOK, response)
}

// RoomMessages handles GET /api/rooms/:roomID/messages with optional
// cursor-based pagination.
func (h *Handlers) RoomMessages(c *gin.Context) {
	identity, _ := CurrentIdentity(c)

	roomID, ok := h.authorizeRoom(c, identity)
	if !ok {
		return
	}

	var cursor *string
	if raw := c.Query("cursor"); raw != "" {
		cursor = lo.ToPtr(raw)
	}

	messages, next, err := h.chat.GetMessages(domain.GetMessagesCommand{Room: roomID, Cursor: cursor})
	if err != nil {
		h.log.Error("History read failed", "room_id", roomID, "err", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "history read failed"})
		return
	}

	c.JSON(http.StatusOK, MessagesPage{
		Messages: lo.Map(messages, func(m domain.Message, _ int) MessageResponse {
			return toMessageResponse(m)
		}),
		Cursor: next,
	})
}

// MarkRoomRead handles POST /api/rooms/:roomID/read: it marks every message
// in the room as read by the caller in one pass. Unlike the per-message
// socket path it broadcasts no receipts, so catching up on a long backlog
// does not flood live members.
func (h *Handlers) MarkRoomRead(c *gin.Context) {
	identity, _ := CurrentIdentity(c)

	roomID, ok := h.authorizeRoom(c, identity)
	if !ok {
		return
	}

	marked, err := h.messages.MarkRoomRead(roomID, identity.ID)
	if err != nil {
		h.log.Error("Bulk read mark failed", "room_id", roomID, "err", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "marking room read failed"})
		return
	}

	c.JSON(http.StatusOK, MarkReadResponse{Marked: marked})
}

// Stats handles GET /api/stats.
func (h *Handlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.monitor.Latest())
}

// authorizeRoom parses the room id and checks membership, writing the error
// response itself when the caller may not proceed.
func (h *Handlers) authorizeRoom(c *gin.Context, identity domain.Identity) (int64, bool) {
	roomID, err := strconv.ParseInt(c.Param("roomID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: errors.ErrRoomNotFound.Error()})
		return 0, false
	}

	if err := h.rooms.Access(roomID, identity.ID); err != nil {
		switch {
		case stderrors.Is(err, errors.ErrRoomNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: errors.ErrRoomNotFound.Error()})
		case stderrors.Is(err, errors.ErrAccessDenied):
			c.JSON(http.StatusForbidden, ErrorResponse{Error: errors.ErrAccessDenied.Error()})
		default:
			h.log.Error("Access check failed", "room_id", roomID, "err", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "access check failed"})
		}
		return 0, false
	}

	return roomID, true
}
