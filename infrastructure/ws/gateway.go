package ws

import (
	stderrors "errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"chat-core/domain"
	"chat-core/errors"
	"chat-core/observability"
	"chat-core/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Close codes clients can rely on to distinguish handshake failures.
const (
	CloseAuthFailure  = 4401 // missing or invalid credential
	CloseAccessDenied = 4403 // authenticated but not a room member
	CloseRoomNotFound = 4404
)

// Gateway accepts new connections and runs the handshake: authenticate the
// bearer token, authorize room access, then hand the socket to a Session.
// Nothing is registered anywhere until every step has passed, so a failed
// handshake leaks no session state.
type Gateway struct {
	log     *slog.Logger
	auth    services.IAuthService
	rooms   services.IRoomService
	chat    services.IChatService
	monitor *observability.Monitor

	upgrader     websocket.Upgrader
	bufferSize   int
	writeTimeout time.Duration
}

func NewGateway(log *slog.Logger, auth services.IAuthService, rooms services.IRoomService,
	chat services.IChatService, monitor *observability.Monitor,
	bufferSize int, writeTimeout time.Duration) *Gateway {

	return &Gateway{
		log:     log,
		auth:    auth,
		rooms:   rooms,
		chat:    chat,
		monitor: monitor,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Token auth is the access barrier; origins are not.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		bufferSize:   bufferSize,
		writeTimeout: writeTimeout,
	}
}

// Handle serves GET /ws/chat/:roomID?token=...
//
// The socket is upgraded first (close codes only exist on an upgraded
// connection), then the handshake runs. Each failure closes with its own
// stable code before any data is exchanged.
func (g *Gateway) Handle(c *gin.Context) {
	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.log.Debug("Upgrade failed", "err", err)
		return
	}

	token := c.Query("token")
	if token == "" {
		g.log.Warn("Connection without credential", "room", c.Param("roomID"))
		g.reject(conn, CloseAuthFailure, errors.ErrMissingCredential.Error())
		return
	}

	identity, err := g.auth.Identify(token)
	if err != nil {
		g.log.Warn("Authentication failed", "err", err)
		g.reject(conn, CloseAuthFailure, errors.ErrInvalidCredential.Error())
		return
	}

	roomID, err := strconv.ParseInt(c.Param("roomID"), 10, 64)
	if err != nil {
		g.reject(conn, CloseRoomNotFound, errors.ErrRoomNotFound.Error())
		return
	}

	if err := g.rooms.Access(roomID, identity.ID); err != nil {
		switch {
		case stderrors.Is(err, errors.ErrRoomNotFound):
			g.log.Warn("Room does not exist", "room_id", roomID)
			g.reject(conn, CloseRoomNotFound, errors.ErrRoomNotFound.Error())
		case stderrors.Is(err, errors.ErrAccessDenied):
			g.log.Warn("Access denied",
				"room_id", roomID, "user", identity.Username)
			g.reject(conn, CloseAccessDenied, errors.ErrAccessDenied.Error())
		default:
			g.log.Error("Access check failed", "room_id", roomID, "err", err)
			g.reject(conn, websocket.CloseInternalServerErr, "access check failed")
		}
		return
	}

	session := newSession(conn, identity, domain.RoomID(roomID),
		g.chat, g.log, g.monitor, g.bufferSize, g.writeTimeout)

	g.chat.JoinRoom(session.room, session.id, session)
	if g.monitor != nil {
		g.monitor.SessionOpened()
	}
	g.log.Info("Session established",
		"session_id", session.id, "user", identity.Username, "room_id", roomID)

	go session.writePump()
	go session.readPump()
}

// reject closes a just-upgraded connection with a distinct close code.
func (g *Gateway) reject(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(g.writeTimeout)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), deadline)
	_ = conn.Close()
}
