package errors

import "fmt"

var (
	// Handshake failures. Each maps to a distinct close code on the socket.
	ErrMissingCredential = fmt.Errorf("missing credential")
	ErrInvalidCredential = fmt.Errorf("invalid credential")
	ErrAccessDenied      = fmt.Errorf("access denied")
	ErrRoomNotFound      = fmt.Errorf("room not found")

	ErrMessageNotFound = fmt.Errorf("message not found")
	ErrUserNotFound    = fmt.Errorf("user not found")

	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")

	ErrEmptyRoom = fmt.Errorf("a room keeps at least one member")

	// Delivery failures, isolated per recipient.
	ErrSessionClosed = fmt.Errorf("session closed")
	ErrBufferFull    = fmt.Errorf("outbound buffer full")

	ErrWorkerPanic = fmt.Errorf("worker panic")
)
