package websocket

import (
	"net"
	"time"
)

// Connection is the part of *websocket.Conn a client uses. It exists so
// tests can drive a client without a network socket.
type Connection interface {
	// WriteMessage writes a message with the given message type and payload
	WriteMessage(messageType int, data []byte) error

	// ReadMessage reads a message from the connection
	ReadMessage() (messageType int, p []byte, err error)

	Close() error

	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error

	// SetReadLimit sets the maximum size for a message read from the connection
	SetReadLimit(limit int64)

	SetPongHandler(h func(appData string) error)

	// RemoteAddr returns the remote network address
	RemoteAddr() net.Addr
}
