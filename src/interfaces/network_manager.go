package interfaces

import (
	"context"
	"time"
)

// -----------------------------------------------------------------------------
// IStreamConn is one open streaming connection. *websocket.Conn satisfies it.
// -----------------------------------------------------------------------------

type IStreamConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// -----------------------------------------------------------------------------
// IStreamDialer opens connections to the upstream quote feed.
// -----------------------------------------------------------------------------

type IStreamDialer interface {

	// Dial opens a connection. ctx bounds the whole handshake.
	Dial(ctx context.Context) (IStreamConn, error)
}
