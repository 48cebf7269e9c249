package client

import (
	"context"
	"time"
)

// textMessage mirrors gorilla/websocket.TextMessage without importing the
// package here, matching the server-side router package's own convention
// of depending on an interface rather than gorilla directly.
const textMessage = 1

// Conn is the full-duplex transport the Bridge drives. *websocket.Conn
// (dialed against the "/channel" path spec.md §6 names) satisfies it;
// tests supply a fake.
type Conn interface {
	ReadMessage() (messageType int, payload []byte, err error)
	WriteMessage(messageType int, payload []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Dialer establishes a fresh Conn. Reconnection (spec.md §4.7) calls Dial
// again with the same authenticated context on every attempt; a real
// implementation re-sends whatever credential/session cookie the HTTP
// auth collaborator issued (out of this core's scope, spec.md §1).
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// DialerFunc adapts a plain function to a Dialer.
type DialerFunc func(ctx context.Context) (Conn, error)

// Dial implements Dialer.
func (f DialerFunc) Dial(ctx context.Context) (Conn, error) { return f(ctx) }
