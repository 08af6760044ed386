package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harun/mcplink/pkg/commandqueue"
)

// FrameType identifies an inbound frame.
type FrameType string

const (
	FrameCommand FrameType = "command"
	FrameStop    FrameType = "stop"
	FrameSkip    FrameType = "skip"
	FrameClear   FrameType = "clear"
)

// Frame is an inbound message from a connection.
type Frame struct {
	Type FrameType `json:"type"`
	Text string    `json:"text,omitempty"`
}

// Reply answers a single inbound frame.
type Reply struct {
	Type      string `json:"type"`
	Frame     string `json:"frame,omitempty"`
	CommandID string `json:"command_id,omitempty"`
	Message   string `json:"message,omitempty"`
}

// EventMessage is a server-initiated event sent to every connection.
type EventMessage struct {
	Type      string      `json:"type"`
	Event     string      `json:"event"`
	Data      interface{} `json:"data"`
	Seq       int64       `json:"seq"`
	Timestamp int64       `json:"timestamp"`
}

// Intake is the control surface frames are mapped onto.
type Intake interface {
	Enqueue(text string) (commandqueue.Command, error)
	RequestStop()
	RequestSkip()
	RequestClear()
}

// ClientInfo describes a connected client.
type ClientInfo struct {
	ID           string    `json:"id"`
	ConnectedAt  time.Time `json:"connectedAt"`
	LastActivity time.Time `json:"lastActivity"`
	IPAddress    string    `json:"ipAddress"`
	Idle         bool      `json:"idle"`
}

// Client is a connected WebSocket peer.
type Client struct {
	ID           string
	Conn         *websocket.Conn
	ConnectedAt  time.Time
	LastActivity time.Time
	IPAddress    string
	RateLimiter  *CommandRateLimiter

	writeMu sync.Mutex
}

// WriteMessage writes one frame. Writes from several goroutines are serialized.
func (c *Client) WriteMessage(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// WriteJSON writes v as a JSON text frame.
func (c *Client) WriteJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteJSON(v)
}
