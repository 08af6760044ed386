package gateway

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harun/mcplink/pkg/agent"
	"github.com/rs/zerolog"
)

// EventBroadcaster sends events to every connected client
type EventBroadcaster struct {
	clients *ClientRegistry
	logger  zerolog.Logger
	seq     uint64
}

// NewEventBroadcaster creates a new event broadcaster
func NewEventBroadcaster(clients *ClientRegistry, logger zerolog.Logger) *EventBroadcaster {
	return &EventBroadcaster{
		clients: clients,
		logger:  logger,
	}
}

// Broadcast sends an event with the next sequence number
func (b *EventBroadcaster) Broadcast(event string, data interface{}) {
	b.broadcastMessage(EventMessage{
		Type:      "event",
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
		Seq:       b.nextSeq(),
	})
}

// BroadcastClientEvent forwards a client event, keeping its timestamp
func (b *EventBroadcaster) BroadcastClientEvent(event agent.Event) {
	timestamp := event.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	b.broadcastMessage(EventMessage{
		Type:      "event",
		Event:     string(event.Type),
		Data:      eventData(event),
		Timestamp: timestamp.UnixMilli(),
		Seq:       b.nextSeq(),
	})
}

func eventData(event agent.Event) map[string]interface{} {
	data := map[string]interface{}{
		"variant": event.Variant,
	}
	if event.CommandID != "" {
		data["command_id"] = event.CommandID
	}
	if event.Text != "" {
		data["text"] = event.Text
	}
	if event.ToolCall != nil {
		data["tool"] = event.ToolCall.Function.Name
		data["tool_call_id"] = event.ToolCall.ID
		data["arguments"] = event.ToolCall.Function.Arguments
	}
	if event.Result != nil {
		data["result_type"] = string(event.Result.Type)
		data["result"] = event.Result.Payload
	}
	if event.Error != "" {
		data["error"] = event.Error
	}
	return data
}

func (b *EventBroadcaster) broadcastMessage(msg EventMessage) {
	jsonData, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error().Err(err).Str("event", msg.Event).Int64("seq", msg.Seq).Msg("Failed to marshal event")
		return
	}

	clients := b.clients.Snapshot()
	if len(clients) == 0 {
		b.logger.Debug().Str("event", msg.Event).Int64("seq", msg.Seq).Msg("No clients to broadcast to")
		return
	}

	successCount := 0
	failureCount := 0
	for _, client := range clients {
		if err := client.WriteMessage(websocket.TextMessage, jsonData); err != nil {
			b.logger.Warn().
				Err(err).
				Str("clientId", client.ID).
				Str("event", msg.Event).
				Int64("seq", msg.Seq).
				Msg("Failed to broadcast to client")
			failureCount++
		} else {
			successCount++
		}
	}

	b.logger.Debug().
		Str("event", msg.Event).
		Int64("seq", msg.Seq).
		Int("success", successCount).
		Int("failed", failureCount).
		Msg("Event broadcast complete")
}

func (b *EventBroadcaster) nextSeq() int64 {
	return int64(atomic.AddUint64(&b.seq, 1))
}
