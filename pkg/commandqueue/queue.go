package commandqueue

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harun/mcplink/internal/observability"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"
)

// ErrQueueClosed is returned when enqueueing into a closed queue.
var ErrQueueClosed = errors.New("command queue is closed")

// Command is one unit of work submitted by an external caller.
type Command struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// EventHandler is a function that handles queue events
type EventHandler func(event Event)

// Event represents a queue event
type Event struct {
	Type    string // "enqueued", "dequeued" or "drained"
	Command Command
	Size    int
}

// CommandQueue is a FIFO of commands safe for many producers and one consumer.
type CommandQueue struct {
	name   string
	mu     sync.Mutex
	items  []Command
	closed bool

	eventHandlers map[string][]EventHandler
	eventMu       sync.RWMutex
}

// New creates an empty queue. The name labels metrics and logs.
func New(name string) *CommandQueue {
	observability.EnsureRegistered()
	if name == "" {
		name = "main"
	}
	return &CommandQueue{
		name:          name,
		items:         make([]Command, 0, 8),
		eventHandlers: make(map[string][]EventHandler),
	}
}

// Name returns the queue name.
func (q *CommandQueue) Name() string {
	return q.name
}

// Enqueue appends text to the tail of the queue.
func (q *CommandQueue) Enqueue(text string) (Command, error) {
	id, err := gonanoid.New()
	if err != nil {
		return Command{}, fmt.Errorf("failed to generate command id: %w", err)
	}
	cmd := Command{ID: id, Text: text, EnqueuedAt: time.Now()}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return Command{}, ErrQueueClosed
	}
	q.items = append(q.items, cmd)
	size := len(q.items)
	q.mu.Unlock()

	log.Debug().
		Str("queue", q.name).
		Str("commandId", cmd.ID).
		Int("queueSize", size).
		Msg("Command enqueued")
	observability.RecordQueueEnqueue(q.name, size)

	q.emit(Event{Type: "enqueued", Command: cmd, Size: size})
	return cmd, nil
}

// Poll removes and returns the head of the queue without blocking.
func (q *CommandQueue) Poll() (Command, bool) {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return Command{}, false
	}
	cmd := q.items[0]
	q.items[0] = Command{}
	q.items = q.items[1:]
	size := len(q.items)
	q.mu.Unlock()

	observability.RecordQueueDequeue(q.name, size, time.Since(cmd.EnqueuedAt))
	q.emit(Event{Type: "dequeued", Command: cmd, Size: size})
	return cmd, true
}

// Len returns the number of waiting commands.
func (q *CommandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain removes all waiting commands and returns how many were dropped.
func (q *CommandQueue) Drain() int {
	q.mu.Lock()
	dropped := len(q.items)
	q.items = make([]Command, 0, 8)
	q.mu.Unlock()

	if dropped > 0 {
		log.Debug().Str("queue", q.name).Int("dropped", dropped).Msg("Command queue drained")
	}
	observability.SetQueueSize(q.name, 0)
	q.emit(Event{Type: "drained", Size: 0})
	return dropped
}

// Close rejects further enqueues. Waiting commands stay pollable.
func (q *CommandQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

// On registers an event handler for a specific event type
func (q *CommandQueue) On(eventType string, handler EventHandler) {
	q.eventMu.Lock()
	defer q.eventMu.Unlock()

	q.eventHandlers[eventType] = append(q.eventHandlers[eventType], handler)
}

// Off removes an event handler (removes all handlers for the event type)
func (q *CommandQueue) Off(eventType string) {
	q.eventMu.Lock()
	defer q.eventMu.Unlock()

	delete(q.eventHandlers, eventType)
}

// emit emits an event synchronously to all registered handlers
func (q *CommandQueue) emit(event Event) {
	q.eventMu.RLock()
	handlers := q.eventHandlers[event.Type]
	q.eventMu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}
