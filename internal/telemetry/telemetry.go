// Package telemetry broadcasts schedule/dispatch lifecycle events over a
// websocket stream for external observability (SPEC_FULL.md §4 "Schedule
// telemetry"). It is an optional collaborator: a Dispatcher with no
// Broadcaster attached behaves identically, just silently.
package telemetry

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// EventType names the dispatch lifecycle events a Broadcaster emits.
type EventType string

const (
	StepStarted    EventType = "StepStarted"
	TaskCompleted  EventType = "TaskCompleted"
	StepBarrier    EventType = "StepBarrier"
	ScheduleFailed EventType = "ScheduleFailed"
)

// Event is one lifecycle notification, JSON-encoded onto every connected
// subscriber.
type Event struct {
	Type       EventType `json:"type"`
	ScheduleID uuid.UUID `json:"scheduleId"`
	TaskID     uuid.UUID `json:"taskId,omitempty"`
	Key        string    `json:"key,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// subscriber is one connected websocket client and its outbound queue.
type subscriber struct {
	conn *websocket.Conn
	send chan Event
}

// Broadcaster fans dispatch events out to every subscribed websocket
// connection. Publish never blocks on a slow subscriber: an event is
// dropped for a subscriber whose send buffer is full rather than
// stalling dispatch; the subscriber itself stays connected.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
}

// NewBroadcaster returns an empty event broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subscribers: make(map[*subscriber]struct{})}
}

// ServeHTTP upgrades the request to a websocket connection and registers
// it as a subscriber until the connection closes.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("telemetry: upgrade failed: %v", err)
		return
	}

	sub := &subscriber{conn: conn, send: make(chan Event, 64)}
	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.subscribers, sub)
		b.mu.Unlock()
		conn.Close()
	}()

	for ev := range sub.send {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}

// Publish fans an event out to every connected subscriber, dropping it
// for any subscriber whose buffer is currently full.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subscribers {
		select {
		case sub.send <- ev:
		default:
			log.Printf("telemetry: dropping event %s for a slow subscriber", ev.Type)
		}
	}
}

// MarshalForLog renders an event as a single JSON line for structured
// logging alongside the standard `log` package, independent of whether
// any websocket subscriber is attached.
func MarshalForLog(ev Event) string {
	b, err := json.Marshal(ev)
	if err != nil {
		return string(ev.Type)
	}
	return string(b)
}
