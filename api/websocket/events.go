package websocket

import (
	"encoding/json"
	"time"
)

// Event is the envelope sent to all connected clients. Job lifecycle
// event names and payloads are owned by the batch package; this layer
// only wraps and serializes them.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType string, data any) Event {
	return Event{Type: eventType, Timestamp: time.Now().UTC(), Data: data}
}

// JSON serializes the event.
func (e Event) JSON() []byte {
	b, _ := json.Marshal(e)
	return b
}
