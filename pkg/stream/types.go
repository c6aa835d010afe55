package stream

import "time"

const (
	// EventHello carries the state a console sees right after connecting.
	EventHello = "hello"
	// EventState is pushed after every change of the console state.
	EventState = "state"
)

// Frame is what gets written to a console websocket.
type Frame struct {
	EventType string    `json:"event_type"`
	Data      any       `json:"data,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}
