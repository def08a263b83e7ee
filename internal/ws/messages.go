package ws

import "encoding/json"

// Envelope wraps every WS frame.
type Envelope struct {
	Event string          `json:"event"`          // e.g. "lots/bid_accepted"
	Body  json.RawMessage `json:"body,omitempty"` // arbitrary JSON object
}
