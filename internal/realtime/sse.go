package realtime

import (
	"encoding/json"
	"fmt"
)

// Keepalive is the no-op comment frame. Standard SSE parsers skip comment
// lines, so it only keeps the transport from idling closed.
var Keepalive = []byte(": keepalive\n\n")

// Frame serializes a named event into SSE wire format:
// "event: <name>\ndata: <json>\n\n".
func Frame(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event, data)), nil
}
