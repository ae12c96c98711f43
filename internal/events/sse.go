package events

import (
	"encoding/json"
	"fmt"
	"io"

	"docuforge/internal/db"
)

// WriteSSE frames one event per spec.md §6's SSE contract:
// "event: <type>\ndata: <json>\nid: <event_id>\n\n".
func WriteSSE(w io.Writer, ev db.Event) error {
	var payload any = json.RawMessage(ev.Payload)
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\nid: %d\n\n", ev.EventType, body, ev.EventID)
	return err
}

// WriteHeartbeat writes an SSE comment line, invisible to EventSource
// listeners but enough to keep the connection alive through proxies.
func WriteHeartbeat(w io.Writer) error {
	_, err := fmt.Fprint(w, ": heartbeat\n\n")
	return err
}

// IsTerminal reports whether eventType closes the stream.
func IsTerminal(eventType string) bool {
	switch eventType {
	case TypeJobCompleted, TypeJobFailed, TypeJobTimeout:
		return true
	default:
		return false
	}
}
