package event

import (
	"time"

	"github.com/google/uuid"
)

// Payload keys
const (
	KeyLecturerID = "lecturer_id"
	KeyAction     = "action"
	KeyOutcome    = "outcome"
	KeyStatus     = "status"
	KeyReason     = "reason"
	KeyFileType   = "file_type"
	KeyFileSize   = "file_size"
	KeyDocuments  = "documents"
	KeyPartial    = "partial"
)

// Event represents a domain event
type Event struct {
	ID        string                 `json:"id"`
	Type      Type                   `json:"type"`
	ClaimID   int64                  `json:"claim_id,omitempty"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewEvent creates a new domain event with a random ID and the current time
func NewEvent(eventType Type, claimID int64, payload map[string]interface{}) *Event {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		ClaimID:   claimID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// WithPayload returns a copy of the event with key set; the receiver is unchanged.
func (e *Event) WithPayload(key string, value interface{}) *Event {
	payload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		payload[k] = v
	}
	payload[key] = value

	cp := *e
	cp.Payload = payload
	return &cp
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if s, ok := e.Payload[key].(string); ok {
		return s
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	switch v := e.Payload[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// GetPayloadBool retrieves a bool value from the payload
func (e *Event) GetPayloadBool(key string) bool {
	b, _ := e.Payload[key].(bool)
	return b
}
