package relay

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types published by the relay
const (
	EventTypeStatus      = "status"
	EventTypeSweep       = "sweep"
	EventTypeRoundResult = "round_result"
)

// Envelope is the message published for every relayed notification
type Envelope struct {
	EventID   uuid.UUID       `json:"event_id"`
	EventType string          `json:"event_type"`
	SessionID string          `json:"session_id"`
	PlayerID  string          `json:"player_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}
