package events

import "github.com/mcdev12/scopa/go/internal/models"

// Inbound frame payloads. Every frame is a flat JSON object with a "type"
// discriminator; the fields below sit next to it.

// WaitingPayload is sent while the opponent has not connected yet.
type WaitingPayload struct {
	Message string `json:"message,omitempty"`
}

// GameStartedPayload is sent at the start of every round and on resync.
type GameStartedPayload struct {
	YourID     string `json:"your_id,omitempty"`
	OpponentID string `json:"opponent_id,omitempty"`
	Round      *int   `json:"round,omitempty"`
}

// CardsDealtPayload is sent when both hands ran out mid-round and were refilled.
type CardsDealtPayload struct {
	Round *int `json:"round,omitempty"`
}

// StatePayload carries the full public snapshot for the receiving player.
type StatePayload struct {
	State *models.GameState `json:"state"`
}

// CapturesPayload answers a get_captures request. CardID echoes the
// requested card when the server provides it.
type CapturesPayload struct {
	CardID  string     `json:"card_id,omitempty"`
	Options [][]string `json:"options"`
}

// RoundOverPayload is the scoring summary at the end of a round.
type RoundOverPayload struct {
	RoundNumber int            `json:"round_number"`
	RoundScores map[string]int `json:"round_scores"`
	Cumulative  map[string]int `json:"cumulative"`
	Scopas      map[string]int `json:"scopas,omitempty"`
}

// ErrorPayload is an application-level rejection, e.g. an illegal play.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Outbound frames.

// PlayMessage plays CardID from the hand. An empty CaptureIDs is a discard.
type PlayMessage struct {
	Type       string   `json:"type"`
	CardID     string   `json:"card_id"`
	CaptureIDs []string `json:"capture_ids"`
}

// GetCapturesMessage asks for the legal capture sets of a hand card.
type GetCapturesMessage struct {
	Type   string `json:"type"`
	CardID string `json:"card_id"`
}

// PingMessage is the protocol keepalive; the server answers with pong.
type PingMessage struct {
	Type string `json:"type"`
}

func NewPlayMessage(cardID string, captureIDs []string) PlayMessage {
	ids := make([]string, len(captureIDs))
	copy(ids, captureIDs)
	return PlayMessage{Type: "play", CardID: cardID, CaptureIDs: ids}
}

func NewGetCapturesMessage(cardID string) GetCapturesMessage {
	return GetCapturesMessage{Type: "get_captures", CardID: cardID}
}

func NewPingMessage() PingMessage {
	return PingMessage{Type: "ping"}
}
