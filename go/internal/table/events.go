package table

import (
	"encoding/json"
	"fmt"

	"github.com/mcdev12/scopa/go/internal/table/events"
)

// MessageType is the "type" discriminator of a protocol frame
type MessageType string

const (
	MessageTypeWaiting              MessageType = "waiting"
	MessageTypeGameStarted          MessageType = "game_started"
	MessageTypeCardsDealt           MessageType = "cards_dealt"
	MessageTypeState                MessageType = "state"
	MessageTypeCaptures             MessageType = "captures"
	MessageTypeRoundOver            MessageType = "round_over"
	MessageTypeError                MessageType = "error"
	MessageTypeOpponentDisconnected MessageType = "opponent_disconnected"
	MessageTypePong                 MessageType = "pong"
)

type envelope struct {
	Type MessageType `json:"type"`
}

// Frame is a decoded inbound frame.
type Frame struct {
	Type    MessageType
	Payload interface{}
}

// ParseFrame decodes a raw frame into its typed payload. Decode failures
// wrap ErrMalformedFrame; unrecognized types wrap ErrUnknownMessage and
// still report the type they carried.
func ParseFrame(data []byte) (Frame, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	frame := Frame{Type: env.Type}
	switch env.Type {
	case MessageTypeWaiting:
		var payload events.WaitingPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return frame, fmt.Errorf("%w: %s: %v", ErrMalformedFrame, env.Type, err)
		}
		frame.Payload = payload

	case MessageTypeGameStarted:
		var payload events.GameStartedPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return frame, fmt.Errorf("%w: %s: %v", ErrMalformedFrame, env.Type, err)
		}
		frame.Payload = payload

	case MessageTypeCardsDealt:
		var payload events.CardsDealtPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return frame, fmt.Errorf("%w: %s: %v", ErrMalformedFrame, env.Type, err)
		}
		frame.Payload = payload

	case MessageTypeState:
		var payload events.StatePayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return frame, fmt.Errorf("%w: %s: %v", ErrMalformedFrame, env.Type, err)
		}
		// A state frame is all or nothing.
		if payload.State == nil {
			return frame, fmt.Errorf("%w: %s: missing state", ErrMalformedFrame, env.Type)
		}
		frame.Payload = payload

	case MessageTypeCaptures:
		var payload events.CapturesPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return frame, fmt.Errorf("%w: %s: %v", ErrMalformedFrame, env.Type, err)
		}
		frame.Payload = payload

	case MessageTypeRoundOver:
		var payload events.RoundOverPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return frame, fmt.Errorf("%w: %s: %v", ErrMalformedFrame, env.Type, err)
		}
		frame.Payload = payload

	case MessageTypeError:
		var payload events.ErrorPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return frame, fmt.Errorf("%w: %s: %v", ErrMalformedFrame, env.Type, err)
		}
		frame.Payload = payload

	case MessageTypeOpponentDisconnected, MessageTypePong:
		// no payload

	default:
		return frame, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
	}

	return frame, nil
}
