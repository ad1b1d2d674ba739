package models

import "time"

// PlayerInfo is the public per-player summary sent with every state.
type PlayerInfo struct {
	HandCount     int `json:"hand_count"`
	CapturedCount int `json:"captured_count"`
	SweepCount    int `json:"scopas"`
}

// GameState is the server-confirmed snapshot of a game as seen by the
// local player. It is replaced wholesale on every state message.
type GameState struct {
	Phase               string                `json:"phase"`
	Table               []Card                `json:"table"`
	Players             map[string]PlayerInfo `json:"players"`
	Scores              map[string]int        `json:"scores"`
	DeckRemaining       int                   `json:"deck_remaining"`
	IsLocalTurn         bool                  `json:"is_human_turn"`
	LocalHand           []Card                `json:"human_hand"`
	CurrentPlayerID     string                `json:"current_player_id,omitempty"`
	LastCapturePlayerID string                `json:"last_capture_player_id,omitempty"`
}

// Clone returns a deep copy so callers outside the session loop never
// share slices or maps with it.
func (g *GameState) Clone() *GameState {
	if g == nil {
		return nil
	}
	out := *g
	out.Table = append([]Card(nil), g.Table...)
	out.LocalHand = append([]Card(nil), g.LocalHand...)
	if g.Players != nil {
		out.Players = make(map[string]PlayerInfo, len(g.Players))
		for id, p := range g.Players {
			out.Players[id] = p
		}
	}
	out.Scores = cloneScores(g.Scores)
	return &out
}

// EventKind identifies an ephemeral presentation event.
type EventKind string

const (
	EventKindSweep EventKind = "sweep"
)

// EphemeralEvent is a short-lived notification derived locally from a
// state transition.
type EphemeralEvent struct {
	ID            string    `json:"id"`
	Kind          EventKind `json:"kind"`
	OwnerPlayerID string    `json:"owner_player_id"`
	IsLocal       bool      `json:"is_local"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// RoundResult is shown between the end of a round and the next deal.
type RoundResult struct {
	RoundNumber int            `json:"round_number"`
	RoundScores map[string]int `json:"round_scores"`
	Cumulative  map[string]int `json:"cumulative"`
	Sweeps      map[string]int `json:"scopas,omitempty"`
}

// Clone returns a deep copy of the result.
func (r *RoundResult) Clone() *RoundResult {
	if r == nil {
		return nil
	}
	return &RoundResult{
		RoundNumber: r.RoundNumber,
		RoundScores: cloneScores(r.RoundScores),
		Cumulative:  cloneScores(r.Cumulative),
		Sweeps:      cloneScores(r.Sweeps),
	}
}

// DealKind tells presentation which deal sequence to play.
type DealKind string

const (
	DealKindFull      DealKind = "full"
	DealKindHandsOnly DealKind = "hands_only"
)

// DealPhase is active while cards are being distributed.
type DealPhase struct {
	Active bool     `json:"active"`
	Kind   DealKind `json:"kind,omitempty"`
	Round  int      `json:"round,omitempty"`
}

func cloneScores(in map[string]int) map[string]int {
	if in == nil {
		return nil
	}
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
