package table

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/scopa/go/internal/models"
)

// EventDetector derives ephemeral events from consecutive authoritative
// snapshots. The protocol never sends a sweep on its own; a player's
// sweep count going up is the only signal.
type EventDetector struct {
	clock  clockwork.Clock
	window time.Duration
}

// NewEventDetector creates a detector whose events expire after window.
func NewEventDetector(clock clockwork.Clock, window time.Duration) *EventDetector {
	return &EventDetector{clock: clock, window: window}
}

// Diff compares prev and next and returns one sweep event per player
// whose sweep count increased. A nil prev yields nothing.
func (d *EventDetector) Diff(prev, next *models.GameState, localPlayerID string) []models.EphemeralEvent {
	if prev == nil || next == nil {
		return nil
	}

	// Stable order keeps simultaneous sweeps deterministic.
	ids := make([]string, 0, len(next.Players))
	for id := range next.Players {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	now := d.clock.Now()
	var out []models.EphemeralEvent
	for _, id := range ids {
		before, ok := prev.Players[id]
		if !ok {
			continue
		}
		if next.Players[id].SweepCount > before.SweepCount {
			out = append(out, models.EphemeralEvent{
				ID:            uuid.New().String(),
				Kind:          models.EventKindSweep,
				OwnerPlayerID: id,
				IsLocal:       id == localPlayerID,
				CreatedAt:     now,
				ExpiresAt:     now.Add(d.window),
			})
		}
	}
	return out
}
