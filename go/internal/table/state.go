package table

import (
	"sort"
	"time"

	"github.com/mcdev12/scopa/go/internal/models"
)

// Interaction is the locally built, tentative selection. It only exists
// while it is the local player's turn and a hand card is selected.
type Interaction struct {
	Selected      *models.Card
	Options       [][]string
	Pending       map[string]struct{}
	OptionsLoaded bool
}

// Active reports whether a hand card is selected.
func (i *Interaction) Active() bool { return i.Selected != nil }

// State is the shared model mutated by the dispatcher, the capture
// selector and the round tracker. It is owned by a single goroutine and
// carries no locks.
type State struct {
	Session     models.Session
	Waiting     bool
	Game        *models.GameState
	Interaction Interaction
	RoundNumber int
	RoundResult *models.RoundResult
	Deal        models.DealPhase
	Events      []models.EphemeralEvent
	Error       string
	LastPong    time.Time

	// tokens guard timer expiries against superseded values
	errorToken uint64
	dealToken  uint64
}

// NewState creates an empty state for a session.
func NewState(session models.Session) *State {
	return &State{Session: session}
}

// ClearInteraction drops the selection, options and pending set.
func (s *State) ClearInteraction() {
	s.Interaction = Interaction{}
}

// IsLocalTurn reports whether the current snapshot gives the local
// player the turn. No snapshot means no turn.
func (s *State) IsLocalTurn() bool {
	return s.Game != nil && s.Game.IsLocalTurn
}

// Frozen reports whether interaction is suspended by a round result.
func (s *State) Frozen() bool {
	return s.RoundResult != nil
}

// View is a detached copy of the state for readers outside the session loop.
type View struct {
	Session       models.Session          `json:"session"`
	Status        models.ConnectionStatus `json:"status"`
	Waiting       bool                    `json:"waiting"`
	Game          *models.GameState       `json:"game"`
	Selected      *models.Card            `json:"selected,omitempty"`
	Options       [][]string              `json:"options,omitempty"`
	Pending       []string                `json:"pending,omitempty"`
	OptionsLoaded bool                    `json:"options_loaded"`
	RoundNumber   int                     `json:"round_number"`
	RoundResult   *models.RoundResult     `json:"round_result,omitempty"`
	Deal          models.DealPhase        `json:"deal"`
	Events        []models.EphemeralEvent `json:"events,omitempty"`
	Error         string                  `json:"error,omitempty"`
	LastPong      time.Time               `json:"last_pong,omitempty"`
}

// Snapshot copies the state into a View.
func (s *State) Snapshot(status models.ConnectionStatus) View {
	v := View{
		Session:       s.Session,
		Status:        status,
		Waiting:       s.Waiting,
		Game:          s.Game.Clone(),
		OptionsLoaded: s.Interaction.OptionsLoaded,
		RoundNumber:   s.RoundNumber,
		RoundResult:   s.RoundResult.Clone(),
		Deal:          s.Deal,
		Events:        append([]models.EphemeralEvent(nil), s.Events...),
		Error:         s.Error,
		LastPong:      s.LastPong,
	}
	if sel := s.Interaction.Selected; sel != nil {
		c := *sel
		v.Selected = &c
	}
	for _, opt := range s.Interaction.Options {
		v.Options = append(v.Options, append([]string(nil), opt...))
	}
	v.Pending = sortedIDs(s.Interaction.Pending)
	return v
}

// Derived values are computed from the snapshot on every read.

// IsLocalTurn reports whether the local player is to move.
func (v View) IsLocalTurn() bool { return v.Game != nil && v.Game.IsLocalTurn }

// Table returns the cards on the table, or nil before the first state.
func (v View) Table() []models.Card { return Table(v.Game) }

// LocalHand returns the local player's hand, or nil before the first state.
func (v View) LocalHand() []models.Card { return LocalHand(v.Game) }

// CurrentPlayer returns the id of the player to move.
func (v View) CurrentPlayer() string { return CurrentPlayer(v.Game, v.Session.LocalPlayerID) }

// Opponent returns the opponent id, falling back to the snapshot's
// player map when game_started did not carry it.
func (v View) Opponent() string { return Opponent(v.Game, v.Session) }

// Table returns the cards on the table, nil without a snapshot.
func Table(g *models.GameState) []models.Card {
	if g == nil {
		return nil
	}
	return g.Table
}

// LocalHand returns the local player's hand, nil without a snapshot.
func LocalHand(g *models.GameState) []models.Card {
	if g == nil {
		return nil
	}
	return g.LocalHand
}

// CurrentPlayer returns who holds the turn. Without current_player_id it
// is derived from the turn flag; without a snapshot it is empty.
func CurrentPlayer(g *models.GameState, localPlayerID string) string {
	if g == nil {
		return ""
	}
	if g.CurrentPlayerID != "" {
		return g.CurrentPlayerID
	}
	if g.IsLocalTurn {
		return localPlayerID
	}
	for id := range g.Players {
		if id != localPlayerID {
			return id
		}
	}
	return ""
}

// Opponent prefers the id game_started announced and otherwise picks the
// other player of the snapshot. Empty when neither is known.
func Opponent(g *models.GameState, session models.Session) string {
	if session.OpponentID != "" {
		return session.OpponentID
	}
	if g == nil {
		return ""
	}
	for id := range g.Players {
		if id != session.LocalPlayerID {
			return id
		}
	}
	return ""
}

func sortedIDs(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HandCard looks a card up in the local hand.
func (v View) HandCard(id string) (models.Card, bool) { return models.FindCard(v.LocalHand(), id) }

// TableCard looks a card up on the table.
func (v View) TableCard(id string) (models.Card, bool) { return models.FindCard(v.Table(), id) }
