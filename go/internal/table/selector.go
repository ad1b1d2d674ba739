package table

import (
	"errors"

	"github.com/mcdev12/scopa/go/internal/models"
	"github.com/mcdev12/scopa/go/internal/table/events"
	"github.com/rs/zerolog/log"
)

// Sender transmits an outbound protocol message.
type Sender interface {
	Send(v interface{}) error
}

// CaptureSelector manages the local select/toggle workflow over
// State.Interaction. It never validates legality; the server rejects
// illegal plays with an error frame.
type CaptureSelector struct {
	state  *State
	sender Sender
}

// NewCaptureSelector creates a selector bound to a state and a sender.
func NewCaptureSelector(state *State, sender Sender) *CaptureSelector {
	return &CaptureSelector{state: state, sender: sender}
}

// SelectItem handles a tap on a hand card. Tapping the selected card
// again discards it when it has no capture options and deselects it
// otherwise. Tapping another card starts a new selection and asks the
// server for its capture options.
func (s *CaptureSelector) SelectItem(card models.Card) {
	if !s.state.IsLocalTurn() || s.state.Frozen() {
		return
	}

	in := &s.state.Interaction
	if in.Selected != nil && in.Selected.ID == card.ID {
		if len(in.Options) == 0 {
			s.ExecutePlay(card.ID, nil)
			return
		}
		s.Cancel()
		return
	}

	selected := card
	s.state.Interaction = Interaction{
		Selected: &selected,
		Pending:  make(map[string]struct{}),
	}
	s.send(events.NewGetCapturesMessage(card.ID))
}

// ToggleTableItem adds or removes a table card from the pending set and
// plays as soon as the pending set equals one of the capture options.
func (s *CaptureSelector) ToggleTableItem(card models.Card) {
	in := &s.state.Interaction
	if in.Selected == nil || !s.state.IsLocalTurn() {
		return
	}

	_, pending := in.Pending[card.ID]
	if !pending && !optionsContain(in.Options, card.ID) {
		return
	}

	if in.Pending == nil {
		in.Pending = make(map[string]struct{})
	}
	if pending {
		delete(in.Pending, card.ID)
	} else {
		in.Pending[card.ID] = struct{}{}
	}

	if option, ok := MatchOption(in.Options, in.Pending); ok {
		s.ExecutePlay(in.Selected.ID, option)
	}
}

// Cancel clears the interaction unconditionally.
func (s *CaptureSelector) Cancel() {
	s.state.ClearInteraction()
}

// ExecutePlay sends the play and clears the interaction. It is the only
// path by which a play leaves the client.
func (s *CaptureSelector) ExecutePlay(cardID string, captureIDs []string) {
	s.send(events.NewPlayMessage(cardID, captureIDs))
	s.state.ClearInteraction()
}

// ApplyOptions installs the capture options answered for cardID. It
// returns false when the answer no longer matches the selection; an
// empty cardID is accepted for servers that do not echo it.
func (s *CaptureSelector) ApplyOptions(cardID string, options [][]string) bool {
	in := &s.state.Interaction
	if in.Selected == nil {
		return false
	}
	if cardID != "" && cardID != in.Selected.ID {
		return false
	}

	in.Options = make([][]string, 0, len(options))
	for _, opt := range options {
		in.Options = append(in.Options, append([]string(nil), opt...))
	}
	in.OptionsLoaded = true

	// keep pending a subset of the new options
	for id := range in.Pending {
		if !optionsContain(in.Options, id) {
			delete(in.Pending, id)
		}
	}
	return true
}

func (s *CaptureSelector) send(v interface{}) {
	if err := s.sender.Send(v); err != nil && !errors.Is(err, ErrNotConnected) {
		log.Error().Err(err).Msg("failed to send outbound action")
	}
}

// MatchOption returns the option whose members are exactly the pending
// set, regardless of order. A partial subset never matches.
func MatchOption(options [][]string, pending map[string]struct{}) ([]string, bool) {
	if len(pending) == 0 {
		return nil, false
	}
	for _, opt := range options {
		if sameSet(opt, pending) {
			return opt, true
		}
	}
	return nil, false
}

func sameSet(option []string, set map[string]struct{}) bool {
	seen := make(map[string]struct{}, len(option))
	for _, id := range option {
		if _, ok := set[id]; !ok {
			return false
		}
		seen[id] = struct{}{}
	}
	return len(seen) == len(set)
}

func optionsContain(options [][]string, id string) bool {
	for _, opt := range options {
		for _, member := range opt {
			if member == id {
				return true
			}
		}
	}
	return false
}
