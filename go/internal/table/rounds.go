package table

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/scopa/go/internal/models"
	"github.com/rs/zerolog/log"
)

// RoundTracker turns round-boundary messages into the deal-phase and
// round-result flags presentation reads.
type RoundTracker struct {
	state  *State
	clock  clockwork.Clock
	window time.Duration
	post   func(msg interface{})
	timer  clockwork.Timer
}

// NewRoundTracker creates a tracker. post delivers timer expiries back
// to the session loop.
func NewRoundTracker(state *State, clock clockwork.Clock, window time.Duration, post func(msg interface{})) *RoundTracker {
	return &RoundTracker{state: state, clock: clock, window: window, post: post}
}

// BeginDeal starts a deal phase of the given kind. A nil round keeps the
// current round number.
func (r *RoundTracker) BeginDeal(kind models.DealKind, round *int) {
	if round != nil {
		r.state.RoundNumber = *round
	}
	r.state.dealToken++
	r.state.Deal = models.DealPhase{Active: true, Kind: kind, Round: r.state.RoundNumber}

	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if r.window > 0 && r.post != nil {
		token := r.state.dealToken
		r.timer = r.clock.AfterFunc(r.window, func() {
			r.post(timerFired{kind: timerDeal, token: token})
		})
	}

	log.Debug().
		Str("kind", string(kind)).
		Int("round", r.state.RoundNumber).
		Msg("deal phase started")
}

// FinishDeal ends the current deal phase.
func (r *RoundTracker) FinishDeal() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.state.Deal = models.DealPhase{}
}

// expireDeal ends the deal phase only if it is still the one the timer
// was armed for.
func (r *RoundTracker) expireDeal(token uint64) {
	if token != r.state.dealToken || !r.state.Deal.Active {
		return
	}
	r.timer = nil
	r.state.Deal = models.DealPhase{}
}

// ShowResult freezes interaction and surfaces the round result until the
// next round starts.
func (r *RoundTracker) ShowResult(result models.RoundResult) {
	r.state.RoundResult = &result
	r.state.ClearInteraction()
}

// ClearResult removes the round result.
func (r *RoundTracker) ClearResult() {
	r.state.RoundResult = nil
}

// Stop releases the deal timer.
func (r *RoundTracker) Stop() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}
