package table

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/scopa/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(window time.Duration) (*RoundTracker, *State, *clockwork.FakeClock, chan interface{}) {
	state := NewState(models.Session{SessionID: "s-1", LocalPlayerID: localID})
	clock := clockwork.NewFakeClock()
	posted := make(chan interface{}, 4)
	rt := NewRoundTracker(state, clock, window, func(msg interface{}) { posted <- msg })
	return rt, state, clock, posted
}

func intPtr(v int) *int { return &v }

func TestBeginDeal(t *testing.T) {
	rt, state, _, _ := newTestTracker(0)

	rt.BeginDeal(models.DealKindFull, intPtr(2))
	assert.Equal(t, models.DealPhase{Active: true, Kind: models.DealKindFull, Round: 2}, state.Deal)
	assert.Equal(t, 2, state.RoundNumber)

	rt.BeginDeal(models.DealKindHandsOnly, nil)
	assert.Equal(t, models.DealPhase{Active: true, Kind: models.DealKindHandsOnly, Round: 2}, state.Deal)

	rt.FinishDeal()
	assert.False(t, state.Deal.Active)
}

func TestDealWindowExpires(t *testing.T) {
	rt, state, clock, posted := newTestTracker(time.Second)
	defer rt.Stop()

	rt.BeginDeal(models.DealKindFull, intPtr(1))
	clock.Advance(time.Second)

	select {
	case msg := <-posted:
		tf := msg.(timerFired)
		require.Equal(t, timerDeal, tf.kind)
		rt.expireDeal(tf.token)
	case <-time.After(time.Second):
		t.Fatal("deal timer did not fire")
	}
	assert.False(t, state.Deal.Active)
}

func TestDealWindow_StaleTokenIgnored(t *testing.T) {
	rt, state, _, _ := newTestTracker(time.Second)
	defer rt.Stop()

	rt.BeginDeal(models.DealKindFull, intPtr(1))
	stale := state.dealToken
	rt.BeginDeal(models.DealKindHandsOnly, nil)

	rt.expireDeal(stale)
	assert.True(t, state.Deal.Active)
	assert.Equal(t, models.DealKindHandsOnly, state.Deal.Kind)
}

func TestShowResultFreezesInteraction(t *testing.T) {
	rt, state, _, _ := newTestTracker(0)
	state.Game = &models.GameState{IsLocalTurn: true}
	selected := card("h1", 7)
	state.Interaction = Interaction{Selected: &selected, Options: [][]string{{"c1"}}}

	rt.ShowResult(models.RoundResult{RoundNumber: 1, RoundScores: map[string]int{localID: 2}})

	assert.True(t, state.Frozen())
	assert.False(t, state.Interaction.Active())
	require.NotNil(t, state.RoundResult)
	assert.Equal(t, 2, state.RoundResult.RoundScores[localID])

	rt.ClearResult()
	assert.False(t, state.Frozen())
}
