package table

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/scopa/go/internal/models"
	"github.com/stretchr/testify/require"
)

const (
	localID    = "p-local"
	opponentID = "p-remote"
)

type fakeTransport struct {
	mu     sync.Mutex
	status models.ConnectionStatus
	sent   []interface{}
	err    error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{status: models.StatusConnected}
}

func (f *fakeTransport) Send(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, v)
	return nil
}

func (f *fakeTransport) Status() models.ConnectionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeTransport) SetProtocolStatus(status models.ConnectionStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
}

func (f *fakeTransport) Sent() []interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]interface{}(nil), f.sent...)
}

type recordingObserver struct {
	mu       sync.Mutex
	statuses []models.ConnectionStatus
	events   []models.EphemeralEvent
	results  []models.RoundResult
}

func (o *recordingObserver) OnStatus(_ models.Session, status models.ConnectionStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, status)
}

func (o *recordingObserver) OnEvent(_ models.Session, event models.EphemeralEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
}

func (o *recordingObserver) OnRoundResult(_ models.Session, result models.RoundResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, result)
}

func (o *recordingObserver) Statuses() []models.ConnectionStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]models.ConnectionStatus(nil), o.statuses...)
}

type harness struct {
	state     *State
	transport *fakeTransport
	clock     *clockwork.FakeClock
	posted    chan interface{}
	metrics   *CounterMetrics
	observer  *recordingObserver
	d         *Dispatcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		state:     NewState(models.Session{SessionID: "s-1", LocalPlayerID: localID, JoinCode: "ABC123"}),
		transport: newFakeTransport(),
		clock:     clockwork.NewFakeClock(),
		posted:    make(chan interface{}, 16),
		metrics:   NewCounterMetrics(),
		observer:  &recordingObserver{},
	}
	post := func(msg interface{}) { h.posted <- msg }
	h.d = NewDispatcher(h.state, h.transport, h.clock, DefaultConfig(), post,
		WithMetrics(h.metrics),
		WithObserver(h.observer),
	)
	t.Cleanup(h.d.Stop)
	return h
}

func (h *harness) frame(t *testing.T, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, h.d.HandleFrame(data))
}

// fire waits for the next timer expiry posted by the dispatcher and applies it.
func (h *harness) fire(t *testing.T) timerFired {
	t.Helper()
	select {
	case msg := <-h.posted:
		tf, ok := msg.(timerFired)
		require.True(t, ok, "unexpected posted message %T", msg)
		h.d.HandleTimer(tf)
		return tf
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
		return timerFired{}
	}
}

func (h *harness) noTimer(t *testing.T) {
	t.Helper()
	select {
	case msg := <-h.posted:
		t.Fatalf("unexpected timer %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func card(id string, value int) models.Card {
	return models.Card{ID: id, Suit: "coins", Value: value}
}

type snapshotOpts struct {
	localTurn   bool
	hand        []models.Card
	table       []models.Card
	localSweeps int
	oppSweeps   int
}

func snapshot(o snapshotOpts) map[string]interface{} {
	if o.hand == nil {
		o.hand = []models.Card{}
	}
	if o.table == nil {
		o.table = []models.Card{}
	}
	current := opponentID
	if o.localTurn {
		current = localID
	}
	return map[string]interface{}{
		"type": "state",
		"state": map[string]interface{}{
			"phase":             "playing",
			"deck_remaining":    30,
			"table":             o.table,
			"human_hand":        o.hand,
			"is_human_turn":     o.localTurn,
			"current_player_id": current,
			"scores":            map[string]int{localID: 0, opponentID: 0},
			"players": map[string]interface{}{
				localID:    map[string]int{"hand_count": len(o.hand), "captured_count": 0, "scopas": o.localSweeps},
				opponentID: map[string]int{"hand_count": 3, "captured_count": 0, "scopas": o.oppSweeps},
			},
		},
	}
}

func msg(kind string, fields map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{"type": kind}
	for k, v := range fields {
		out[k] = v
	}
	return out
}
