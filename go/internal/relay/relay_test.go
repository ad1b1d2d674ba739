package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mcdev12/scopa/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	subject string
	data    []byte
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *recordingPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{subject: subject, data: data})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) messages() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.msgs...)
}

var session = models.Session{SessionID: "s-1", LocalPlayerID: "p-1"}

func TestRelay_PublishesEnvelopes(t *testing.T) {
	pub := &recordingPublisher{}
	r := New(pub, "scopa.client")
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }
	r.Start(context.Background())

	r.OnStatus(session, models.StatusWaiting)
	r.OnEvent(session, models.EphemeralEvent{ID: "e-1", Kind: models.EventKindSweep, OwnerPlayerID: "p-2"})
	r.OnRoundResult(session, models.RoundResult{RoundNumber: 2, Cumulative: map[string]int{"p-1": 7}})
	r.Stop()

	msgs := pub.messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "scopa.client.s-1.status", msgs[0].subject)
	assert.Equal(t, "scopa.client.s-1.sweep", msgs[1].subject)
	assert.Equal(t, "scopa.client.s-1.round_result", msgs[2].subject)

	var env Envelope
	require.NoError(t, json.Unmarshal(msgs[1].data, &env))
	assert.Equal(t, EventTypeSweep, env.EventType)
	assert.Equal(t, "s-1", env.SessionID)
	assert.Equal(t, "p-1", env.PlayerID)
	assert.True(t, fixed.Equal(env.Timestamp))

	var ev models.EphemeralEvent
	require.NoError(t, json.Unmarshal(env.Payload, &ev))
	assert.Equal(t, "p-2", ev.OwnerPlayerID)

	sent, dropped := r.Stats()
	assert.Equal(t, uint64(3), sent)
	assert.Zero(t, dropped)
}

func TestRelay_DropsWhenQueueFull(t *testing.T) {
	pub := &recordingPublisher{}
	r := New(pub, "scopa.client")

	// worker not started, so the queue fills up
	for i := 0; i < defaultQueueSize+3; i++ {
		r.OnStatus(session, models.StatusConnected)
	}

	_, dropped := r.Stats()
	assert.Equal(t, uint64(3), dropped)
}

func TestRelay_PublishErrorsAreNotFatal(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	r := New(pub, "scopa.client")
	r.Start(context.Background())

	r.OnStatus(session, models.StatusDisconnected)
	r.Stop()

	sent, _ := r.Stats()
	assert.Zero(t, sent)
}

func TestLogPublisher(t *testing.T) {
	p := &LogPublisher{}
	assert.NoError(t, p.Publish(context.Background(), "scopa.client.s-1.status", []byte(`{}`)))
	assert.NoError(t, p.Close())
}
