package table

import (
	"errors"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/scopa/go/internal/models"
	"github.com/mcdev12/scopa/go/internal/table/events"
	"github.com/rs/zerolog/log"
)

// Transport is what the dispatcher needs from the connection manager.
type Transport interface {
	Sender
	Status() models.ConnectionStatus
	// SetProtocolStatus applies a status change requested by a protocol
	// message rather than by a transport event.
	SetProtocolStatus(status models.ConnectionStatus)
}

// Observer receives notifications derived by the dispatcher.
type Observer interface {
	OnStatus(session models.Session, status models.ConnectionStatus)
	OnEvent(session models.Session, event models.EphemeralEvent)
	OnRoundResult(session models.Session, result models.RoundResult)
}

// NoOpObserver ignores every notification.
type NoOpObserver struct{}

func (NoOpObserver) OnStatus(models.Session, models.ConnectionStatus) {}
func (NoOpObserver) OnEvent(models.Session, models.EphemeralEvent)    {}
func (NoOpObserver) OnRoundResult(models.Session, models.RoundResult) {}

const opponentDisconnectedMessage = "Opponent disconnected"

type timerKind int

const (
	timerError timerKind = iota
	timerEvent
	timerDeal
)

// timerFired is posted back to the session loop when a timer expires.
type timerFired struct {
	kind  timerKind
	token uint64
	id    string
}

// Dispatcher interprets inbound frames one at a time and is the only
// writer of authoritative state.
type Dispatcher struct {
	state     *State
	transport Transport
	selector  *CaptureSelector
	detector  *EventDetector
	rounds    *RoundTracker
	clock     clockwork.Clock
	config    Config
	post      func(msg interface{})
	metrics   MetricsCollector
	observer  Observer

	lastStatus  models.ConnectionStatus
	errorTimer  clockwork.Timer
	eventTimers map[string]clockwork.Timer
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

func WithMetrics(m MetricsCollector) DispatcherOption {
	return func(d *Dispatcher) {
		if m != nil {
			d.metrics = m
		}
	}
}

func WithObserver(o Observer) DispatcherOption {
	return func(d *Dispatcher) {
		if o != nil {
			d.observer = o
		}
	}
}

// NewDispatcher wires a dispatcher and its collaborators around state.
// post must hand messages back to the goroutine that owns state.
func NewDispatcher(state *State, transport Transport, clock clockwork.Clock, config Config, post func(msg interface{}), opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		state:       state,
		transport:   transport,
		selector:    NewCaptureSelector(state, transport),
		detector:    NewEventDetector(clock, config.SweepWindow),
		rounds:      NewRoundTracker(state, clock, config.DealWindow, post),
		clock:       clock,
		config:      config,
		post:        post,
		metrics:     &NoOpMetricsCollector{},
		observer:    NoOpObserver{},
		lastStatus:  models.StatusDisconnected,
		eventTimers: make(map[string]clockwork.Timer),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Selector returns the capture selector bound to the same state.
func (d *Dispatcher) Selector() *CaptureSelector { return d.selector }

// Rounds returns the round tracker bound to the same state.
func (d *Dispatcher) Rounds() *RoundTracker { return d.rounds }

// HandleFrame decodes and applies one raw frame. Malformed and unknown
// frames are logged, counted and dropped without touching state.
func (d *Dispatcher) HandleFrame(data []byte) error {
	frame, err := ParseFrame(data)
	if err != nil {
		if errors.Is(err, ErrUnknownMessage) {
			d.metrics.RecordDiscardedFrame("unknown_type")
			log.Warn().Str("type", string(frame.Type)).Msg("discarding unrecognized message")
		} else {
			d.metrics.RecordDiscardedFrame("malformed")
			log.Warn().Err(err).Msg("discarding malformed frame")
		}
		return err
	}

	d.metrics.RecordFrame(string(frame.Type))
	d.Apply(frame)
	return nil
}

// Apply runs the effect of a decoded frame.
func (d *Dispatcher) Apply(frame Frame) {
	s := d.state

	switch frame.Type {
	case MessageTypeWaiting:
		d.setStatus(models.StatusWaiting)
		s.Waiting = true

	case MessageTypeGameStarted:
		p, _ := frame.Payload.(events.GameStartedPayload)
		d.setStatus(models.StatusConnected)
		s.Waiting = false
		// the seat is taken even if waiting was never observed
		s.Session.JoinCode = ""
		if p.OpponentID != "" {
			s.Session.OpponentID = p.OpponentID
		}
		if p.YourID != "" && p.YourID != s.Session.LocalPlayerID {
			log.Warn().
				Str("your_id", p.YourID).
				Str("player_id", s.Session.LocalPlayerID).
				Msg("server addressed a different player id")
		}
		s.ClearInteraction()
		d.rounds.ClearResult()
		s.Game = nil
		d.rounds.BeginDeal(models.DealKindFull, p.Round)

	case MessageTypeCardsDealt:
		p, _ := frame.Payload.(events.CardsDealtPayload)
		s.ClearInteraction()
		d.rounds.BeginDeal(models.DealKindHandsOnly, p.Round)

	case MessageTypeState:
		p, _ := frame.Payload.(events.StatePayload)
		// diff against the previous snapshot before it is replaced
		derived := d.detector.Diff(s.Game, p.State, s.Session.LocalPlayerID)
		s.Game = p.State
		d.clearError()
		d.rounds.ClearResult()
		if !s.Game.IsLocalTurn {
			s.ClearInteraction()
		}
		d.addEvents(derived)

	case MessageTypeCaptures:
		p, _ := frame.Payload.(events.CapturesPayload)
		if !d.selector.ApplyOptions(p.CardID, p.Options) {
			d.metrics.RecordDiscardedFrame("stale_captures")
			log.Debug().Str("card_id", p.CardID).Msg("ignoring captures for a superseded selection")
		}

	case MessageTypeRoundOver:
		p, _ := frame.Payload.(events.RoundOverPayload)
		result := models.RoundResult{
			RoundNumber: p.RoundNumber,
			RoundScores: p.RoundScores,
			Cumulative:  p.Cumulative,
			Sweeps:      p.Scopas,
		}
		d.rounds.ShowResult(result)
		d.observer.OnRoundResult(s.Session, *result.Clone())

	case MessageTypeError:
		p, _ := frame.Payload.(events.ErrorPayload)
		log.Info().Str("message", p.Message).Msg("server rejected action")
		d.setTransientError(p.Message)

	case MessageTypeOpponentDisconnected:
		d.setStatus(models.StatusDisconnected)
		d.setTransientError(opponentDisconnectedMessage)

	case MessageTypePong:
		s.LastPong = d.clock.Now()
	}
}

// NoteStatus records the connection status seen by the session. Leaving
// waiting clears the join code.
func (d *Dispatcher) NoteStatus(status models.ConnectionStatus) {
	if status == d.lastStatus {
		return
	}
	if d.lastStatus == models.StatusWaiting {
		d.state.Session.JoinCode = ""
	}
	d.lastStatus = status
	d.observer.OnStatus(d.state.Session, status)
}

// HandleTimer applies a timer expiry posted back by post.
func (d *Dispatcher) HandleTimer(t timerFired) {
	switch t.kind {
	case timerError:
		if t.token == d.state.errorToken {
			d.state.Error = ""
			d.errorTimer = nil
		}
	case timerEvent:
		d.removeEvent(t.id)
	case timerDeal:
		d.rounds.expireDeal(t.token)
	}
}

// Stop cancels every pending timer.
func (d *Dispatcher) Stop() {
	if d.errorTimer != nil {
		d.errorTimer.Stop()
		d.errorTimer = nil
	}
	for id, t := range d.eventTimers {
		t.Stop()
		delete(d.eventTimers, id)
	}
	d.rounds.Stop()
}

func (d *Dispatcher) setStatus(status models.ConnectionStatus) {
	d.transport.SetProtocolStatus(status)
	d.NoteStatus(d.transport.Status())
}

// setTransientError replaces the visible error and restarts its expiry.
func (d *Dispatcher) setTransientError(message string) {
	d.state.Error = message
	d.state.errorToken++
	if d.errorTimer != nil {
		d.errorTimer.Stop()
		d.errorTimer = nil
	}
	if d.post == nil || d.config.ErrorWindow <= 0 {
		return
	}
	token := d.state.errorToken
	d.errorTimer = d.clock.AfterFunc(d.config.ErrorWindow, func() {
		d.post(timerFired{kind: timerError, token: token})
	})
}

func (d *Dispatcher) clearError() {
	if d.state.Error == "" {
		return
	}
	d.state.Error = ""
	d.state.errorToken++
	if d.errorTimer != nil {
		d.errorTimer.Stop()
		d.errorTimer = nil
	}
}

// addEvents appends sweep events, evicting the oldest beyond the cap.
func (d *Dispatcher) addEvents(derived []models.EphemeralEvent) {
	for _, ev := range derived {
		d.state.Events = append(d.state.Events, ev)
		if limit := d.config.MaxEphemeralEvents; limit > 0 {
			for len(d.state.Events) > limit {
				d.removeEvent(d.state.Events[0].ID)
			}
		}

		if d.post != nil {
			id := ev.ID
			d.eventTimers[id] = d.clock.AfterFunc(ev.ExpiresAt.Sub(ev.CreatedAt), func() {
				d.post(timerFired{kind: timerEvent, id: id})
			})
		}

		d.metrics.RecordEvent(string(ev.Kind))
		d.observer.OnEvent(d.state.Session, ev)
		log.Info().
			Str("kind", string(ev.Kind)).
			Str("owner", ev.OwnerPlayerID).
			Bool("is_local", ev.IsLocal).
			Msg("ephemeral event")
	}
}

func (d *Dispatcher) removeEvent(id string) {
	if t, ok := d.eventTimers[id]; ok {
		t.Stop()
		delete(d.eventTimers, id)
	}
	kept := d.state.Events[:0]
	for _, ev := range d.state.Events {
		if ev.ID != id {
			kept = append(kept, ev)
		}
	}
	d.state.Events = kept
}
