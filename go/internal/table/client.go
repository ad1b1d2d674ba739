package table

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/scopa/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Client is one session seat. A single goroutine owns the session state;
// transport frames, timer expiries and user commands all reach it
// through the inbox and are handled one at a time.
type Client struct {
	config   Config
	clock    clockwork.Clock
	metrics  MetricsCollector
	observer Observer
	dialer   *websocket.Dialer
	conn     *ConnectionManager

	inbox     chan interface{}
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once

	// owned by the loop goroutine
	state      *State
	dispatcher *Dispatcher

	// frames below this generation predate the current session
	minGeneration uint64
}

// Option customizes a Client.
type Option func(*Client)

// WithClock replaces the clock used by every timer of the session.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithMetricsCollector records frame, event and send counters.
func WithMetricsCollector(m MetricsCollector) Option {
	return func(c *Client) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithSessionObserver receives status changes, sweep events and round
// results as they are derived.
func WithSessionObserver(o Observer) Option {
	return func(c *Client) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithDialer overrides the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

type frameMsg struct {
	generation uint64
	data       []byte
}

type statusMsg struct{}

type commandMsg struct {
	run   func() error
	reply chan error
}

// NewClient starts the session loop. It runs until ctx is cancelled or
// Close is called.
func NewClient(ctx context.Context, config Config, opts ...Option) *Client {
	c := &Client{
		config:   config,
		clock:    clockwork.NewRealClock(),
		metrics:  &NoOpMetricsCollector{},
		observer: NoOpObserver{},
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	size := config.InboxSize
	if size <= 0 {
		size = 64
	}
	c.inbox = make(chan interface{}, size)
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.conn = NewConnectionManager(config.Connection, clientHandler{c}, c.clock, c.metrics)
	if c.dialer != nil {
		c.conn.dialer = c.dialer
	}
	c.resetSession(models.Session{})

	go c.run()
	return c
}

// Connect binds the client to a session seat and opens the connection.
// Reconnecting to the same seat keeps the last known state until the
// server sends a fresh one.
func (c *Client) Connect(ctx context.Context, session models.Session) error {
	err := c.do(ctx, func() error {
		if c.state.Session.SessionID == session.SessionID &&
			c.state.Session.LocalPlayerID == session.LocalPlayerID {
			if session.JoinCode != "" {
				c.state.Session.JoinCode = session.JoinCode
			}
			return nil
		}
		c.resetSession(session)
		c.minGeneration = c.conn.Generation() + 1
		return nil
	})
	if err != nil {
		return err
	}
	return c.conn.Connect(ctx, session.SessionID, session.LocalPlayerID)
}

// Disconnect closes the connection. State is kept for a later Connect.
func (c *Client) Disconnect() {
	c.conn.Disconnect()
}

// Close disconnects and stops the session loop.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.conn.Disconnect()
		c.cancel()
		<-c.done
	})
	return nil
}

// View returns a detached copy of the session state.
func (c *Client) View(ctx context.Context) (View, error) {
	var v View
	err := c.do(ctx, func() error {
		v = c.state.Snapshot(c.conn.Status())
		return nil
	})
	return v, err
}

// SelectCard taps a card of the local hand.
func (c *Client) SelectCard(ctx context.Context, cardID string) error {
	return c.do(ctx, func() error {
		card, ok := models.FindCard(LocalHand(c.state.Game), cardID)
		if !ok {
			return fmt.Errorf("select %s: %w", cardID, ErrUnknownCard)
		}
		c.dispatcher.Selector().SelectItem(card)
		return nil
	})
}

// ToggleCard taps a card on the table.
func (c *Client) ToggleCard(ctx context.Context, cardID string) error {
	return c.do(ctx, func() error {
		card, ok := models.FindCard(Table(c.state.Game), cardID)
		if !ok {
			return fmt.Errorf("toggle %s: %w", cardID, ErrUnknownCard)
		}
		c.dispatcher.Selector().ToggleTableItem(card)
		return nil
	})
}

// Cancel drops the current selection.
func (c *Client) Cancel(ctx context.Context) error {
	return c.do(ctx, func() error {
		c.dispatcher.Selector().Cancel()
		return nil
	})
}

// FinishDeal tells the client the deal animation is over.
func (c *Client) FinishDeal(ctx context.Context) error {
	return c.do(ctx, func() error {
		c.dispatcher.Rounds().FinishDeal()
		return nil
	})
}

// Status returns the connection status.
func (c *Client) Status() models.ConnectionStatus {
	return c.conn.Status()
}

// Metrics returns the collector the client records into.
func (c *Client) Metrics() MetricsCollector {
	return c.metrics
}

// ConnectionStats returns diagnostics about the connection.
func (c *Client) ConnectionStats() map[string]interface{} {
	return c.conn.GetConnectionStats()
}

// Done is closed once the session loop has exited.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) run() {
	defer close(c.done)
	for {
		select {
		case <-c.ctx.Done():
			c.dispatcher.Stop()
			log.Debug().Str("session_id", c.state.Session.SessionID).Msg("session loop stopped")
			return
		case msg := <-c.inbox:
			c.handle(msg)
		}
	}
}

func (c *Client) handle(msg interface{}) {
	switch m := msg.(type) {
	case frameMsg:
		if !c.conn.Accepts(m.generation) || m.generation < c.minGeneration {
			c.metrics.RecordDiscardedFrame("superseded")
			return
		}
		_ = c.dispatcher.HandleFrame(m.data)
	case statusMsg:
		c.dispatcher.NoteStatus(c.conn.Status())
	case timerFired:
		c.dispatcher.HandleTimer(m)
	case commandMsg:
		m.reply <- m.run()
	default:
		log.Warn().Str("type", fmt.Sprintf("%T", msg)).Msg("unexpected inbox message")
	}
}

// resetSession replaces the state for a new seat. Runs on the loop, or
// before it starts.
func (c *Client) resetSession(session models.Session) {
	if c.dispatcher != nil {
		c.dispatcher.Stop()
	}
	prev := c.state
	c.state = NewState(session)
	if prev != nil {
		// expiries armed for the previous seat may still be queued in
		// the inbox, so tokens keep counting instead of restarting
		c.state.errorToken = prev.errorToken
		c.state.dealToken = prev.dealToken
	}
	c.dispatcher = NewDispatcher(c.state, c.conn, c.clock, c.config, c.post,
		WithMetrics(c.metrics),
		WithObserver(c.observer),
	)
}

// do runs fn on the loop goroutine and waits for its result.
func (c *Client) do(ctx context.Context, fn func() error) error {
	cmd := commandMsg{run: fn, reply: make(chan error, 1)}
	select {
	case c.inbox <- cmd:
	case <-c.done:
		return ErrClientClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-c.done:
		return ErrClientClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) post(msg interface{}) {
	select {
	case c.inbox <- msg:
	case <-c.done:
	}
}

// clientHandler feeds transport callbacks into the inbox.
type clientHandler struct {
	c *Client
}

func (h clientHandler) HandleFrame(generation uint64, data []byte) {
	h.c.post(frameMsg{generation: generation, data: data})
}

func (h clientHandler) HandleStatusChange() {
	h.c.post(statusMsg{})
}
