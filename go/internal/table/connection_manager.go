package table

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/scopa/go/internal/models"
	"github.com/mcdev12/scopa/go/internal/table/events"
	"github.com/rs/zerolog/log"
)

// FrameHandler receives inbound frames and status change notifications
// from the connection manager. Both are called from manager goroutines,
// never from inside the handler's own callbacks.
type FrameHandler interface {
	HandleFrame(generation uint64, data []byte)
	HandleStatusChange()
}

// ConnectionManager owns the single websocket connection of a session
type ConnectionManager struct {
	config  ConnectionConfig
	dialer  *websocket.Dialer
	clock   clockwork.Clock
	metrics MetricsCollector
	handler FrameHandler

	// serializes Connect, Disconnect and redial
	connectMu sync.Mutex

	mu         sync.RWMutex
	active     *Connection
	generation uint64
	// frames from generations below acceptFrom were superseded by a
	// Connect or Disconnect
	acceptFrom uint64
	status     models.ConnectionStatus
	target     *dialTarget
	retry      *reconnector

	droppedSends atomic.Uint64
}

// Connection represents the live websocket to the game server
type Connection struct {
	ID          string
	Generation  uint64
	Conn        *websocket.Conn
	Send        chan []byte
	Manager     *ConnectionManager
	ConnectedAt time.Time

	done      chan struct{}
	closeOnce sync.Once
}

type dialTarget struct {
	sessionID string
	playerID  string
}

// NewConnectionManager creates a connection manager. handler must not be nil.
func NewConnectionManager(config ConnectionConfig, handler FrameHandler, clock clockwork.Clock, metrics MetricsCollector) *ConnectionManager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if metrics == nil {
		metrics = &NoOpMetricsCollector{}
	}
	return &ConnectionManager{
		config: config,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.DialTimeout,
			ReadBufferSize:   config.ReadBufferSize,
			WriteBufferSize:  config.WriteBufferSize,
		},
		clock:   clock,
		metrics: metrics,
		handler: handler,
		status:  models.StatusDisconnected,
	}
}

// Connect opens the connection for a session seat. Any prior connection
// is closed first, so at most one connection is ever live. On failure
// the status ends disconnected and the dial error is returned.
func (cm *ConnectionManager) Connect(ctx context.Context, sessionID, playerID string) error {
	cm.connectMu.Lock()
	defer cm.connectMu.Unlock()

	cm.mu.Lock()
	cm.stopRetryLocked()
	prior := cm.active
	cm.active = nil
	cm.generation++
	cm.acceptFrom = cm.generation
	cm.status = models.StatusConnecting
	cm.target = &dialTarget{sessionID: sessionID, playerID: playerID}
	target := *cm.target
	cm.mu.Unlock()

	if prior != nil {
		prior.close()
		log.Info().Str("connection_id", prior.ID).Msg("closed prior connection before reconnecting")
	}
	cm.notify()

	return cm.dial(ctx, target)
}

// Disconnect closes the active connection and cancels any pending
// reconnect. The status is left disconnected.
func (cm *ConnectionManager) Disconnect() {
	cm.connectMu.Lock()
	defer cm.connectMu.Unlock()

	cm.mu.Lock()
	cm.stopRetryLocked()
	cm.target = nil
	c := cm.active
	cm.active = nil
	cm.generation++
	cm.acceptFrom = cm.generation
	changed := cm.status != models.StatusDisconnected
	cm.status = models.StatusDisconnected
	cm.mu.Unlock()

	if c != nil {
		c.close()
		log.Info().Str("connection_id", c.ID).Msg("connection closed by client")
	}
	if changed {
		cm.notify()
	}
}

// Send serializes v and queues it on the active connection. Outside the
// connected status the message is dropped, logged and counted.
func (cm *ConnectionManager) Send(v interface{}) error {
	msgType := outboundType(v)

	cm.mu.RLock()
	c := cm.active
	status := cm.status
	cm.mu.RUnlock()

	if c == nil || status != models.StatusConnected {
		cm.recordDrop(msgType, status)
		return fmt.Errorf("send %s: %w", msgType, ErrNotConnected)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msgType, err)
	}

	select {
	case c.Send <- data:
		return nil
	case <-c.done:
		cm.recordDrop(msgType, models.StatusDisconnected)
		return fmt.Errorf("send %s: %w", msgType, ErrNotConnected)
	default:
		cm.recordDrop(msgType, status)
		return fmt.Errorf("send %s: %w", msgType, ErrSendBufferFull)
	}
}

// SetProtocolStatus applies a status requested by a protocol message. It
// does not notify the handler; the caller is already the consumer. With
// no live connection the status stays as the transport left it.
func (cm *ConnectionManager) SetProtocolStatus(status models.ConnectionStatus) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.active == nil {
		return
	}
	cm.status = status
}

// Status returns the current connection status
func (cm *ConnectionManager) Status() models.ConnectionStatus {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.status
}

// Generation identifies the latest connection attempt.
func (cm *ConnectionManager) Generation() uint64 {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.generation
}

// Accepts reports whether frames tagged with generation may still be
// applied. A lost connection or an automatic redial keeps earlier frames
// of the same seat in order; Connect and Disconnect supersede them.
func (cm *ConnectionManager) Accepts(generation uint64) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return generation >= cm.acceptFrom && generation <= cm.generation
}

// DroppedSends returns how many outbound messages were dropped.
func (cm *ConnectionManager) DroppedSends() uint64 {
	return cm.droppedSends.Load()
}

// GetConnectionStats returns statistics about the connection
func (cm *ConnectionManager) GetConnectionStats() map[string]interface{} {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := map[string]interface{}{
		"status":        string(cm.status),
		"generation":    cm.generation,
		"accept_from":   cm.acceptFrom,
		"dropped_sends": cm.droppedSends.Load(),
	}
	if cm.active != nil {
		stats["connection_id"] = cm.active.ID
		stats["connected_at"] = cm.active.ConnectedAt
	}
	if cm.retry != nil {
		stats["reconnect_attempts"] = cm.retry.attempts
	}
	return stats
}

func (cm *ConnectionManager) recordDrop(msgType string, status models.ConnectionStatus) {
	cm.droppedSends.Add(1)
	cm.metrics.RecordDroppedSend(msgType)
	log.Warn().
		Str("type", msgType).
		Str("status", string(status)).
		Msg("dropping outbound message, connection not ready")
}

// dial opens the websocket for target. connectMu must be held and the
// status must already be connecting.
func (cm *ConnectionManager) dial(ctx context.Context, target dialTarget) error {
	endpoint, err := cm.endpoint(target)
	if err != nil {
		cm.failDial()
		return err
	}

	if cm.config.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cm.config.DialTimeout)
		defer cancel()
	}

	conn, resp, err := cm.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		evt := log.Error().Err(err).Str("url", endpoint)
		if resp != nil {
			evt = evt.Int("http_status", resp.StatusCode)
		}
		evt.Msg("failed to open websocket connection")
		cm.failDial()
		return fmt.Errorf("dial %s: %w", endpoint, err)
	}

	cm.mu.Lock()
	c := &Connection{
		ID:          uuid.New().String(),
		Generation:  cm.generation,
		Conn:        conn,
		Send:        make(chan []byte, cm.sendBufferSize()),
		Manager:     cm,
		ConnectedAt: cm.clock.Now(),
		done:        make(chan struct{}),
	}
	cm.active = c
	cm.status = models.StatusConnected
	cm.mu.Unlock()

	go c.writePump()
	go c.readPump()

	log.Info().
		Str("connection_id", c.ID).
		Str("session_id", target.sessionID).
		Str("player_id", target.playerID).
		Msg("websocket connection established")

	cm.notify()
	return nil
}

func (cm *ConnectionManager) failDial() {
	cm.mu.Lock()
	cm.status = models.StatusDisconnected
	cm.mu.Unlock()
	cm.notify()
}

// endpoint builds <base>/ws/{session_id}/{player_id}, accepting http(s)
// base URLs as well.
func (cm *ConnectionManager) endpoint(target dialTarget) (string, error) {
	base, err := url.Parse(cm.config.URL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch base.Scheme {
	case "http":
		base.Scheme = "ws"
	case "https":
		base.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", base.Scheme)
	}
	return base.JoinPath("ws", target.sessionID, target.playerID).String(), nil
}

func (cm *ConnectionManager) sendBufferSize() int {
	if cm.config.SendBufferSize > 0 {
		return cm.config.SendBufferSize
	}
	return 16
}

// connectionLost handles a read or write failure on c.
func (cm *ConnectionManager) connectionLost(c *Connection, err error) {
	cm.mu.Lock()
	if cm.active != c {
		// already superseded by Connect or Disconnect
		cm.mu.Unlock()
		return
	}
	cm.active = nil
	cm.status = models.StatusDisconnected
	retry := cm.target != nil && cm.config.Reconnect.Enabled && shouldReconnect(err)
	cm.mu.Unlock()

	c.close()
	log.Warn().
		Err(err).
		Str("connection_id", c.ID).
		Bool("reconnect", retry).
		Msg("websocket connection lost")

	cm.notify()
	if retry {
		cm.scheduleReconnect()
	}
}

func (cm *ConnectionManager) notify() {
	if cm.handler != nil {
		cm.handler.HandleStatusChange()
	}
}

// close shuts the connection down once; pumps exit on done.
func (c *Connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		deadline := time.Now().Add(time.Second)
		_ = c.Conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		c.Conn.Close()
	})
}

// writePump handles sending messages and protocol keepalives
func (c *Connection) writePump() {
	var tick <-chan time.Time
	if interval := c.Manager.config.PingInterval; interval > 0 {
		ticker := c.Manager.clock.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.Chan()
	}
	ping, _ := json.Marshal(events.NewPingMessage())

	for {
		select {
		case <-c.done:
			return

		case message := <-c.Send:
			if err := c.write(message); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to write message to WebSocket")
				c.Manager.connectionLost(c, err)
				return
			}

		case <-tick:
			if err := c.write(ping); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to send ping")
				c.Manager.connectionLost(c, err)
				return
			}
		}
	}
}

func (c *Connection) write(message []byte) error {
	if timeout := c.Manager.config.WriteTimeout; timeout > 0 {
		c.Conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	return c.Conn.WriteMessage(websocket.TextMessage, message)
}

// readPump delivers inbound frames to the handler until the connection fails
func (c *Connection) readPump() {
	cfg := c.Manager.config
	if cfg.MaxMessageSize > 0 {
		c.Conn.SetReadLimit(cfg.MaxMessageSize)
	}
	// every ping is answered, so two silent intervals means a dead peer
	idle := time.Duration(0)
	if cfg.PingInterval > 0 {
		idle = 2*cfg.PingInterval + cfg.WriteTimeout
	}

	for {
		if idle > 0 {
			c.Conn.SetReadDeadline(time.Now().Add(idle))
		}
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				// closed locally
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Error().Err(err).Str("connection_id", c.ID).Msg("unexpected WebSocket close error")
				}
			}
			c.Manager.connectionLost(c, err)
			return
		}

		c.Manager.handler.HandleFrame(c.Generation, message)
	}
}

func outboundType(v interface{}) string {
	switch m := v.(type) {
	case events.PlayMessage:
		return m.Type
	case events.GetCapturesMessage:
		return m.Type
	case events.PingMessage:
		return m.Type
	default:
		return "unknown"
	}
}
