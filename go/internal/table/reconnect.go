package table

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/scopa/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Close codes the server uses for an unknown session or a player that
// is not seated in it. Retrying those cannot succeed.
const (
	closeSessionForbidden = 4403
	closeSessionNotFound  = 4404
)

type reconnector struct {
	backoff  backoff.BackOff
	timer    clockwork.Timer
	attempts int
}

func newBackOff(cfg ReconnectConfig) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if cfg.InitialInterval > 0 {
		b.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		b.MaxInterval = cfg.MaxInterval
	}
	b.MaxElapsedTime = cfg.MaxElapsedTime
	b.Reset()
	return b
}

func shouldReconnect(err error) bool {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		switch ce.Code {
		case websocket.CloseNormalClosure, closeSessionForbidden, closeSessionNotFound:
			return false
		}
	}
	return true
}

// scheduleReconnect arms the next redial, or gives up once the backoff
// policy is exhausted.
func (cm *ConnectionManager) scheduleReconnect() {
	cm.mu.Lock()
	if cm.target == nil {
		cm.mu.Unlock()
		return
	}
	if cm.retry == nil {
		cm.retry = &reconnector{backoff: newBackOff(cm.config.Reconnect)}
	}
	next := cm.retry.backoff.NextBackOff()
	if next == backoff.Stop {
		attempts := cm.retry.attempts
		cm.retry = nil
		cm.mu.Unlock()
		log.Warn().Int("attempts", attempts).Msg("giving up on reconnect")
		return
	}
	cm.retry.attempts++
	attempt := cm.retry.attempts
	cm.retry.timer = cm.clock.AfterFunc(next, cm.redial)
	cm.mu.Unlock()

	log.Info().
		Int("attempt", attempt).
		Dur("delay", next).
		Msg("scheduled reconnect")
}

// redial reopens the connection for the last target unless a manual
// Connect or Disconnect got there first.
func (cm *ConnectionManager) redial() {
	cm.connectMu.Lock()

	cm.mu.Lock()
	if cm.target == nil || cm.active != nil || cm.retry == nil {
		cm.mu.Unlock()
		cm.connectMu.Unlock()
		return
	}
	target := *cm.target
	cm.generation++
	cm.status = models.StatusConnecting
	cm.mu.Unlock()
	cm.notify()

	err := cm.dial(context.Background(), target)
	cm.connectMu.Unlock()

	if errors.Is(err, websocket.ErrBadHandshake) {
		// the server refused the seat outright
		cm.mu.Lock()
		cm.retry = nil
		cm.mu.Unlock()
		log.Warn().Err(err).Str("session_id", target.sessionID).Msg("reconnect rejected, giving up")
		return
	}
	if err != nil {
		cm.scheduleReconnect()
		return
	}

	cm.mu.Lock()
	cm.retry = nil
	cm.mu.Unlock()
	log.Info().Str("session_id", target.sessionID).Msg("reconnected")
}

// stopRetryLocked cancels a pending redial. cm.mu must be held.
func (cm *ConnectionManager) stopRetryLocked() {
	if cm.retry == nil {
		return
	}
	if cm.retry.timer != nil {
		cm.retry.timer.Stop()
	}
	cm.retry = nil
}
