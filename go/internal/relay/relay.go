package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/scopa/go/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	defaultQueueSize      = 64
	defaultPublishTimeout = 5 * time.Second
)

type outgoing struct {
	subject string
	data    []byte
}

// Relay forwards session notifications to a Publisher. Notifications
// arrive on the session loop and are queued so a slow broker never
// stalls it; a full queue drops the notification.
type Relay struct {
	publisher Publisher
	prefix    string
	queue     chan outgoing
	now       func() time.Time

	dropped   atomic.Uint64
	published atomic.Uint64

	wg       sync.WaitGroup
	stopOnce sync.Once
	stop     chan struct{}
}

// New creates a relay publishing under prefix. Call Start before use.
func New(publisher Publisher, prefix string) *Relay {
	return &Relay{
		publisher: publisher,
		prefix:    prefix,
		queue:     make(chan outgoing, defaultQueueSize),
		now:       time.Now,
		stop:      make(chan struct{}),
	}
}

// Start runs the publishing worker until ctx is done or Stop is called.
func (r *Relay) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(ctx)
	}()
}

// Stop drains what is already queued and waits for the worker.
func (r *Relay) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	r.wg.Wait()
}

func (r *Relay) OnStatus(session models.Session, status models.ConnectionStatus) {
	r.enqueue(session, EventTypeStatus, map[string]string{"status": string(status)})
}

func (r *Relay) OnEvent(session models.Session, event models.EphemeralEvent) {
	r.enqueue(session, string(event.Kind), event)
}

func (r *Relay) OnRoundResult(session models.Session, result models.RoundResult) {
	r.enqueue(session, EventTypeRoundResult, result)
}

// Stats returns published and dropped counts.
func (r *Relay) Stats() (published, dropped uint64) {
	return r.published.Load(), r.dropped.Load()
}

// Subject returns <prefix>.<session>.<type>.
func (r *Relay) Subject(sessionID, eventType string) string {
	return fmt.Sprintf("%s.%s.%s", r.prefix, sessionID, eventType)
}

func (r *Relay) enqueue(session models.Session, eventType string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal relay payload")
		return
	}
	data, err := json.Marshal(Envelope{
		EventID:   uuid.New(),
		EventType: eventType,
		SessionID: session.SessionID,
		PlayerID:  session.LocalPlayerID,
		Timestamp: r.now().UTC(),
		Payload:   raw,
	})
	if err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal relay envelope")
		return
	}

	select {
	case r.queue <- outgoing{subject: r.Subject(session.SessionID, eventType), data: data}:
	default:
		r.dropped.Add(1)
		log.Warn().Str("event_type", eventType).Msg("relay queue full, dropping notification")
	}
}

func (r *Relay) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			r.drain(ctx)
			return
		case msg := <-r.queue:
			r.publish(ctx, msg)
		}
	}
}

func (r *Relay) drain(ctx context.Context) {
	for {
		select {
		case msg := <-r.queue:
			r.publish(ctx, msg)
		default:
			return
		}
	}
}

func (r *Relay) publish(ctx context.Context, msg outgoing) {
	pubCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()

	if err := r.publisher.Publish(pubCtx, msg.subject, msg.data); err != nil {
		log.Error().Err(err).Str("subject", msg.subject).Msg("failed to publish notification")
		return
	}
	r.published.Add(1)
}
