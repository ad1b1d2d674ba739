package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Publisher delivers an encoded envelope to a subject
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Close() error
}

// LogPublisher only logs what it would publish, for running without NATS
type LogPublisher struct{}

func (p *LogPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	log.Debug().Str("subject", subject).Int("size", len(data)).Msg("would publish to NATS")
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// NATSConfig holds configuration for the NATS publisher
type NATSConfig struct {
	URL           string        `yaml:"url"`
	SubjectPrefix string        `yaml:"subject_prefix"` // e.g. "scopa.client"
	JetStream     bool          `yaml:"jetstream"`
	MaxReconnects int           `yaml:"max_reconnects"`
	ReconnectWait time.Duration `yaml:"reconnect_wait"`
}

// DefaultNATSConfig returns default NATS configuration
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "scopa.client",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// NATSPublisher publishes envelopes over core NATS, or through JetStream
// when the stream should persist them
type NATSPublisher struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// NewNATSPublisher connects to NATS
func NewNATSPublisher(config NATSConfig) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name("scopa-client"),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	p := &NATSPublisher{nc: nc}
	if config.JetStream {
		js, err := jetstream.New(nc)
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("create JetStream context: %w", err)
		}
		p.js = js
	}
	return p, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if p.js != nil {
		if _, err := p.js.Publish(ctx, subject, data); err != nil {
			return fmt.Errorf("jetstream publish %s: %w", subject, err)
		}
		return nil
	}
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection
func (p *NATSPublisher) Close() error {
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	return nil
}
