package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mcdev12/scopa/go/clients/lobby_client"
	"github.com/mcdev12/scopa/go/internal/bridge"
	"github.com/mcdev12/scopa/go/internal/identity"
	"github.com/mcdev12/scopa/go/internal/models"
	"github.com/mcdev12/scopa/go/internal/relay"
	"github.com/mcdev12/scopa/go/internal/table"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		log.Error().Err(err).Msg("scopa client failed")
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	var (
		configPath   string
		server       string
		joinCode     string
		listen       string
		natsURL      string
		identityFile string
		logLevel     string
		create       bool
		resume       bool
		reconnect    bool
		jetStream    bool
	)

	flagSet := pflag.NewFlagSet("scopa-client", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to a YAML config file")
	flagSet.StringVar(&server, "server", "", "game server base URL (default http://localhost:8000)")
	flagSet.BoolVar(&create, "create", false, "create a new session and wait for an opponent")
	flagSet.StringVar(&joinCode, "join", "", "join the session with this join code")
	flagSet.BoolVar(&resume, "resume", false, "reconnect with the cached identity")
	flagSet.StringVar(&listen, "listen", "", "view bridge listen address, empty string disables it")
	flagSet.StringVar(&natsURL, "nats", "", "relay sweep events and round results to this NATS server")
	flagSet.BoolVar(&jetStream, "jetstream", false, "publish relay envelopes through JetStream")
	flagSet.StringVar(&identityFile, "identity", "", "identity cache file (default in the user config dir)")
	flagSet.BoolVar(&reconnect, "reconnect", false, "reconnect automatically when the connection drops")
	flagSet.StringVar(&logLevel, "log-level", "info", "log level")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	zerolog.SetGlobalLevel(level)

	cfg := defaultConfig()
	if configPath != "" {
		if err := loadConfig(configPath, cfg); err != nil {
			return err
		}
	}
	if server != "" {
		cfg.Server = server
	}
	if flagSet.Changed("listen") {
		cfg.Bridge.Listen = listen
	}
	if natsURL != "" {
		cfg.Relay = true
		cfg.NATS.URL = natsURL
	}
	if jetStream {
		cfg.NATS.JetStream = true
	}
	if identityFile != "" {
		cfg.IdentityPath = identityFile
	}
	if reconnect {
		cfg.Client.Connection.Reconnect.Enabled = true
	}
	cfg.Client.Connection.URL = cfg.Server

	modes := 0
	for _, set := range []bool{create, joinCode != "", resume} {
		if set {
			modes++
		}
	}
	if modes != 1 {
		return errors.New("exactly one of --create, --join or --resume is required")
	}

	identityPath := cfg.IdentityPath
	if identityPath == "" {
		if identityPath, err = identity.DefaultPath(); err != nil {
			return err
		}
	}
	store := identity.NewStore(identityPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session, err := obtainSession(ctx, cfg, store, create, joinCode)
	if err != nil {
		return err
	}

	log.Info().
		Str("server", cfg.Server).
		Str("session_id", session.SessionID).
		Str("player_id", session.LocalPlayerID).
		Str("join_code", session.JoinCode).
		Msg("starting scopa client")

	// Relay derived notifications when NATS is configured
	var observer table.Observer = table.NoOpObserver{}
	var rel *relay.Relay
	if cfg.Relay {
		publisher, err := relay.NewNATSPublisher(cfg.NATS)
		if err != nil {
			return err
		}
		defer publisher.Close()

		rel = relay.New(publisher, cfg.NATS.SubjectPrefix)
		rel.Start(ctx)
		observer = rel
	}

	counters := table.NewCounterMetrics()
	client := table.NewClient(ctx, cfg.Client,
		table.WithMetricsCollector(counters),
		table.WithSessionObserver(observer),
	)
	defer client.Close()

	if err := client.Connect(ctx, session); err != nil {
		return fmt.Errorf("connect to session %s: %w", session.SessionID, err)
	}

	var bridgeServer *http.Server
	if cfg.Bridge.Listen != "" {
		bridgeServer = bridge.NewServer(cfg.Bridge.Listen, bridge.NewHandler(client, counters))
		go func() {
			log.Info().Str("addr", bridgeServer.Addr).Msg("view bridge starting")
			if err := bridgeServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("view bridge failed")
				cancel()
			}
		}()
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if bridgeServer != nil {
		if err := bridgeServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("view bridge shutdown failed")
		}
	}

	client.Close()
	if rel != nil {
		rel.Stop()
		published, dropped := rel.Stats()
		log.Info().Uint64("published", published).Uint64("dropped", dropped).Msg("relay stopped")
	}

	log.Info().Interface("counters", counters.Snapshot()).Msg("scopa client shutdown complete")
	return nil
}

// obtainSession creates, joins or resumes a seat and caches the result
func obtainSession(ctx context.Context, cfg *Config, store *identity.Store, create bool, joinCode string) (models.Session, error) {
	if !create && joinCode == "" {
		id, err := store.Load()
		if err != nil {
			return models.Session{}, fmt.Errorf("resume from %s: %w", store.Path(), err)
		}
		if id.Server != "" {
			cfg.Server = id.Server
			cfg.Client.Connection.URL = id.Server
		}
		return id.Session, nil
	}

	base, err := lobbyURL(cfg.Server)
	if err != nil {
		return models.Session{}, err
	}
	lobby := lobby_client.NewLobbyClient(base)

	var session models.Session
	if create {
		session, err = lobby.CreateSession(ctx)
	} else {
		session, err = lobby.JoinSession(ctx, joinCode)
	}
	if err != nil {
		return models.Session{}, err
	}

	if err := store.Save(identity.Identity{Server: cfg.Server, Session: session}); err != nil {
		log.Warn().Err(err).Msg("could not cache identity, --resume will not work")
	}
	return session, nil
}
