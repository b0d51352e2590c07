package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/miou/go/clients/tmars_client"
	"github.com/mcdev12/miou/go/internal/alerts"
	"github.com/mcdev12/miou/go/internal/bot"
	"github.com/mcdev12/miou/go/internal/commands"
	"github.com/mcdev12/miou/go/internal/config"
	"github.com/mcdev12/miou/go/internal/notify"
	"github.com/mcdev12/miou/go/internal/notify/ws"
	"github.com/mcdev12/miou/go/internal/polling"
	"github.com/mcdev12/miou/go/internal/scheduler"
	"github.com/mcdev12/miou/go/internal/tmars"
)

type Services struct {
	InstanceID string

	Store      *alerts.Store
	Scheduler  *scheduler.Scheduler
	Dispatcher *scheduler.SinkDispatcher
	Loop       *polling.Loop
	Bot        *bot.Bot
	Hub        *ws.Hub
	Consumer   *commands.NATSConsumer

	db *sql.DB
	nc *nats.Conn
}

func setupServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	// Wire up dependency injection chain
	// Repository → Store → Scheduler → Bot → Polling loop
	s := &Services{InstanceID: uuid.New().String()[:8]}

	repo, err := s.setupRepository(ctx, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}

	bounds := alerts.Bounds{Min: cfg.Alerts.MinDelayDuration(), Max: cfg.Alerts.MaxDelayDuration()}
	store, err := alerts.NewStore(ctx, repo, bounds)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Store = store

	if cfg.NATS.URL != "" {
		nc, err := notify.Connect(cfg.NATS.URL, "miou-"+s.InstanceID)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.nc = nc
	}

	s.Hub = ws.NewHub(ws.DefaultConfig())
	sinks := notify.MultiSink{notify.LogSink{}}
	if s.nc != nil {
		sinks = append(sinks, notify.NewNATSSink(s.nc, cfg.NATS.NotifySubject))
	}
	// The hub is best effort: a room nobody watches is not a failed delivery.
	hub := notify.SinkFunc(func(ctx context.Context, msg notify.Message) error {
		if err := s.Hub.Send(ctx, msg); err != nil {
			log.Debug().Err(err).Str("room_id", msg.RoomID).Msg("no websocket delivery")
		}
		return nil
	})
	sinks = append(sinks, hub)

	s.Dispatcher = scheduler.NewDispatcher(sinks, scheduler.DispatcherConfig{
		Workers:     cfg.Notify.Workers,
		SendTimeout: cfg.Notify.Timeout(),
	})
	s.Scheduler = scheduler.New(store, s.Dispatcher)
	s.Bot = bot.New(store, s.Scheduler, cfg.Alerts.PruneAfterMisses)

	client := tmars_client.NewTMarsClient(cfg.TMars.URL, cfg.TMars.ServerID, cfg.TMars.Timeout())
	if cfg.Notify.BaseURL != cfg.TMars.URL {
		client.SetPlayerBaseURL(cfg.Notify.BaseURL)
	}
	source := tmars.NewSource(client, nil)
	s.Loop = polling.New(source, polling.Config{
		Interval: cfg.TMars.Interval(),
		Cooldown: cfg.TMars.Cooldown(),
		Timeout:  cfg.TMars.Timeout(),
	}, s.Bot.HandleSnapshot)

	if s.nc != nil {
		handler := commands.NewHandler(store, s.Bot)
		s.Consumer = commands.NewNATSConsumer(s.nc, cfg.NATS.CommandSubject, handler)
	}

	return s, nil
}

func (s *Services) setupRepository(ctx context.Context, cfg *config.Config) (alerts.Repository, error) {
	switch cfg.Store.Driver {
	case "postgres":
		database, err := setupDatabase(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		s.db = database
		repo := alerts.NewPostgresRepository(database)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure alerts schema: %w", err)
		}
		return repo, nil
	case "file":
		return alerts.NewFileRepository(cfg.Store.Path), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// Close releases the connections opened by setupServices.
func (s *Services) Close() {
	if s.Hub != nil {
		s.Hub.Close()
	}
	if s.nc != nil {
		if err := s.nc.Drain(); err != nil {
			log.Warn().Err(err).Msg("failed to drain NATS connection")
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close database")
		}
	}
}
