package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/miou/go/internal/config"
)

const shutdownTimeout = 10 * time.Second

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	defaultPath := os.Getenv("MIOU_CONFIG")
	if defaultPath == "" {
		defaultPath = "config.yaml"
	}
	configPath := flag.String("config", defaultPath, "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(resolveConfigPath(*configPath))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	setupLogging(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := setupServices(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up services")
	}
	defer services.Close()

	if err := run(ctx, cfg, services); err != nil {
		log.Error().Err(err).Msg("miou stopped with error")
		return
	}
	log.Info().Msg("miou stopped")
}

func run(ctx context.Context, cfg *config.Config, s *Services) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.Dispatcher.Run(ctx) })
	g.Go(func() error { return s.Loop.Run(ctx) })

	if s.Consumer != nil {
		g.Go(func() error { return s.Consumer.Run(ctx) })
	}

	if cfg.HTTP.Addr != "" {
		srv := setupServer(cfg.HTTP.Addr, s)
		g.Go(func() error {
			log.Info().Str("addr", srv.Addr).Msg("status server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	log.Info().
		Str("instance", s.InstanceID).
		Str("tmars_url", cfg.TMars.URL).
		Str("store", cfg.Store.Driver).
		Int("alerts", s.Store.Len()).
		Msg("miou started")

	err := g.Wait()
	s.Scheduler.Stop()
	return err
}

// resolveConfigPath falls back to defaults and environment only when the
// default file is absent.
func resolveConfigPath(path string) string {
	if path != "config.yaml" {
		return path
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("path", path).Msg("no config file, using defaults and environment")
		return ""
	}
	return path
}

func setupLogging(cfg config.LogConfig) {
	zerolog.SetGlobalLevel(cfg.ZerologLevel())
	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}
