package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/bdashore3/Ferrite/internal/config"
	"github.com/bdashore3/Ferrite/internal/logger"
	"github.com/bdashore3/Ferrite/pkg/debrid"
	"github.com/bdashore3/Ferrite/pkg/debrid/cache"
	"github.com/bdashore3/Ferrite/pkg/debrid/engine"
	"github.com/bdashore3/Ferrite/pkg/debrid/session"
	"github.com/bdashore3/Ferrite/pkg/debrid/types"
	"github.com/bdashore3/Ferrite/pkg/server"
)

// logSink forwards status messages to the log when no UI is attached.
type logSink struct {
	logger zerolog.Logger
}

func (s logSink) Report(message string, severity types.Severity) {
	switch severity {
	case types.SeverityError:
		s.logger.Error().Msg(message)
	case types.SeverityWarn:
		s.logger.Warn().Msg(message)
	default:
		s.logger.Info().Msg(message)
	}
}

func run() error {
	configPath := flag.String("config", "ferrite.json", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logger.New("ferrite", logger.Options{Level: cfg.LogLevel, Dir: cfg.LogDir})
	sink := logSink{logger: log}

	storePath := filepath.Join(filepath.Dir(*configPath), "credentials.json")
	store, err := session.NewFileStore(storePath)
	if err != nil {
		return fmt.Errorf("opening credential store: %w", err)
	}

	sessions := session.NewManager(store, sink, log)
	for _, pc := range cfg.Providers {
		client, err := debrid.NewClient(pc, logger.New(pc.Name, logger.Options{Level: cfg.LogLevel, Dir: cfg.LogDir}))
		if err != nil {
			return err
		}
		sessions.Register(client, pc.Enabled)
	}
	sessions.Restore()
	if cfg.PreferredProvider != "" {
		if err := sessions.SetActive(types.Provider(cfg.PreferredProvider)); err != nil {
			log.Warn().Err(err).Msgf("Preferred provider %s not selectable", cfg.PreferredProvider)
		}
	}

	eng := engine.New(cache.New(cfg.GetCacheTTL()), sessions, sink, log)
	srv := server.New(cfg.Server, eng, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return srv.Start(ctx)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
