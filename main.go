package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/dnldd/chanlun/service"
	"github.com/dnldd/chanlun/shared"
	"github.com/rs/zerolog/log"
)

// handleTermination processes context cancellation signals or interrupt signals from the OS.
func handleTermination(ctx context.Context, cancel context.CancelFunc) {
	// Listen for interrupt signals.
	signals := []os.Signal{os.Interrupt}
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, signals...)

	// Wait for the context to be cancelled or an interrupt signal.
	for {
		select {
		case <-ctx.Done():
			return

		case <-interrupt:
			cancel()
		}
	}
}

func main() {
	var cfg Config
	err := loadConfig(&cfg, "")
	if err != nil {
		log.Error().Err(err).Msg("loading config")
		return
	}

	timeframe, err := shared.ParseTimeframe(cfg.Timeframe)
	if err != nil {
		log.Error().Err(err).Msg("parsing timeframe")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svcCfg := service.ServiceConfig{
		Markets:            cfg.Markets,
		Timeframe:          timeframe,
		FMPAPIKey:          cfg.FMPAPIKey,
		FetchInterval:      time.Minute * time.Duration(cfg.FetchInterval),
		SnapshotSize:       int32(cfg.SnapshotSize),
		DatabaseEndpoint:   cfg.DatabaseEndpoint,
		DatabaseUser:       cfg.DatabaseUser,
		DatabasePass:       cfg.DatabasePass,
		RedisAddr:          cfg.RedisAddr,
		RedisPass:          cfg.RedisPass,
		RedisDB:            cfg.RedisDB,
		Replay:             cfg.Replay,
		ReplayDataFilepath: cfg.ReplayDataFilepath,
		Cancel:             cancel,
	}
	svc, err := service.NewService(ctx, &svcCfg)
	if err != nil {
		log.Error().Err(err).Msg("creating structure service")
		return
	}

	go handleTermination(ctx, cancel)
	svc.Run(ctx)
}
