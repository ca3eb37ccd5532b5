package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dnldd/chanlun/database"
	"github.com/dnldd/chanlun/fetch"
	"github.com/dnldd/chanlun/market"
	"github.com/dnldd/chanlun/publish"
	"github.com/dnldd/chanlun/shared"
	"github.com/dnldd/chanlun/structure"
	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

const (
	// storeTimeout is the maximum time to wait on persisting or publishing a structure update.
	storeTimeout = time.Second * 3
)

// ServiceConfig represents the configuration struct for the structure service.
type ServiceConfig struct {
	// Markets represents the tracked markets.
	Markets []string
	// Timeframe is the timeframe of the analyzed candles.
	Timeframe shared.Timeframe
	// FMPAPIkey is the FMP service API Key.
	FMPAPIKey string
	// FetchInterval is the period between market data fetches.
	FetchInterval time.Duration
	// SnapshotSize is the number of recent candles retained per market.
	SnapshotSize int32
	// DatabaseEndpoint is the rqlite endpoint, structure is not persisted when empty.
	DatabaseEndpoint string
	// DatabaseUser is the database user.
	DatabaseUser string
	// DatabasePass is the database user pass.
	DatabasePass string
	// RedisAddr is the redis address, structure is not published when empty.
	RedisAddr string
	// RedisPass is the redis password.
	RedisPass string
	// RedisDB is the redis database index.
	RedisDB int
	// Replay is the historic data replay flag.
	Replay bool
	// ReplayDataFilepath is the filepath to the replayed historic data.
	ReplayDataFilepath string
	// Cancel is the context cancellation function.
	Cancel context.CancelFunc
}

// Validate asserts the config sane inputs.
func (cfg *ServiceConfig) Validate() error {
	var errs error

	if cfg.Timeframe.Duration() == 0 {
		errs = errors.Join(errs, fmt.Errorf("unknown timeframe provided: %s", cfg.Timeframe.String()))
	}
	if cfg.SnapshotSize <= 0 {
		errs = errors.Join(errs, fmt.Errorf("snapshot size must be positive"))
	}
	if cfg.Cancel == nil {
		errs = errors.Join(errs, fmt.Errorf("context cancellation function cannot be nil"))
	}

	switch cfg.Replay {
	case true:
		if cfg.ReplayDataFilepath == "" {
			errs = errors.Join(errs, fmt.Errorf("replay data filepath cannot be an empty string"))
		}
	case false:
		if len(cfg.Markets) == 0 {
			errs = errors.Join(errs, fmt.Errorf("no markets provided for structure service"))
		}
		if cfg.FMPAPIKey == "" {
			errs = errors.Join(errs, fmt.Errorf("fmp api key cannot be an empty string"))
		}
		if cfg.FetchInterval <= 0 {
			errs = errors.Join(errs, fmt.Errorf("fetch interval must be positive"))
		}
	}

	return errs
}

// Service represents the market structure recognition service.
type Service struct {
	cfg             *ServiceConfig
	fetchManager    *fetch.Manager
	marketManager   *market.Manager
	historicData    *shared.HistoricData
	database        *database.Database
	publisher       *publish.Publisher
	replayStructure *structure.Analysis
	logger          *zerolog.Logger
	wg              sync.WaitGroup
}

// NewService initializes a new structure service.
func NewService(ctx context.Context, cfg *ServiceConfig) (*Service, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating service config: %w", err)
	}

	var marketMgr *market.Manager
	var fetchMgr *fetch.Manager
	var historicData *shared.HistoricData
	var db *database.Database
	var publisher *publish.Publisher

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	logger := log.With().Str("service", "chanlun").Logger()

	markets := cfg.Markets

	if cfg.Replay {
		historicDataLogger := logger.With().Str("component", "historicdata").Logger()
		historicData, err = shared.NewHistoricData(&shared.HistoricDataConfig{
			FilePath: cfg.ReplayDataFilepath,
			NotifySubscribers: func(candle shared.Candlestick) error {
				if marketMgr == nil {
					return fmt.Errorf("market manager not initialized")
				}

				marketMgr.SendMarketUpdate(candle)
				return nil
			},
			Logger: &historicDataLogger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating historic data: %w", err)
		}

		markets = []string{historicData.FetchMarket()}
	}

	if cfg.DatabaseEndpoint != "" {
		dbLogger := logger.With().Str("component", "database").Logger()
		db, err = database.NewDatabase(ctx, &database.DatabaseConfig{
			Endpoint: cfg.DatabaseEndpoint,
			User:     cfg.DatabaseUser,
			Pass:     cfg.DatabasePass,
			Logger:   &dbLogger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating database: %w", err)
		}
	}

	if cfg.RedisAddr != "" {
		publisherLogger := logger.With().Str("component", "publisher").Logger()
		publisher, err = publish.NewPublisher(ctx, &publish.PublisherConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
			Logger:   &publisherLogger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating publisher: %w", err)
		}
	}

	subscribeFunc := func(name string, sub chan shared.Candlestick) {
		if fetchMgr != nil {
			fetchMgr.Subscribe(name, sub)
		}
	}

	signalStructureFunc := func(signal market.StructureSignal) {
		if db == nil && publisher == nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		if db != nil {
			err := db.PersistStructure(ctx, signal)
			if err != nil {
				logger.Error().Err(err).Msgf("persisting %s structure", signal.Market)
			}
		}

		if publisher != nil {
			err := publisher.PublishStructure(ctx, signal)
			if err != nil {
				logger.Error().Err(err).Msgf("publishing %s structure", signal.Market)
			}
		}
	}

	marketMgrLogger := logger.With().Str("component", "marketmanager").Logger()
	marketMgr, err = market.NewManager(&market.ManagerConfig{
		Markets:         markets,
		Timeframe:       cfg.Timeframe,
		SnapshotSize:    cfg.SnapshotSize,
		Subscribe:       subscribeFunc,
		SignalStructure: signalStructureFunc,
		Logger:          &marketMgrLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating market manager: %w", err)
	}

	if !cfg.Replay {
		_, loc, err := shared.NewYorkTime()
		if err != nil {
			return nil, fmt.Errorf("fetching new york time: %w", err)
		}

		fmp, err := fetch.NewFMPClient(&fetch.FMPConfig{APIKey: cfg.FMPAPIKey, BaseURL: fetch.BaseURL})
		if err != nil {
			return nil, fmt.Errorf("creating fmp client: %w", err)
		}

		fetchMgrLogger := logger.With().Str("component", "fetchmanager").Logger()
		fetchMgr, err = fetch.NewManager(&fetch.ManagerConfig{
			Markets:        markets,
			Timeframe:      cfg.Timeframe,
			ExchangeClient: fmp,
			JobScheduler:   gocron.NewScheduler(loc),
			FetchInterval:  cfg.FetchInterval,
			Logger:         &fetchMgrLogger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating fetch manager: %w", err)
		}
	}

	return &Service{
		cfg:           cfg,
		fetchManager:  fetchMgr,
		marketManager: marketMgr,
		historicData:  historicData,
		database:      db,
		publisher:     publisher,
		logger:        &logger,
	}, nil
}

// replay streams the historic data through the market manager and reports the final structure.
func (s *Service) replay(ctx context.Context) {
	defer s.cfg.Cancel()

	err := s.historicData.ProcessHistoricalData(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("processing historical data")
		return
	}

	name := s.historicData.FetchMarket()
	req := market.NewStructureRequest(name)
	s.marketManager.SendStructureRequest(req)

	select {
	case <-ctx.Done():
		return
	case analysis := <-req.Response:
		s.replayStructure = analysis
		if analysis == nil {
			s.logger.Warn().Msgf("replay for %s produced no structure", name)
			return
		}

		s.logger.Info().Msgf("replay for %s done: %d segments, %d strokes, %d pivots", name,
			len(analysis.Segments), len(analysis.Strokes), len(analysis.Pivots))
	case <-time.After(shared.TimeoutDuration):
		s.logger.Error().Msgf("timed out requesting %s structure", name)
	}
}

// Run handles the lifecycle processes of the structure service.
func (s *Service) Run(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		s.marketManager.Run(ctx)
		s.wg.Done()
	}()

	if s.fetchManager != nil {
		s.wg.Add(1)
		go func() {
			s.fetchManager.Run(ctx)
			s.wg.Done()
		}()
	}

	if s.cfg.Replay {
		s.wg.Add(1)
		go func() {
			s.replay(ctx)
			s.wg.Done()
		}()
	}

	s.wg.Wait()

	if s.publisher != nil {
		err := s.publisher.Close()
		if err != nil {
			s.logger.Error().Err(err).Msg("closing publisher")
		}
	}
}
