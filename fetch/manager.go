package fetch

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dnldd/chanlun/shared"
	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	// bufferSize is the default buffer size for channels.
	bufferSize = 64
	// maxWorkers is the maximum number of concurrent workers.
	maxWorkers = 8
	// defaultLookback is the default window of market data fetched on catch up.
	defaultLookback = time.Hour * 24 * 3
)

// ManagerConfig represents the configuration for the fetch manager.
type ManagerConfig struct {
	// Markets represents the tracked markets.
	Markets []string
	// Timeframe represents the fetched candle timeframe.
	Timeframe shared.Timeframe
	// ExchangeClient represents the market exchange client.
	ExchangeClient shared.MarketFetcher
	// JobScheduler represents the job scheduler.
	JobScheduler *gocron.Scheduler
	// FetchInterval is the period between market data fetches.
	FetchInterval time.Duration
	// Lookback is the window of market data fetched when catching up.
	Lookback time.Duration
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *ManagerConfig) Validate() error {
	var errs error

	if len(cfg.Markets) == 0 {
		errs = errors.Join(errs, fmt.Errorf("no markets provided for fetch manager"))
	}
	if cfg.Timeframe.Duration() == 0 {
		errs = errors.Join(errs, fmt.Errorf("unknown timeframe provided: %s", cfg.Timeframe.String()))
	}
	if cfg.ExchangeClient == nil {
		errs = errors.Join(errs, fmt.Errorf("exchange client cannot be nil"))
	}
	if cfg.JobScheduler == nil {
		errs = errors.Join(errs, fmt.Errorf("job scheduler cannot be nil"))
	}
	if cfg.FetchInterval <= 0 {
		errs = errors.Join(errs, fmt.Errorf("fetch interval must be positive"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Manager represents the market data fetch manager.
type Manager struct {
	cfg              *ManagerConfig
	location         *time.Location
	markets          map[string]struct{}
	lastUpdatedTimes map[string]time.Time
	lastIDs          map[string]int64
	ingestMtx        sync.Mutex
	catchUpSignals   chan shared.CatchUpSignal
	subscribers      map[string]chan shared.Candlestick
	subscribersMtx   sync.RWMutex
	workers          chan struct{}
	now              func() time.Time
}

// NewManager initializes the fetch manager.
func NewManager(cfg *ManagerConfig) (*Manager, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating fetch manager config: %w", err)
	}

	if cfg.Lookback <= 0 {
		cfg.Lookback = defaultLookback
	}

	loc, err := time.LoadLocation(shared.NewYorkLocation)
	if err != nil {
		return nil, fmt.Errorf("loading new york location: %w", err)
	}

	mgr := &Manager{
		cfg:              cfg,
		location:         loc,
		markets:          make(map[string]struct{}, len(cfg.Markets)),
		lastUpdatedTimes: make(map[string]time.Time, len(cfg.Markets)),
		lastIDs:          make(map[string]int64, len(cfg.Markets)),
		catchUpSignals:   make(chan shared.CatchUpSignal, bufferSize),
		subscribers:      make(map[string]chan shared.Candlestick),
		workers:          make(chan struct{}, maxWorkers),
		now:              time.Now,
	}

	for _, market := range cfg.Markets {
		mgr.markets[market] = struct{}{}
	}

	return mgr, nil
}

// Subscribe registers the provided subscriber for market updates.
func (m *Manager) Subscribe(name string, sub chan shared.Candlestick) {
	m.subscribersMtx.Lock()
	m.subscribers[name] = sub
	m.subscribersMtx.Unlock()
}

// NotifySubscribers notifies subscribers of the new market update.
func (m *Manager) NotifySubscribers(candle shared.Candlestick) error {
	m.subscribersMtx.RLock()
	defer m.subscribersMtx.RUnlock()

	for name, sub := range m.subscribers {
		select {
		case sub <- candle:
		case <-time.After(shared.TimeoutDuration):
			return fmt.Errorf("timed out notifying %s of %s candle %d", name, candle.Market, candle.ID)
		}
	}

	return nil
}

// SendCatchUpSignal relays the provided market catch up signal for processing.
func (m *Manager) SendCatchUpSignal(signal shared.CatchUpSignal) {
	select {
	case m.catchUpSignals <- signal:
		// do nothing.
	default:
		m.cfg.Logger.Error().Msgf("catch up signal channel at capacity: %d/%d",
			len(m.catchUpSignals), bufferSize)
	}
}

// LastUpdated returns the date of the last candle relayed for the provided market.
func (m *Manager) LastUpdated(market string) time.Time {
	m.ingestMtx.Lock()
	defer m.ingestMtx.Unlock()

	return m.lastUpdatedTimes[market]
}

// ingest parses the fetched market data and notifies subscribers of candles newer than the
// last relayed one, stamping them with increasing ids per market.
func (m *Manager) ingest(market string, timeframe shared.Timeframe, data []gjson.Result) (int, error) {
	candles, err := shared.ParseCandlesticks(data, market, timeframe, 0, m.location)
	if err != nil {
		return 0, fmt.Errorf("parsing candlesticks for %s: %w", market, err)
	}

	// FMP returns the most recent candles first.
	slices.SortFunc(candles, func(a, b shared.Candlestick) int {
		return a.Date.Compare(b.Date)
	})

	m.ingestMtx.Lock()
	defer m.ingestMtx.Unlock()

	lastUpdated := m.lastUpdatedTimes[market]
	var relayed int
	for idx := range candles {
		candle := candles[idx]
		if !candle.Date.After(lastUpdated) {
			continue
		}

		m.lastIDs[market]++
		candle.ID = m.lastIDs[market]

		err := m.NotifySubscribers(candle)
		if err != nil {
			return relayed, err
		}

		lastUpdated = candle.Date
		m.lastUpdatedTimes[market] = lastUpdated
		relayed++
	}

	return relayed, nil
}

// fetch fetches market data from the provided start time and relays new candles.
func (m *Manager) fetch(market string, timeframe shared.Timeframe, start time.Time) error {
	if _, ok := m.markets[market]; !ok {
		return fmt.Errorf("no market found with name %s", market)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shared.TimeoutDuration)
	defer cancel()

	data, err := m.cfg.ExchangeClient.FetchIndexIntradayHistorical(ctx, market, timeframe, start, time.Time{})
	if err != nil {
		return fmt.Errorf("fetching %s market data for %s: %w", timeframe.String(), market, err)
	}

	relayed, err := m.ingest(market, timeframe, data)
	if err != nil {
		return err
	}

	m.cfg.Logger.Debug().Msgf("relayed %d new %s candles for %s", relayed, timeframe.String(), market)

	return nil
}

// fetchMarketDataJob fetches market data for the provided market since its last update,
// skipping fetches while the market is closed.
func (m *Manager) fetchMarketDataJob(market string) error {
	now := m.now().In(m.location)
	open, _, err := shared.IsMarketOpen(now)
	if err != nil {
		return err
	}

	if !open {
		m.cfg.Logger.Debug().Msgf("skipping %s market data fetch, market closed", market)
		return nil
	}

	start := m.LastUpdated(market)
	if start.IsZero() {
		start = now.Add(-m.cfg.Lookback)
	}

	return m.fetch(market, m.cfg.Timeframe, start)
}

// handleCatchUpSignal processes the provided catch up signal.
func (m *Manager) handleCatchUpSignal(signal shared.CatchUpSignal) error {
	err := m.fetch(signal.Market, signal.Timeframe, signal.Start)
	if err != nil {
		shared.SignalStatus(signal.Status, shared.Failed)
		return fmt.Errorf("catching up on %s: %w", signal.Market, err)
	}

	shared.SignalStatus(signal.Status, shared.Processed)

	return nil
}

// scheduleJobs schedules periodic market data fetches for all tracked markets.
func (m *Manager) scheduleJobs() error {
	for _, market := range m.cfg.Markets {
		_, err := m.cfg.JobScheduler.Every(m.cfg.FetchInterval).WaitForSchedule().Do(func() {
			err := m.fetchMarketDataJob(market)
			if err != nil {
				m.cfg.Logger.Error().Err(err).Msgf("fetching market data for %s", market)
			}
		})
		if err != nil {
			return fmt.Errorf("scheduling market data job for %s: %w", market, err)
		}
	}

	return nil
}

// Run manages the lifecycle processes of the fetch manager.
func (m *Manager) Run(ctx context.Context) {
	err := m.scheduleJobs()
	if err != nil {
		m.cfg.Logger.Error().Err(err).Msg("scheduling fetch jobs")
		return
	}

	m.cfg.JobScheduler.StartAsync()

	start := m.now().In(m.location).Add(-m.cfg.Lookback)
	for _, market := range m.cfg.Markets {
		m.SendCatchUpSignal(shared.NewCatchUpSignal(market, m.cfg.Timeframe, start))
	}

	for {
		select {
		case <-ctx.Done():
			m.cfg.JobScheduler.Stop()
			return
		case signal := <-m.catchUpSignals:
			m.workers <- struct{}{}
			go func(signal shared.CatchUpSignal) {
				err := m.handleCatchUpSignal(signal)
				if err != nil {
					m.cfg.Logger.Error().Err(err).Send()
				}
				<-m.workers
			}(signal)
		}
	}
}
