package market

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dnldd/chanlun/shared"
	"github.com/dnldd/chanlun/structure"
	"go.uber.org/atomic"
)

// MarketConfig represents the market configuration.
type MarketConfig struct {
	// Market is the name of the tracked market.
	Market string
	// Timeframe is the timeframe of the analyzed candles.
	Timeframe shared.Timeframe
	// SnapshotSize is the number of recent candles the market retains for analysis.
	SnapshotSize int32
}

// Validate asserts the config sane inputs.
func (cfg *MarketConfig) Validate() error {
	var errs error

	if cfg.Market == "" {
		errs = errors.Join(errs, fmt.Errorf("market cannot be an empty string"))
	}
	if cfg.Timeframe.Duration() == 0 {
		errs = errors.Join(errs, fmt.Errorf("unknown timeframe provided: %s", cfg.Timeframe.String()))
	}
	if cfg.SnapshotSize <= 0 {
		errs = errors.Join(errs, fmt.Errorf("snapshot size must be positive"))
	}

	return errs
}

// Market tracks the recent candles of a market and their recognized structure.
type Market struct {
	cfg            *MarketConfig
	candleSnapshot *shared.CandlestickSnapshot
	analysis       *structure.Analysis
	analysisMtx    sync.RWMutex
	updates        atomic.Uint64
	lastCandleID   atomic.Int64
}

// NewMarket initializes a new market.
func NewMarket(cfg *MarketConfig) (*Market, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating market config: %w", err)
	}

	candleSnapshot, err := shared.NewCandlestickSnapshot(cfg.SnapshotSize, cfg.Timeframe)
	if err != nil {
		return nil, fmt.Errorf("creating candlestick snapshot: %w", err)
	}

	return &Market{
		cfg:            cfg,
		candleSnapshot: candleSnapshot,
	}, nil
}

// Update adds the provided candle to the market and re-analyzes the retained candles.
func (m *Market) Update(candle *shared.Candlestick) (*structure.Analysis, error) {
	if candle.Market != m.cfg.Market {
		return nil, fmt.Errorf("candle for %s cannot update %s", candle.Market, m.cfg.Market)
	}

	err := m.candleSnapshot.Update(candle)
	if err != nil {
		return nil, fmt.Errorf("updating %s candlestick snapshot: %w", m.cfg.Market, err)
	}

	analysis, err := structure.Analyze(m.candleSnapshot.LastN(m.candleSnapshot.Count()))
	if err != nil {
		return nil, fmt.Errorf("analyzing %s structure: %w", m.cfg.Market, err)
	}

	m.analysisMtx.Lock()
	m.analysis = analysis
	m.analysisMtx.Unlock()

	m.updates.Inc()
	m.lastCandleID.Store(candle.ID)

	return analysis, nil
}

// Structure returns the latest analysis of the market, nil if the market has not been updated.
func (m *Market) Structure() *structure.Analysis {
	m.analysisMtx.RLock()
	defer m.analysisMtx.RUnlock()

	return m.analysis
}

// Updates returns the number of successful updates applied to the market.
func (m *Market) Updates() uint64 {
	return m.updates.Load()
}

// LastCandleID returns the id of the last candle applied to the market.
func (m *Market) LastCandleID() int64 {
	return m.lastCandleID.Load()
}
