package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dnldd/chanlun/shared"
	"github.com/dnldd/chanlun/structure"
	"github.com/rs/zerolog"
)

const (
	// bufferSize is the default buffer size for channels.
	bufferSize = 64
	// subscriberName is the name the manager subscribes for market updates with.
	subscriberName = "marketmanager"
)

// StructureSignal relays the structure of a market after an update.
type StructureSignal struct {
	Market       string
	Timeframe    shared.Timeframe
	Analysis     *structure.Analysis
	LastCandleID int64
	CreatedOn    time.Time
}

// StructureRequest represents a request for the latest structure of a market.
type StructureRequest struct {
	Market   string
	Response chan *structure.Analysis
}

// NewStructureRequest initializes a new structure request.
func NewStructureRequest(market string) *StructureRequest {
	return &StructureRequest{
		Market:   market,
		Response: make(chan *structure.Analysis, 1),
	}
}

// ManagerConfig represents the market manager configuration.
type ManagerConfig struct {
	// Markets represents the collection of ids of the markets to manage.
	Markets []string
	// Timeframe is the timeframe of the analyzed candles.
	Timeframe shared.Timeframe
	// SnapshotSize is the number of recent candles retained per market.
	SnapshotSize int32
	// Subscribe registers the provided subscriber for market updates.
	Subscribe func(name string, sub chan shared.Candlestick)
	// SignalStructure relays the structure of a market after an update.
	SignalStructure func(signal StructureSignal)
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *ManagerConfig) Validate() error {
	var errs error

	if len(cfg.Markets) == 0 {
		errs = errors.Join(errs, fmt.Errorf("no markets provided for market manager"))
	}
	if cfg.Timeframe.Duration() == 0 {
		errs = errors.Join(errs, fmt.Errorf("unknown timeframe provided: %s", cfg.Timeframe.String()))
	}
	if cfg.SnapshotSize <= 0 {
		errs = errors.Join(errs, fmt.Errorf("snapshot size must be positive"))
	}
	if cfg.Subscribe == nil {
		errs = errors.Join(errs, fmt.Errorf("subscribe function cannot be nil"))
	}
	if cfg.SignalStructure == nil {
		errs = errors.Join(errs, fmt.Errorf("signal structure function cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Manager manages the lifecycle processes of all tracked markets.
type Manager struct {
	cfg               *ManagerConfig
	markets           map[string]*Market
	updateSignals     chan shared.Candlestick
	structureRequests chan *StructureRequest
	workers           map[string]chan struct{}
}

// NewManager initializes a new market manager.
func NewManager(cfg *ManagerConfig) (*Manager, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating market manager config: %w", err)
	}

	markets := make(map[string]*Market, len(cfg.Markets))
	workers := make(map[string]chan struct{}, len(cfg.Markets))
	for idx := range cfg.Markets {
		name := cfg.Markets[idx]

		market, err := NewMarket(&MarketConfig{
			Market:       name,
			Timeframe:    cfg.Timeframe,
			SnapshotSize: cfg.SnapshotSize,
		})
		if err != nil {
			return nil, fmt.Errorf("creating %s market: %w", name, err)
		}

		markets[name] = market
		workers[name] = make(chan struct{}, 1)
	}

	return &Manager{
		cfg:               cfg,
		markets:           markets,
		updateSignals:     make(chan shared.Candlestick, bufferSize),
		structureRequests: make(chan *StructureRequest, bufferSize),
		workers:           workers,
	}, nil
}

// SendMarketUpdate relays the provided candlestick for processing.
func (m *Manager) SendMarketUpdate(candle shared.Candlestick) {
	select {
	case m.updateSignals <- candle:
		// do nothing.
	default:
		m.cfg.Logger.Error().Msgf("market update channel at capacity: %d/%d",
			len(m.updateSignals), bufferSize)
	}
}

// SendStructureRequest relays the provided structure request for processing.
func (m *Manager) SendStructureRequest(request *StructureRequest) {
	select {
	case m.structureRequests <- request:
		// do nothing.
	default:
		m.cfg.Logger.Error().Msgf("structure request channel at capacity: %d/%d",
			len(m.structureRequests), bufferSize)
	}
}

// handleUpdateSignal processes the provided market update candle.
func (m *Manager) handleUpdateSignal(candle *shared.Candlestick) error {
	if candle.Timeframe != m.cfg.Timeframe {
		// Other timeframes are not analyzed.
		shared.SignalStatus(candle.Status, shared.Processed)
		return nil
	}

	market, ok := m.markets[candle.Market]
	if !ok {
		shared.SignalStatus(candle.Status, shared.Failed)
		return fmt.Errorf("no market found with name %s for update", candle.Market)
	}

	analysis, err := market.Update(candle)
	if err != nil {
		shared.SignalStatus(candle.Status, shared.Failed)
		return fmt.Errorf("updating %s market: %w", candle.Market, err)
	}

	m.cfg.SignalStructure(StructureSignal{
		Market:       candle.Market,
		Timeframe:    candle.Timeframe,
		Analysis:     analysis,
		LastCandleID: candle.ID,
		CreatedOn:    candle.Date,
	})

	shared.SignalStatus(candle.Status, shared.Processed)

	return nil
}

// handleStructureRequest responds with the latest structure of the requested market.
func (m *Manager) handleStructureRequest(request *StructureRequest) error {
	market, ok := m.markets[request.Market]
	if !ok {
		request.Response <- nil
		return fmt.Errorf("no market found with name %s for structure request", request.Market)
	}

	request.Response <- market.Structure()

	return nil
}

// Run manages the lifecycle processes of the market manager.
func (m *Manager) Run(ctx context.Context) {
	m.cfg.Subscribe(subscriberName, m.updateSignals)

	for {
		select {
		case <-ctx.Done():
			return

		case candle := <-m.updateSignals:
			worker, ok := m.workers[candle.Market]
			if !ok {
				err := m.handleUpdateSignal(&candle)
				if err != nil {
					m.cfg.Logger.Error().Err(err).Send()
				}
				continue
			}

			// Updates for a market are processed in order by its dedicated worker.
			worker <- struct{}{}
			go func(candle shared.Candlestick) {
				err := m.handleUpdateSignal(&candle)
				if err != nil {
					m.cfg.Logger.Error().Err(err).Send()
				}
				<-worker
			}(candle)

		case request := <-m.structureRequests:
			err := m.handleStructureRequest(request)
			if err != nil {
				m.cfg.Logger.Error().Err(err).Send()
			}
		}
	}
}
