package market

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dnldd/chanlun/shared"
	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func setupManager(t *testing.T, signals chan StructureSignal) (*Manager, chan chan shared.Candlestick) {
	subscriptions := make(chan chan shared.Candlestick, 1)
	cfg := &ManagerConfig{
		Markets:      []string{"^GSPC"},
		Timeframe:    shared.FiveMinute,
		SnapshotSize: 32,
		Subscribe: func(name string, sub chan shared.Candlestick) {
			subscriptions <- sub
		},
		SignalStructure: func(signal StructureSignal) {
			signals <- signal
		},
		Logger: &log.Logger,
	}

	mgr, err := NewManager(cfg)
	assert.NoError(t, err)

	return mgr, subscriptions
}

func TestMarketManagerConfigValidate(t *testing.T) {
	logger := zerolog.New(nil)
	baseCfg := &ManagerConfig{
		Markets:         []string{"^GSPC"},
		Timeframe:       shared.FiveMinute,
		SnapshotSize:    32,
		Subscribe:       func(name string, sub chan shared.Candlestick) {},
		SignalStructure: func(signal StructureSignal) {},
		Logger:          &logger,
	}

	tests := []struct {
		name        string
		modify      func(cfg *ManagerConfig)
		wantErr     bool
		errContains []string
	}{
		{
			name:    "valid config returns nil",
			modify:  func(cfg *ManagerConfig) {},
			wantErr: false,
		},
		{
			name:        "missing Markets",
			modify:      func(cfg *ManagerConfig) { cfg.Markets = nil },
			wantErr:     true,
			errContains: []string{"no markets provided"},
		},
		{
			name:        "unknown Timeframe",
			modify:      func(cfg *ManagerConfig) { cfg.Timeframe = shared.Timeframe(99) },
			wantErr:     true,
			errContains: []string{"unknown timeframe provided"},
		},
		{
			name:        "non-positive SnapshotSize",
			modify:      func(cfg *ManagerConfig) { cfg.SnapshotSize = 0 },
			wantErr:     true,
			errContains: []string{"snapshot size must be positive"},
		},
		{
			name:        "missing Subscribe",
			modify:      func(cfg *ManagerConfig) { cfg.Subscribe = nil },
			wantErr:     true,
			errContains: []string{"subscribe function cannot be nil"},
		},
		{
			name:        "missing SignalStructure",
			modify:      func(cfg *ManagerConfig) { cfg.SignalStructure = nil },
			wantErr:     true,
			errContains: []string{"signal structure function cannot be nil"},
		},
		{
			name:        "missing Logger",
			modify:      func(cfg *ManagerConfig) { cfg.Logger = nil },
			wantErr:     true,
			errContains: []string{"logger cannot be nil"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *baseCfg
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				for _, substr := range tt.errContains {
					assert.True(t, strings.Contains(err.Error(), substr))
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestManager(t *testing.T) {
	signals := make(chan StructureSignal, 16)
	mgr, subscriptions := setupManager(t, signals)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ensure the market manager can be run.
	done := make(chan struct{})
	go func() {
		mgr.Run(ctx)
		close(done)
	}()

	// Ensure the manager subscribes for market updates.
	sub := <-subscriptions

	// Ensure updates are processed in order and relayed as structure signals.
	candles := makeCandles("^GSPC", highs, lows)
	for idx := range candles {
		candle := candles[idx]
		candle.Status = make(chan shared.StatusCode, 1)
		sub <- candle
		assert.Equal(t, <-candle.Status, shared.Processed)

		signal := <-signals
		assert.Equal(t, signal.Market, "^GSPC")
		assert.Equal(t, signal.LastCandleID, candle.ID)
		assert.Equal(t, len(signal.Analysis.Segments), idx+1)
	}

	// Ensure updates sent directly are processed.
	late := makeCandles("^GSPC", []float64{99}, []float64{89})[0]
	late.ID = 10
	late.Date = candles[len(candles)-1].Date.Add(time.Minute * 5)
	late.Status = make(chan shared.StatusCode, 1)
	mgr.SendMarketUpdate(late)
	assert.Equal(t, <-late.Status, shared.Processed)
	<-signals

	// Ensure updates for unknown markets fail.
	unknown := makeCandles("^AAPL", highs[:1], lows[:1])[0]
	unknown.Status = make(chan shared.StatusCode, 1)
	mgr.SendMarketUpdate(unknown)
	assert.Equal(t, <-unknown.Status, shared.Failed)

	// Ensure updates for other timeframes are acknowledged but not analyzed.
	hourly := makeCandles("^GSPC", highs[:1], lows[:1])[0]
	hourly.Timeframe = shared.OneHour
	hourly.Status = make(chan shared.StatusCode, 1)
	mgr.SendMarketUpdate(hourly)
	assert.Equal(t, <-hourly.Status, shared.Processed)
	assert.Equal(t, len(signals), 0)

	// Ensure structure requests are answered with the latest structure.
	req := NewStructureRequest("^GSPC")
	mgr.SendStructureRequest(req)
	analysis := <-req.Response
	assert.NotNil(t, analysis)
	assert.Equal(t, len(analysis.Segments), 10)

	// Ensure structure requests for unknown markets are answered with nil.
	unknownReq := NewStructureRequest("^AAPL")
	mgr.SendStructureRequest(unknownReq)
	assert.Nil(t, <-unknownReq.Response)

	// Ensure the market manager can be gracefully terminated.
	cancel()
	<-done
}

func TestFillManagerChannels(t *testing.T) {
	mgr, _ := setupManager(t, make(chan StructureSignal, 1))

	candle := makeCandles("^GSPC", highs[:1], lows[:1])[0]
	req := NewStructureRequest("^GSPC")

	// Fill all the channels used by the manager.
	for range bufferSize + 1 {
		mgr.SendMarketUpdate(candle)
		mgr.SendStructureRequest(req)
	}

	assert.Equal(t, len(mgr.updateSignals), bufferSize)
	assert.Equal(t, len(mgr.structureRequests), bufferSize)
}

func TestHandleUpdateSignal(t *testing.T) {
	signals := make(chan StructureSignal, 2)
	mgr, _ := setupManager(t, signals)

	candles := makeCandles("^GSPC", highs, lows)

	// Ensure a valid update is analyzed and signalled.
	err := mgr.handleUpdateSignal(&candles[0])
	assert.NoError(t, err)
	assert.Equal(t, len(signals), 1)

	// Ensure a malformed update errors.
	malformed := candles[1]
	malformed.High, malformed.Low = malformed.Low, malformed.High
	err = mgr.handleUpdateSignal(&malformed)
	assert.Error(t, err)
	assert.Equal(t, len(signals), 1)
}
