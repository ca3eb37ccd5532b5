package shared

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// HistoricDataConfig represents the historic data source configuration.
type HistoricDataConfig struct {
	// FilePath is the filepath to the historic market data.
	FilePath string
	// NotifySubscribers relays the provided market update to all subscribers.
	NotifySubscribers func(candle Candlestick) error
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *HistoricDataConfig) Validate() error {
	var errs error

	if cfg.FilePath == "" {
		errs = errors.Join(errs, fmt.Errorf("historic data filepath cannot be an empty string"))
	}
	if cfg.NotifySubscribers == nil {
		errs = errors.Join(errs, fmt.Errorf("notify subscribers function cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// HistoricData represents historic market data.
type HistoricData struct {
	cfg        *HistoricDataConfig
	market     string
	candles    []Candlestick
	timeframes []string
	startTime  time.Time
	endTime    time.Time
}

// loadHistoricData loads the historic data bytes from the provided file path.
func loadHistoricData(filepath string) (*gjson.Result, error) {
	readb, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("reading historic data from file with path '%s': %w", filepath, err)
	}

	if !gjson.ValidBytes(readb) {
		return nil, fmt.Errorf("historic data file with path '%s' is not valid json", filepath)
	}

	b := gjson.ParseBytes(readb)

	return &b, nil
}

// NewHistoricData initializes a new historic data source.
func NewHistoricData(cfg *HistoricDataConfig) (*HistoricData, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating historic data config: %w", err)
	}

	b, err := loadHistoricData(cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("loading historic data: %w", err)
	}

	market := b.Get("market").String()
	if market == "" {
		return nil, fmt.Errorf("historic data has no market")
	}

	loc, err := time.LoadLocation(NewYorkLocation)
	if err != nil {
		return nil, fmt.Errorf("loading new york location: %w", err)
	}

	historicData := HistoricData{
		cfg:    cfg,
		market: market,
	}

	timeframes := []Timeframe{FiveMinute, OneHour}
	for idx := range timeframes {
		timeframe := timeframes[idx]

		data := b.Get(timeframe.String()).Array()
		if len(data) == 0 {
			continue
		}

		candles, err := ParseCandlesticks(data, market, timeframe, 1, loc)
		if err != nil {
			return nil, fmt.Errorf("parsing %s candlesticks: %w", timeframe.String(), err)
		}

		historicData.timeframes = append(historicData.timeframes, timeframe.String())
		historicData.candles = append(historicData.candles, candles...)
	}

	if len(historicData.candles) == 0 {
		return nil, fmt.Errorf("no candles found in historic data for %s", market)
	}

	// Interleave timeframes by date, lower timeframes first on ties.
	slices.SortStableFunc(historicData.candles, func(a, b Candlestick) int {
		switch {
		case a.Date.Before(b.Date):
			return -1
		case a.Date.After(b.Date):
			return 1
		default:
			return int(a.Timeframe) - int(b.Timeframe)
		}
	})

	historicData.startTime = historicData.candles[0].Date
	historicData.endTime = historicData.candles[len(historicData.candles)-1].Date

	return &historicData, nil
}

// ProcessHistoricalData streams historical data for a market, waiting for each candle to
// be processed before relaying the next.
func (h *HistoricData) ProcessHistoricalData(ctx context.Context) error {
	timeDiffInHours := h.endTime.Sub(h.startTime).Hours()

	tfs := strings.Join(h.timeframes, ",")
	h.cfg.Logger.Info().Msgf("processing historical [%s] data covering %.2f hours, from %s, to %s",
		tfs, timeDiffInHours, h.startTime.Format(time.RFC1123), h.endTime.Format(time.RFC1123))

	var failed int
	for idx := range h.candles {
		candle := h.candles[idx]
		candle.Status = make(chan StatusCode, 1)

		err := h.cfg.NotifySubscribers(candle)
		if err != nil {
			return fmt.Errorf("processing historical data: %w", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case status := <-candle.Status:
			if status == Failed {
				failed++
			}
		case <-time.After(TimeoutDuration):
			return fmt.Errorf("timed out processing %s candle %d", candle.Timeframe.String(), candle.ID)
		}
	}

	if failed > 0 {
		h.cfg.Logger.Warn().Msgf("%d of %d historical candles failed processing", failed, len(h.candles))
	}

	return nil
}

// Count returns the number of candles loaded.
func (h *HistoricData) Count() int {
	return len(h.candles)
}

// FetchStartTime returns the start time of the loaded historical data.
func (h *HistoricData) FetchStartTime() time.Time {
	return h.startTime
}

// FetchEndTime returns the end time of the loaded historical data.
func (h *HistoricData) FetchEndTime() time.Time {
	return h.endTime
}

// FetchMarket returns the replayed market.
func (h *HistoricData) FetchMarket() string {
	return h.market
}
