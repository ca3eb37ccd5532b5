package shared

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

// Candlestick represents a unit candlestick for a market.
type Candlestick struct {
	ID     int64
	Open   float64
	Low    float64
	High   float64
	Close  float64
	Volume float64
	Date   time.Time

	// Metadata fields.
	Market    string
	Timeframe Timeframe
	Status    chan StatusCode
}

// Validate asserts the candlestick's price range is well formed.
func (c *Candlestick) Validate() error {
	if c.High < c.Low {
		return &ValidationError{
			Field:  "high",
			Reason: fmt.Sprintf("candle %d high %f is below its low %f", c.ID, c.High, c.Low),
		}
	}

	return nil
}

// ValidateCandlesticks asserts the provided candlesticks are well formed and strictly ordered
// ascending by date.
func ValidateCandlesticks(candles []*Candlestick) error {
	for idx := range candles {
		candle := candles[idx]
		if candle == nil {
			return &ValidationError{
				Field:  "candle",
				Reason: fmt.Sprintf("candle at index %d is nil", idx),
			}
		}

		err := candle.Validate()
		if err != nil {
			return err
		}

		if idx > 0 && !candle.Date.After(candles[idx-1].Date) {
			return &ValidationError{
				Field: "date",
				Reason: fmt.Sprintf("candle %d at index %d (%s) is not after its predecessor (%s)",
					candle.ID, idx, candle.Date.Format(DateLayout), candles[idx-1].Date.Format(DateLayout)),
			}
		}
	}

	return nil
}

// ParseCandlesticks parses candlesticks from the provided json data. Candles without an
// explicit id are assigned one from their position in the provided data, offset by firstID.
func ParseCandlesticks(data []gjson.Result, market string, timeframe Timeframe, firstID int64, loc *time.Location) ([]Candlestick, error) {
	candles := make([]Candlestick, 0, len(data))

	for idx := range data {
		var candle Candlestick

		candle.ID = firstID + int64(idx)
		if id := data[idx].Get("id"); id.Exists() {
			candle.ID = id.Int()
		}

		candle.Open = data[idx].Get("open").Float()
		candle.Low = data[idx].Get("low").Float()
		candle.High = data[idx].Get("high").Float()
		candle.Close = data[idx].Get("close").Float()
		candle.Volume = data[idx].Get("volume").Float()

		candle.Market = market
		candle.Timeframe = timeframe

		dt, err := time.ParseInLocation(DateLayout, data[idx].Get("date").String(), loc)
		if err != nil {
			return nil, fmt.Errorf("parsing candlestick date: %w", err)
		}

		candle.Date = dt

		err = candle.Validate()
		if err != nil {
			return nil, err
		}

		candles = append(candles, candle)
	}

	return candles, nil
}
