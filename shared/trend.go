package shared

// Trend represents the direction of price between adjacent candles.
type Trend int

const (
	NoTrend Trend = iota
	UpTrend
	DownTrend
)

// String stringifies the provided trend.
func (t Trend) String() string {
	switch t {
	case NoTrend:
		return "none"
	case UpTrend:
		return "up"
	case DownTrend:
		return "down"
	default:
		return "unknown trend"
	}
}

// ClassifyTrend judges the trend between the provided adjacent candles. When the candles
// neither both rise nor both fall the prior trend carries over.
func ClassifyTrend(prev *Candlestick, now *Candlestick, prior Trend) Trend {
	switch {
	case now.High > prev.High && now.Low > prev.Low:
		return UpTrend
	case now.High < prev.High && now.Low < prev.Low:
		return DownTrend
	case prior == UpTrend || prior == DownTrend:
		return prior
	default:
		return NoTrend
	}
}
