package structure

import (
	"fmt"
	"time"

	"github.com/dnldd/chanlun/shared"
)

// Segment represents a run of candles merged by high/low containment.
type Segment struct {
	Start time.Time
	End   time.Time
	High  float64
	Low   float64
	// Trend is the trend in force when the segment was last extended.
	Trend     shared.Trend
	MemberIDs []int64
	Members   []*shared.Candlestick
}

// NewSegment initializes a new segment seeded from the provided candle.
func NewSegment(candle *shared.Candlestick, trend shared.Trend) (*Segment, error) {
	if candle == nil {
		return nil, fmt.Errorf("segment candle cannot be nil")
	}

	err := candle.Validate()
	if err != nil {
		return nil, err
	}

	return newSegment(candle, trend), nil
}

// newSegment seeds a segment from a candle already known to be well formed.
func newSegment(candle *shared.Candlestick, trend shared.Trend) *Segment {
	return &Segment{
		Start:     candle.Date,
		End:       candle.Date,
		High:      candle.High,
		Low:       candle.Low,
		Trend:     trend,
		MemberIDs: []int64{candle.ID},
		Members:   []*shared.Candlestick{candle},
	}
}

// MergedCount returns the number of candles folded into the segment.
func (s *Segment) MergedCount() int {
	return len(s.MemberIDs)
}

// contains checks whether the segment and the provided candle enclose one another.
func (s *Segment) contains(candle *shared.Candlestick) bool {
	return (s.High >= candle.High && s.Low <= candle.Low) ||
		(candle.High >= s.High && candle.Low <= s.Low)
}

// extend folds the provided candle into the segment under the provided trend. Up trends keep
// the higher high and higher low, down trends keep the lower high and lower low.
func (s *Segment) extend(candle *shared.Candlestick, trend shared.Trend) {
	switch trend {
	case shared.UpTrend:
		s.High = max(s.High, candle.High)
		s.Low = max(s.Low, candle.Low)
	case shared.DownTrend:
		s.High = min(s.High, candle.High)
		s.Low = min(s.Low, candle.Low)
	}

	s.MemberIDs = append(s.MemberIDs, candle.ID)
	s.Members = append(s.Members, candle)
	s.End = candle.Date
	s.Trend = trend
}

// extremeID returns the id of the first member candle, in time order, attaining the
// provided price at its high (top) or low (bottom).
func (s *Segment) extremeID(kind TurningPointKind) int64 {
	for idx := range s.Members {
		member := s.Members[idx]
		switch {
		case kind == Top && member.High == s.High:
			return member.ID
		case kind == Bottom && member.Low == s.Low:
			return member.ID
		}
	}

	// A directional merge can leave the segment extreme unattained by any single member,
	// fall back to the first member in that case.
	return s.MemberIDs[0]
}

// MergeCandles reduces the provided candles into segments by resolving high/low containment.
// Candles must be well formed and ordered ascending by date.
func MergeCandles(candles []*shared.Candlestick) ([]*Segment, error) {
	err := shared.ValidateCandlesticks(candles)
	if err != nil {
		return nil, err
	}

	return mergeCandles(candles), nil
}

// mergeCandles merges already validated candles.
func mergeCandles(candles []*shared.Candlestick) []*Segment {
	if len(candles) == 0 {
		return nil
	}

	segments := make([]*Segment, 0, len(candles))
	current := newSegment(candles[0], shared.NoTrend)
	trend := shared.NoTrend

	for idx := 1; idx < len(candles); idx++ {
		prev := candles[idx-1]
		now := candles[idx]

		trend = shared.ClassifyTrend(prev, now, trend)
		if trend != shared.NoTrend && current.contains(now) {
			current.extend(now, trend)
			continue
		}

		segments = append(segments, current)
		current = newSegment(now, trend)
	}

	segments = append(segments, current)

	return segments
}
