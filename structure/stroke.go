package structure

import (
	"errors"
	"fmt"
	"time"

	"github.com/dnldd/chanlun/shared"
)

// Status represents the completion state of a stroke or pivot.
type Status int

const (
	Complete Status = iota
	Incomplete
)

// String stringifies the provided status.
func (s Status) String() string {
	switch s {
	case Complete:
		return "complete"
	case Incomplete:
		return "incomplete"
	default:
		return "unknown"
	}
}

// Stroke represents a directional price swing (bi) between two opposite turning points.
type Stroke struct {
	Start        time.Time
	End          time.Time
	High         float64
	Low          float64
	Trend        shared.Trend
	Status       Status
	SegmentCount int
	OriginIDs    []int64
	Origins      []*shared.Candlestick
	StartPoint   *TurningPoint
	// EndPoint is nil for a trailing incomplete stroke.
	EndPoint *TurningPoint
}

// NewStroke initializes a stroke spanning the provided segments. A stroke with an end turning
// point is complete, its boundary kinds must agree with the trend.
func NewStroke(segments []*Segment, trend shared.Trend, start *TurningPoint, end *TurningPoint) (*Stroke, error) {
	if len(segments) == 0 {
		return nil, errors.New("stroke segments cannot be empty")
	}
	if trend != shared.UpTrend && trend != shared.DownTrend {
		return nil, fmt.Errorf("unexpected stroke trend: %s", trend.String())
	}

	stroke := &Stroke{
		Start:        segments[0].Start,
		End:          segments[len(segments)-1].End,
		High:         segments[0].High,
		Low:          segments[0].Low,
		Trend:        trend,
		Status:       Incomplete,
		SegmentCount: len(segments),
		StartPoint:   start,
		EndPoint:     end,
	}

	seen := make(map[int64]struct{})
	for idx := range segments {
		seg := segments[idx]
		stroke.High = max(stroke.High, seg.High)
		stroke.Low = min(stroke.Low, seg.Low)
		stroke.addOrigins(seg.Members, seen)
	}

	if stroke.High <= stroke.Low {
		return nil, fmt.Errorf("stroke high %f must be above its low %f", stroke.High, stroke.Low)
	}

	if end != nil {
		if start == nil {
			return nil, errors.New("complete stroke requires a start turning point")
		}

		want := [2]TurningPointKind{Bottom, Top}
		if trend == shared.DownTrend {
			want = [2]TurningPointKind{Top, Bottom}
		}
		if start.Kind != want[0] || end.Kind != want[1] {
			return nil, fmt.Errorf("%s stroke cannot run from a %s to a %s", trend.String(),
				start.Kind.String(), end.Kind.String())
		}

		stroke.Status = Complete
	}

	return stroke, nil
}

// addOrigins appends the provided candles to the stroke's origins, skipping ids already seen.
func (s *Stroke) addOrigins(candles []*shared.Candlestick, seen map[int64]struct{}) {
	for idx := range candles {
		candle := candles[idx]
		if _, ok := seen[candle.ID]; ok {
			continue
		}

		seen[candle.ID] = struct{}{}
		s.OriginIDs = append(s.OriginIDs, candle.ID)
		s.Origins = append(s.Origins, candle)
	}
}

// splice merges the provided trailing stroke into the stroke. The result is incomplete, starts
// where the stroke starts and ends where the tail ends.
func (s *Stroke) splice(tail *Stroke) *Stroke {
	merged := &Stroke{
		Start:        s.Start,
		End:          tail.End,
		High:         max(s.High, tail.High),
		Low:          min(s.Low, tail.Low),
		Trend:        s.Trend,
		Status:       Incomplete,
		SegmentCount: s.SegmentCount + tail.SegmentCount - 1,
		StartPoint:   s.StartPoint,
	}

	seen := make(map[int64]struct{}, len(s.OriginIDs)+len(tail.OriginIDs))
	merged.addOrigins(s.Origins, seen)
	merged.addOrigins(tail.Origins, seen)

	return merged
}

// strokeBuilder connects validated turning points into strokes.
type strokeBuilder struct {
	points   []TurningPoint
	segments []*Segment
	strokes  []*Stroke
}

// nextStart returns the position of the first non-erased turning point at or after the
// provided position, -1 if there is none.
func (b *strokeBuilder) nextStart(from int) int {
	for idx := from; idx < len(b.points); idx++ {
		if !b.points[idx].Erased {
			return idx
		}
	}

	return -1
}

// reversed checks whether the provided turning point, of the same kind as the stroke start,
// breaks the stroke's trend.
func reversed(start *TurningPoint, point *TurningPoint) bool {
	switch start.Kind {
	case Bottom:
		return point.Low <= start.Low
	case Top:
		return point.High >= start.High
	default:
		return true
	}
}

// tryConnect finds the end turning point for a stroke starting at the provided position,
// -1 if none qualifies. The farthest qualifying candidate is preferred until one with valid
// connections on both sides is found.
func (b *strokeBuilder) tryConnect(startIdx int) int {
	start := &b.points[startIdx]
	endKind := Top
	if start.Kind == Top {
		endKind = Bottom
	}

	best := -1
	for idx := startIdx + 1; idx < len(b.points); idx++ {
		candidate := &b.points[idx]

		if candidate.Kind == start.Kind {
			if reversed(start, candidate) {
				// The trend reversed, no farther candidate can form the stroke.
				break
			}
			continue
		}

		if candidate.Erased || candidate.Kind != endKind {
			continue
		}

		if !IsStrokeValid(start, candidate, b.segments) {
			continue
		}

		best = idx
		if candidate.RightValid && candidate.LeftValid {
			break
		}
	}

	return best
}

// connect builds a complete stroke between the provided turning point positions and cements
// both boundaries.
func (b *strokeBuilder) connect(startIdx int, endIdx int) (*Stroke, error) {
	startPoint := b.points[startIdx]
	startPoint.RightValid = true
	startPoint.Erased = false

	endPoint := b.points[endIdx]
	endPoint.LeftValid = true
	endPoint.Erased = false

	stroke, err := NewStroke(b.segments[startPoint.Index:endPoint.Index+1], startPoint.Trend(),
		&startPoint, &endPoint)
	if err != nil {
		return nil, err
	}

	b.points[startIdx].RightValid = true
	b.points[startIdx].Erased = false
	b.points[endIdx].LeftValid = true
	b.points[endIdx].Erased = false

	return stroke, nil
}

// tail builds the trailing incomplete stroke over the segments from the provided position
// and splices it into the last stroke when both share a trend.
func (b *strokeBuilder) tail(from int) {
	if len(b.segments) == 0 {
		return
	}

	span := b.segments[from:]
	trend := shared.DownTrend
	if span[0].Low <= span[len(span)-1].High {
		trend = shared.UpTrend
	}

	var startPoint *TurningPoint
	if n := len(b.strokes); n > 0 {
		startPoint = b.strokes[n-1].EndPoint
	}

	tail, err := NewStroke(span, trend, startPoint, nil)
	if err != nil {
		// A flat trailing range cannot form a stroke.
		return
	}

	n := len(b.strokes)
	if n > 0 && b.strokes[n-1].Trend == tail.Trend {
		b.strokes[n-1] = b.strokes[n-1].splice(tail)
		return
	}

	b.strokes = append(b.strokes, tail)
}

// BuildStrokes greedily connects the provided validated turning points into strokes and
// appends a trailing incomplete stroke over any segments left after the last one. Turning
// point flags are updated in place as stroke boundaries are cemented.
func BuildStrokes(points []TurningPoint, segments []*Segment) []*Stroke {
	b := &strokeBuilder{
		points:   points,
		segments: segments,
		strokes:  make([]*Stroke, 0, len(points)),
	}

	cursor := 0
	lastConsumed := -1
	for {
		startIdx := b.nextStart(cursor)
		if startIdx < 0 {
			break
		}

		endIdx := b.tryConnect(startIdx)
		if endIdx < 0 {
			cursor = startIdx + 1
			continue
		}

		stroke, err := b.connect(startIdx, endIdx)
		if err != nil {
			// Boundaries that cannot bound a well formed stroke are skipped.
			cursor = startIdx + 1
			continue
		}

		b.strokes = append(b.strokes, stroke)
		cursor = endIdx
		lastConsumed = b.points[endIdx].Index
	}

	switch {
	case lastConsumed < 0:
		b.tail(0)
	case lastConsumed < len(segments)-1:
		b.tail(lastConsumed)
	}

	return b.strokes
}

// DetectStrokes detects the turning points of the provided segments and connects them into strokes.
func DetectStrokes(segments []*Segment) []*Stroke {
	return BuildStrokes(DetectTurningPoints(segments), segments)
}
