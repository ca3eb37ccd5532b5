package structure

import "github.com/dnldd/chanlun/shared"

const (
	// minStrokeWidth is the minimum number of candles strictly between the boundary turning
	// points of a stroke.
	minStrokeWidth = 3
)

// TurningPointKind represents the type of turning point.
type TurningPointKind int

const (
	NoTurningPoint TurningPointKind = iota
	Top
	Bottom
)

// String stringifies the provided turning point kind.
func (k TurningPointKind) String() string {
	switch k {
	case NoTurningPoint:
		return "none"
	case Top:
		return "top"
	case Bottom:
		return "bottom"
	default:
		return "unknown"
	}
}

// TurningPoint represents a local extreme (fenxing) over three consecutive segments.
type TurningPoint struct {
	Kind TurningPointKind
	High float64
	Low  float64
	// Index is the position of the middle segment in the segment sequence.
	Index     int
	LeftIDs   []int64
	MiddleIDs []int64
	RightIDs  []int64
	// ExtremeID is the id of the first middle segment candle attaining the turning point's extreme.
	ExtremeID int64

	LeftValid  bool
	RightValid bool
	Erased     bool
}

// Trend returns the trend of a stroke starting at the turning point.
func (tp *TurningPoint) Trend() shared.Trend {
	switch tp.Kind {
	case Bottom:
		return shared.UpTrend
	case Top:
		return shared.DownTrend
	default:
		return shared.NoTrend
	}
}

// moreExtreme checks whether the turning point surpasses the provided turning point of the same kind.
func (tp *TurningPoint) moreExtreme(other *TurningPoint) bool {
	switch tp.Kind {
	case Top:
		return tp.High > other.High
	case Bottom:
		return tp.Low < other.Low
	default:
		return false
	}
}

// DetectRawTurningPoints scans the provided segments for tops and bottoms.
func DetectRawTurningPoints(segments []*Segment) []TurningPoint {
	if len(segments) < 3 {
		return nil
	}

	points := make([]TurningPoint, 0, len(segments)/2)
	for idx := 1; idx < len(segments)-1; idx++ {
		left := segments[idx-1]
		middle := segments[idx]
		right := segments[idx+1]

		var kind TurningPointKind
		switch {
		case middle.High > left.High && middle.High > right.High &&
			middle.Low > min(left.Low, right.Low):
			kind = Top
		case middle.Low < left.Low && middle.Low < right.Low &&
			middle.High < max(left.High, right.High):
			kind = Bottom
		default:
			continue
		}

		points = append(points, TurningPoint{
			Kind:      kind,
			High:      middle.High,
			Low:       middle.Low,
			Index:     idx,
			LeftIDs:   left.MemberIDs,
			MiddleIDs: middle.MemberIDs,
			RightIDs:  right.MemberIDs,
			ExtremeID: middle.extremeID(kind),
		})
	}

	return points
}

// CollapseTurningPoints folds consecutive turning points of the same kind, keeping the more
// extreme one, so the result strictly alternates between tops and bottoms.
func CollapseTurningPoints(raw []TurningPoint) []TurningPoint {
	points := make([]TurningPoint, 0, len(raw))
	for idx := range raw {
		point := raw[idx]

		n := len(points)
		switch {
		case n == 0 || points[n-1].Kind != point.Kind:
			points = append(points, point)
		case point.moreExtreme(&points[n-1]):
			points[n-1] = point
		default:
			// discard the less extreme point.
		}
	}

	return points
}

// candlesBetween returns the number of candles merged into the segments strictly between
// the provided turning points.
func candlesBetween(a *TurningPoint, b *TurningPoint, segments []*Segment) int {
	var count int
	for idx := a.Index + 1; idx <= b.Index-1 && idx < len(segments); idx++ {
		count += len(segments[idx].MemberIDs)
	}

	return count
}

// IsStrokeValid checks whether a stroke can connect the provided turning points. The turning
// points must be of opposite kinds, price must advance away from the start and the segments
// strictly between them must hold at least three candles.
func IsStrokeValid(a *TurningPoint, b *TurningPoint, segments []*Segment) bool {
	if a.Kind == NoTurningPoint || b.Kind == NoTurningPoint || a.Kind == b.Kind {
		return false
	}

	switch a.Kind {
	case Bottom:
		if b.High <= a.Low {
			return false
		}
	case Top:
		if b.Low >= a.High {
			return false
		}
	}

	return candlesBetween(a, b, segments) >= minStrokeWidth
}

// ValidateTurningPoints marks the provided turning points erased through containment or
// failed stroke checks between adjacent points. Points are updated in place.
func ValidateTurningPoints(points []TurningPoint, segments []*Segment) {
	for idx := range points {
		points[idx].LeftValid = true
		points[idx].RightValid = true
		points[idx].Erased = false
	}

	for idx := 0; idx < len(points)-1; idx++ {
		a := &points[idx]
		b := &points[idx+1]

		switch {
		case a.High >= b.High && a.Low <= b.Low:
			// a contains b, b is erased entirely.
			b.LeftValid = false
			b.RightValid = false
			a.RightValid = false
			continue
		case b.High >= a.High && b.Low <= a.Low:
			// b contains a, a is erased entirely.
			a.LeftValid = false
			a.RightValid = false
			b.LeftValid = false
			continue
		}

		if !IsStrokeValid(a, b, segments) {
			a.RightValid = false
			b.LeftValid = false
		}
	}

	for idx := range points {
		points[idx].Erased = !points[idx].LeftValid && !points[idx].RightValid
	}
}

// DetectTurningPoints detects, collapses and validates the turning points of the provided segments.
func DetectTurningPoints(segments []*Segment) []TurningPoint {
	points := CollapseTurningPoints(DetectRawTurningPoints(segments))
	ValidateTurningPoints(points, segments)

	return points
}
