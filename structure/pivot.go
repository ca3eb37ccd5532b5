package structure

import (
	"fmt"

	"github.com/dnldd/chanlun/shared"
)

const (
	// pivotWindowSize is the number of strokes a pivot is seeded from.
	pivotWindowSize = 5
)

// PivotLevel represents the aggregation level a pivot is detected at.
type PivotLevel string

const (
	// StrokeLevel pivots are formed directly from strokes.
	StrokeLevel PivotLevel = "stroke"
)

// Pivot represents a consolidation zone (zhongshu) formed by the shared overlap of strokes.
type Pivot struct {
	// ZG is the upper shared bound of the pivot's seeding strokes.
	ZG float64
	// ZD is the lower shared bound of the pivot's seeding strokes.
	ZD float64
	// GG is the absolute high over the pivot's strokes.
	GG float64
	// DD is the absolute low over the pivot's strokes.
	DD      float64
	Level   PivotLevel
	Status  Status
	Strokes []*Stroke
	StartID int64
	EndID   int64
	Trend   shared.Trend
}

// overlaps checks whether the provided stroke enters the [zd, zg] zone.
func overlaps(stroke *Stroke, zg float64, zd float64) bool {
	return stroke.Low < zg && stroke.High > zd
}

// NewPivot initializes a complete pivot over the provided strokes bounded by zg and zd.
func NewPivot(strokes []*Stroke, zg float64, zd float64) (*Pivot, error) {
	if len(strokes) < pivotWindowSize {
		return nil, fmt.Errorf("pivot requires at least %d strokes, got %d", pivotWindowSize, len(strokes))
	}
	if zg <= zd {
		return nil, fmt.Errorf("pivot zg %f must be above its zd %f", zg, zd)
	}

	first := strokes[0]
	last := strokes[len(strokes)-1]
	if len(first.OriginIDs) == 0 || len(last.OriginIDs) == 0 {
		return nil, fmt.Errorf("pivot boundary strokes must reference candles")
	}

	pivot := &Pivot{
		ZG:      zg,
		ZD:      zd,
		GG:      first.High,
		DD:      first.Low,
		Level:   StrokeLevel,
		Status:  Complete,
		Strokes: make([]*Stroke, 0, len(strokes)),
		StartID: first.OriginIDs[0],
		Trend:   first.Trend,
	}

	for idx := range strokes {
		if !overlaps(strokes[idx], zg, zd) {
			return nil, fmt.Errorf("stroke %d does not overlap the pivot zone [%f, %f]", idx, zd, zg)
		}
	}

	pivot.extend(strokes...)
	if pivot.GG < pivot.ZG || pivot.DD > pivot.ZD {
		return nil, fmt.Errorf("pivot extremes [%f, %f] do not enclose its zone [%f, %f]",
			pivot.DD, pivot.GG, pivot.ZD, pivot.ZG)
	}

	return pivot, nil
}

// extend appends the provided strokes to the pivot, folding their extremes into gg and dd.
func (p *Pivot) extend(strokes ...*Stroke) {
	for idx := range strokes {
		stroke := strokes[idx]
		p.GG = max(p.GG, stroke.High)
		p.DD = min(p.DD, stroke.Low)
		p.Strokes = append(p.Strokes, stroke)
	}

	if len(p.Strokes) > 0 {
		last := p.Strokes[len(p.Strokes)-1]
		if len(last.OriginIDs) > 0 {
			p.EndID = last.OriginIDs[len(last.OriginIDs)-1]
		}
	}
}

// alternates checks whether the provided strokes strictly alternate in trend.
func alternates(strokes []*Stroke) bool {
	for idx := 1; idx < len(strokes); idx++ {
		if strokes[idx].Trend == strokes[idx-1].Trend {
			return false
		}
	}

	return true
}

// zone returns the shared overlap bounds of the provided strokes.
func zone(strokes []*Stroke) (float64, float64) {
	zg := strokes[0].High
	zd := strokes[0].Low
	for idx := 1; idx < len(strokes); idx++ {
		zg = min(zg, strokes[idx].High)
		zd = max(zd, strokes[idx].Low)
	}

	return zg, zd
}

// DetectPivots slides a five stroke window over the provided strokes to find consolidation
// zones and extends each zone forward over the strokes that keep entering it.
func DetectPivots(strokes []*Stroke) []*Pivot {
	n := len(strokes)
	if n < pivotWindowSize {
		return nil
	}

	pivots := make([]*Pivot, 0)
	idx := 0
	for idx <= n-pivotWindowSize {
		window := strokes[idx : idx+pivotWindowSize]
		if !alternates(window) {
			idx++
			continue
		}

		zg, zd := zone(window)
		pivot, err := NewPivot(window, zg, zd)
		if err != nil {
			idx++
			continue
		}

		next := idx + pivotWindowSize
		var extension []*Stroke
		for j := next; j < n && overlaps(strokes[j], zg, zd); j++ {
			extension = append(extension, strokes[j])
		}

		k := len(extension)
		switch {
		case k == 0:
			idx = next

		case extension[k-1].Trend == window[0].Trend:
			// The last overlapping stroke runs with the pivot's first stroke, it is left
			// out of the pivot.
			pivot.extend(extension[:k-1]...)
			if next+k == n {
				// No stroke has left the zone yet, the pivot is still forming.
				pivot.Status = Incomplete
				idx = n
			} else {
				// The excluded stroke seeds the next window.
				idx = next + k - 1
			}

		default:
			pivot.extend(extension...)
			idx = next + k
		}

		pivots = append(pivots, pivot)
	}

	return pivots
}
