package structure

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/dnldd/chanlun/shared"
	"github.com/peterldowns/testy/assert"
)

// generateCandles creates a deterministic oscillating price series with noise.
func generateCandles(n int) []*shared.Candlestick {
	candles := make([]*shared.Candlestick, n)
	seed := uint32(7)
	for idx := range n {
		seed = seed*1664525 + 1013904223
		noise := float64(seed%1000) / 100

		mid := 100 + 20*math.Sin(float64(idx)/6) + 8*math.Sin(float64(idx)/2.3) + noise
		spread := 1 + float64(seed%300)/100
		candles[idx] = &shared.Candlestick{
			ID:        int64(1000 + idx*3),
			High:      mid + spread,
			Low:       mid - spread,
			Date:      baseTime.Add(time.Minute * 5 * time.Duration(idx)),
			Timeframe: shared.FiveMinute,
		}
	}

	return candles
}

func TestAnalyze(t *testing.T) {
	// Ensure analyzing no candles yields an empty structure.
	analysis, err := Analyze(nil)
	assert.NoError(t, err)
	assert.Equal(t, len(analysis.Segments), 0)
	assert.Equal(t, len(analysis.Strokes), 0)
	assert.Equal(t, len(analysis.Pivots), 0)

	// Ensure a single candle yields a single segment.
	analysis, err = Analyze(makeCandles([]float64{100}, []float64{90}))
	assert.NoError(t, err)
	assert.Equal(t, len(analysis.Segments), 1)
	assert.Equal(t, len(analysis.Strokes), 1)
	assert.Equal(t, analysis.Strokes[0].Status, Incomplete)

	// Ensure a wide swing is recognized end to end.
	analysis, err = Analyze(makeCandles(wideHighs, wideLows))
	assert.NoError(t, err)
	assert.Equal(t, len(analysis.Segments), 9)
	assert.Equal(t, len(analysis.Strokes), 2)
	assert.Equal(t, analysis.Strokes[0].Status, Complete)
	assert.Equal(t, analysis.Strokes[0].Trend, shared.UpTrend)
	assert.Equal(t, len(analysis.Pivots), 0)

	// Ensure malformed candles are rejected before the pipeline runs.
	_, err = Analyze(makeCandles([]float64{100, 90}, []float64{90, 95}))
	var verr *shared.ValidationError
	assert.True(t, errors.As(err, &verr))

	// Ensure unordered candles are rejected before the pipeline runs.
	candles := makeCandles(wideHighs, wideLows)
	candles[4].Date = candles[2].Date
	_, err = Analyze(candles)
	assert.True(t, errors.As(err, &verr))
	assert.Equal(t, verr.Field, "date")
}

func TestAnalyzeInvariants(t *testing.T) {
	candles := generateCandles(600)
	analysis, err := Analyze(candles)
	assert.NoError(t, err)
	assert.GreaterThan(t, len(analysis.Strokes), 2)

	// Ensure segments are well formed and attain their extremes.
	segmentIDs := make(map[int64]struct{})
	for idx, seg := range analysis.Segments {
		if seg.High < seg.Low {
			t.Fatalf("segment %d: high %f below low %f", idx, seg.High, seg.Low)
		}
		if seg.Start.After(seg.End) {
			t.Fatalf("segment %d: start after end", idx)
		}

		var attainsHigh, attainsLow bool
		for _, member := range seg.Members {
			attainsHigh = attainsHigh || member.High == seg.High
			attainsLow = attainsLow || member.Low == seg.Low
		}
		if !attainsHigh || !attainsLow {
			t.Fatalf("segment %d: extremes not attained by its members", idx)
		}

		for _, id := range seg.MemberIDs {
			segmentIDs[id] = struct{}{}
		}
	}

	// Ensure detected turning points alternate.
	points := DetectTurningPoints(analysis.Segments)
	for idx := 1; idx < len(points); idx++ {
		if points[idx].Kind == points[idx-1].Kind {
			t.Fatalf("turning points %d and %d share a kind", idx-1, idx)
		}
	}

	// Ensure strokes are well formed and only reference merged candles.
	for idx, stroke := range analysis.Strokes {
		if stroke.High <= stroke.Low {
			t.Fatalf("stroke %d: high %f not above low %f", idx, stroke.High, stroke.Low)
		}

		for _, id := range stroke.OriginIDs {
			if _, ok := segmentIDs[id]; !ok {
				t.Fatalf("stroke %d: references unknown candle %d", idx, id)
			}
		}

		if stroke.Status != Complete {
			continue
		}

		switch stroke.Trend {
		case shared.UpTrend:
			if stroke.StartPoint.Kind != Bottom || stroke.EndPoint.Kind != Top {
				t.Fatalf("stroke %d: up stroke bounded by %s and %s", idx,
					stroke.StartPoint.Kind.String(), stroke.EndPoint.Kind.String())
			}
		case shared.DownTrend:
			if stroke.StartPoint.Kind != Top || stroke.EndPoint.Kind != Bottom {
				t.Fatalf("stroke %d: down stroke bounded by %s and %s", idx,
					stroke.StartPoint.Kind.String(), stroke.EndPoint.Kind.String())
			}
		default:
			t.Fatalf("stroke %d: unexpected trend %s", idx, stroke.Trend.String())
		}

		width := candlesBetween(stroke.StartPoint, stroke.EndPoint, analysis.Segments)
		if width < minStrokeWidth {
			t.Fatalf("stroke %d: only %d candles between its boundaries", idx, width)
		}
	}

	// Ensure pivots enclose their zones and every pivot stroke enters the zone.
	for idx, pivot := range analysis.Pivots {
		if pivot.ZG <= pivot.ZD || pivot.GG < pivot.ZG || pivot.DD > pivot.ZD {
			t.Fatalf("pivot %d: malformed bounds zg %f zd %f gg %f dd %f", idx,
				pivot.ZG, pivot.ZD, pivot.GG, pivot.DD)
		}
		if len(pivot.Strokes) < pivotWindowSize {
			t.Fatalf("pivot %d: only %d strokes", idx, len(pivot.Strokes))
		}
		for _, stroke := range pivot.Strokes {
			if !overlaps(stroke, pivot.ZG, pivot.ZD) {
				t.Fatalf("pivot %d: stroke outside its zone", idx)
			}
		}
	}
}

func TestAnalyzeNonContainment(t *testing.T) {
	// Ensure candles without containment are never merged.
	highs := []float64{100, 110, 105, 115, 108, 120}
	lows := []float64{90, 100, 95, 105, 98, 110}
	analysis, err := Analyze(makeCandles(highs, lows))
	assert.NoError(t, err)
	assert.Equal(t, len(analysis.Segments), len(highs))
	for _, seg := range analysis.Segments {
		assert.Equal(t, seg.MergedCount(), 1)
	}
}
