package structure

import (
	"testing"

	"github.com/dnldd/chanlun/shared"
	"github.com/google/go-cmp/cmp"
	"github.com/peterldowns/testy/assert"
)

func TestStatusString(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		want   string
	}{
		{"complete", Complete, "complete"},
		{"incomplete", Incomplete, "incomplete"},
		{"unknown", Status(999), "unknown"},
	}

	for _, test := range tests {
		str := test.status.String()
		if str != test.want {
			t.Errorf("%s: expected %v, got %v", test.name, test.want, str)
		}
	}
}

func TestNewStroke(t *testing.T) {
	segments := makeSegments(wideHighs, wideLows)
	bottom := &TurningPoint{Kind: Bottom, High: 90, Low: 85, Index: 2}
	top := &TurningPoint{Kind: Top, High: 115, Low: 105, Index: 6}

	// Ensure a stroke cannot be created without segments.
	_, err := NewStroke(nil, shared.UpTrend, nil, nil)
	assert.Error(t, err)

	// Ensure a stroke cannot be created without a direction.
	_, err = NewStroke(segments, shared.NoTrend, nil, nil)
	assert.Error(t, err)

	// Ensure a stroke cannot be created over a flat range.
	flat := makeSegments([]float64{100}, []float64{100})
	_, err = NewStroke(flat, shared.UpTrend, nil, nil)
	assert.Error(t, err)

	// Ensure a complete stroke requires a start turning point.
	_, err = NewStroke(segments[2:7], shared.UpTrend, nil, top)
	assert.Error(t, err)

	// Ensure a complete stroke's boundaries must agree with its trend.
	_, err = NewStroke(segments[2:7], shared.DownTrend, bottom, top)
	assert.Error(t, err)

	// Ensure a complete stroke can be created.
	stroke, err := NewStroke(segments[2:7], shared.UpTrend, bottom, top)
	assert.NoError(t, err)
	assert.Equal(t, stroke.Status, Complete)
	assert.Equal(t, stroke.High, float64(115))
	assert.Equal(t, stroke.Low, float64(85))
	assert.Equal(t, stroke.SegmentCount, 5)
	assert.Equal(t, stroke.Start, segments[2].Start)
	assert.Equal(t, stroke.End, segments[6].End)
	assert.Equal(t, len(stroke.Origins), 5)

	// Ensure an incomplete stroke can be created.
	stroke, err = NewStroke(segments[6:], shared.DownTrend, top, nil)
	assert.NoError(t, err)
	assert.Equal(t, stroke.Status, Incomplete)
	assert.Nil(t, stroke.EndPoint)
}

func TestNewStrokeDeduplicatesOrigins(t *testing.T) {
	// Ensure candles shared by segments are only referenced once.
	segments := makeSegments([]float64{100, 110}, []float64{90, 95})
	segments[1].extend(segments[0].Members[0], shared.UpTrend)

	stroke, err := NewStroke(segments, shared.UpTrend, nil, nil)
	assert.NoError(t, err)

	want := []int64{1, 2}
	if !cmp.Equal(want, stroke.OriginIDs) {
		t.Errorf("mismatching origin ids, got %v", cmp.Diff(want, stroke.OriginIDs))
	}
	assert.Equal(t, len(stroke.Origins), 2)
}

func TestDetectStrokes(t *testing.T) {
	type strokeSummary struct {
		Trend        shared.Trend
		Status       Status
		High         float64
		Low          float64
		SegmentCount int
		OriginIDs    []int64
		StartIndex   int
		EndIndex     int
	}

	summarize := func(strokes []*Stroke) []strokeSummary {
		set := make([]strokeSummary, 0, len(strokes))
		for _, stroke := range strokes {
			summary := strokeSummary{
				Trend:        stroke.Trend,
				Status:       stroke.Status,
				High:         stroke.High,
				Low:          stroke.Low,
				SegmentCount: stroke.SegmentCount,
				OriginIDs:    stroke.OriginIDs,
				StartIndex:   -1,
				EndIndex:     -1,
			}
			if stroke.StartPoint != nil {
				summary.StartIndex = stroke.StartPoint.Index
			}
			if stroke.EndPoint != nil {
				summary.EndIndex = stroke.EndPoint.Index
			}
			set = append(set, summary)
		}
		return set
	}

	tests := []struct {
		name  string
		highs []float64
		lows  []float64
		want  []strokeSummary
	}{
		{
			name:  "wide up stroke with a trailing down stroke",
			highs: wideHighs,
			lows:  wideLows,
			want: []strokeSummary{
				{
					Trend:        shared.UpTrend,
					Status:       Complete,
					High:         115,
					Low:          85,
					SegmentCount: 5,
					OriginIDs:    []int64{3, 4, 5, 6, 7},
					StartIndex:   2,
					EndIndex:     6,
				},
				{
					Trend:        shared.DownTrend,
					Status:       Incomplete,
					High:         115,
					Low:          91,
					SegmentCount: 3,
					OriginIDs:    []int64{7, 8, 9},
					StartIndex:   6,
					EndIndex:     -1,
				},
			},
		},
		{
			name:  "narrow stroke only yields an incomplete stroke",
			highs: narrowHighs,
			lows:  narrowLows,
			want: []strokeSummary{
				{
					Trend:        shared.UpTrend,
					Status:       Incomplete,
					High:         115,
					Low:          85,
					SegmentCount: 8,
					OriginIDs:    []int64{1, 2, 3, 4, 5, 6, 7, 8},
					StartIndex:   -1,
					EndIndex:     -1,
				},
			},
		},
		{
			name:  "trailing range with the same trend is spliced",
			highs: []float64{100, 95, 90, 97, 103, 109, 115, 112, 113},
			lows:  []float64{95, 90, 85, 88, 93, 99, 105, 106, 107},
			want: []strokeSummary{
				{
					Trend:        shared.UpTrend,
					Status:       Incomplete,
					High:         115,
					Low:          85,
					SegmentCount: 7,
					OriginIDs:    []int64{3, 4, 5, 6, 7, 8, 9},
					StartIndex:   2,
					EndIndex:     -1,
				},
			},
		},
		{
			name:  "no segments",
			highs: nil,
			lows:  nil,
			want:  []strokeSummary{},
		},
	}

	for _, test := range tests {
		strokes := DetectStrokes(makeSegments(test.highs, test.lows))
		got := summarize(strokes)
		if !cmp.Equal(test.want, got) {
			t.Errorf("%s: mismatching strokes, got %v", test.name, cmp.Diff(test.want, got))
		}
	}
}

func TestBuildStrokes(t *testing.T) {
	highs := []float64{100, 90, 95, 100, 96, 86, 95, 100, 108, 120, 112, 105}
	lows := []float64{90, 85, 88, 95, 85, 80, 85, 90, 98, 110, 102, 95}

	point := func(kind TurningPointKind, index int, highs []float64, lows []float64) TurningPoint {
		return TurningPoint{
			Kind:       kind,
			High:       highs[index],
			Low:        lows[index],
			Index:      index,
			LeftValid:  true,
			RightValid: true,
		}
	}

	// Ensure a deeper bottom ends the search for a stroke's end.
	segments := makeSegments(highs, lows)
	points := []TurningPoint{
		point(Bottom, 1, highs, lows),
		point(Top, 3, highs, lows),
		point(Bottom, 5, highs, lows),
		point(Top, 9, highs, lows),
	}

	strokes := BuildStrokes(points, segments)
	assert.Equal(t, len(strokes), 2)
	assert.Equal(t, strokes[0].Status, Complete)
	assert.Equal(t, strokes[0].Trend, shared.UpTrend)
	assert.Equal(t, strokes[0].StartPoint.Index, 5)
	assert.Equal(t, strokes[0].EndPoint.Index, 9)
	assert.Equal(t, strokes[0].High, float64(120))
	assert.Equal(t, strokes[0].Low, float64(80))
	assert.Equal(t, strokes[1].Status, Incomplete)
	assert.Equal(t, strokes[1].Trend, shared.DownTrend)
	assert.Equal(t, strokes[1].SegmentCount, 3)
	assert.Equal(t, strokes[1].StartPoint.Index, 9)
	assert.Equal(t, strokes[1].Low, float64(95))

	// Ensure a higher intermediate bottom keeps the up stroke searching.
	higherHighs := append([]float64{}, highs...)
	higherHighs[5] = 92
	higherLows := append([]float64{}, lows...)
	higherLows[5] = 88
	segments = makeSegments(higherHighs, higherLows)
	points = []TurningPoint{
		point(Bottom, 1, higherHighs, higherLows),
		point(Top, 3, higherHighs, higherLows),
		point(Bottom, 5, higherHighs, higherLows),
		point(Top, 9, higherHighs, higherLows),
	}

	strokes = BuildStrokes(points, segments)
	assert.Equal(t, len(strokes), 2)
	assert.Equal(t, strokes[0].StartPoint.Index, 1)
	assert.Equal(t, strokes[0].EndPoint.Index, 9)
	assert.Equal(t, strokes[0].SegmentCount, 9)

	// Ensure erased turning points cannot start a stroke.
	points = []TurningPoint{
		point(Bottom, 1, higherHighs, higherLows),
		point(Top, 3, higherHighs, higherLows),
		point(Bottom, 5, higherHighs, higherLows),
		point(Top, 9, higherHighs, higherLows),
	}
	points[0].Erased = true
	points[0].LeftValid = false
	points[0].RightValid = false

	strokes = BuildStrokes(points, segments)
	assert.Equal(t, strokes[0].Status, Complete)
	assert.Equal(t, strokes[0].StartPoint.Index, 5)
	assert.Equal(t, strokes[0].EndPoint.Index, 9)
}

func TestBuildStrokesPrefersFarthestEnd(t *testing.T) {
	highs := []float64{100, 85, 92, 98, 104, 110, 100, 95, 100, 106, 112, 120, 114, 108}
	lows := []float64{90, 80, 86, 92, 98, 104, 94, 90, 94, 100, 106, 114, 108, 102}
	segments := makeSegments(highs, lows)

	points := func() []TurningPoint {
		return []TurningPoint{
			{Kind: Bottom, High: 85, Low: 80, Index: 1, LeftValid: true, RightValid: true},
			{Kind: Top, High: 110, Low: 104, Index: 5, LeftValid: true, RightValid: true},
			{Kind: Bottom, High: 95, Low: 90, Index: 7, LeftValid: true, RightValid: true},
			{Kind: Top, High: 120, Low: 114, Index: 11, LeftValid: true, RightValid: true},
		}
	}

	// Ensure a fully valid candidate ends the stroke early.
	set := points()
	strokes := BuildStrokes(set, segments)
	assert.Equal(t, len(strokes), 3)
	assert.Equal(t, strokes[0].StartPoint.Index, 1)
	assert.Equal(t, strokes[0].EndPoint.Index, 5)
	assert.Equal(t, strokes[1].StartPoint.Index, 7)
	assert.Equal(t, strokes[1].EndPoint.Index, 11)
	assert.Equal(t, strokes[2].Status, Incomplete)
	assert.Equal(t, strokes[2].Trend, shared.DownTrend)

	// Ensure the farthest candidate is kept when nearer ones lack a natural boundary.
	set = points()
	set[1].RightValid = false
	strokes = BuildStrokes(set, segments)
	assert.Equal(t, len(strokes), 2)
	assert.Equal(t, strokes[0].StartPoint.Index, 1)
	assert.Equal(t, strokes[0].EndPoint.Index, 11)
	assert.Equal(t, strokes[0].SegmentCount, 11)

	// Ensure stroke boundaries are cemented as valid.
	set = points()
	set[1].LeftValid = false
	set[1].RightValid = false
	set[1].Erased = true
	set[3].LeftValid = false
	strokes = BuildStrokes(set, segments)
	assert.Equal(t, strokes[0].EndPoint.Index, 11)
	assert.True(t, set[3].LeftValid)
	assert.False(t, set[3].Erased)
	assert.True(t, strokes[0].EndPoint.LeftValid)
	assert.True(t, set[0].RightValid)
}
