package structure

import "github.com/dnldd/chanlun/shared"

// Analysis represents the recognized structure of a candle sequence.
type Analysis struct {
	Segments []*Segment
	Strokes  []*Stroke
	Pivots   []*Pivot
}

// Analyze reduces the provided candles into segments, strokes and pivots. Candles must be well
// formed and ordered ascending by date, a *shared.ValidationError is returned otherwise.
func Analyze(candles []*shared.Candlestick) (*Analysis, error) {
	segments, err := MergeCandles(candles)
	if err != nil {
		return nil, err
	}

	strokes := DetectStrokes(segments)
	pivots := DetectPivots(strokes)

	return &Analysis{
		Segments: segments,
		Strokes:  strokes,
		Pivots:   pivots,
	}, nil
}
