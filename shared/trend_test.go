package shared

import "testing"

func TestTrendString(t *testing.T) {
	tests := []struct {
		name  string
		trend Trend
		want  string
	}{
		{
			"no trend",
			NoTrend,
			"none",
		},
		{
			"up trend",
			UpTrend,
			"up",
		},
		{
			"down trend",
			DownTrend,
			"down",
		},
		{
			"unknown trend",
			Trend(999),
			"unknown trend",
		},
	}

	for _, test := range tests {
		str := test.trend.String()
		if str != test.want {
			t.Errorf("%s: expected %v, got %v", test.name, test.want, str)
		}
	}
}

func TestClassifyTrend(t *testing.T) {
	tests := []struct {
		name  string
		prev  *Candlestick
		now   *Candlestick
		prior Trend
		want  Trend
	}{
		{
			name:  "higher high and higher low",
			prev:  &Candlestick{High: 110, Low: 100},
			now:   &Candlestick{High: 120, Low: 105},
			prior: NoTrend,
			want:  UpTrend,
		},
		{
			name:  "lower high and lower low",
			prev:  &Candlestick{High: 110, Low: 100},
			now:   &Candlestick{High: 105, Low: 95},
			prior: UpTrend,
			want:  DownTrend,
		},
		{
			name:  "inside candle keeps prior up trend",
			prev:  &Candlestick{High: 120, Low: 100},
			now:   &Candlestick{High: 115, Low: 105},
			prior: UpTrend,
			want:  UpTrend,
		},
		{
			name:  "outside candle keeps prior down trend",
			prev:  &Candlestick{High: 115, Low: 105},
			now:   &Candlestick{High: 120, Low: 100},
			prior: DownTrend,
			want:  DownTrend,
		},
		{
			name:  "equal highs without a prior trend",
			prev:  &Candlestick{High: 110, Low: 100},
			now:   &Candlestick{High: 110, Low: 105},
			prior: NoTrend,
			want:  NoTrend,
		},
		{
			name:  "unknown prior trend is not carried over",
			prev:  &Candlestick{High: 110, Low: 100},
			now:   &Candlestick{High: 110, Low: 100},
			prior: Trend(999),
			want:  NoTrend,
		},
	}

	for _, test := range tests {
		trend := ClassifyTrend(test.prev, test.now, test.prior)
		if trend != test.want {
			t.Errorf("%s: expected %s trend, got %s", test.name, test.want.String(), trend.String())
		}
	}
}
