package shared

import (
	"testing"
	"time"
)

func TestTimeframeString(t *testing.T) {
	tests := []struct {
		name      string
		timeframe Timeframe
		want      string
	}{
		{
			"One Hour",
			OneHour,
			"1H",
		},
		{
			"Five Minute",
			FiveMinute,
			"5m",
		},
		{
			"unknown",
			Timeframe(999),
			"unknown",
		},
	}

	for _, test := range tests {
		str := test.timeframe.String()
		if str != test.want {
			t.Errorf("%s: expected %v, got %v", test.name, test.want, str)
		}
	}
}

func TestTimeframeDuration(t *testing.T) {
	if FiveMinute.Duration() != time.Minute*5 {
		t.Errorf("expected five minute duration, got %v", FiveMinute.Duration())
	}
	if OneHour.Duration() != time.Hour {
		t.Errorf("expected one hour duration, got %v", OneHour.Duration())
	}
	if Timeframe(999).Duration() != 0 {
		t.Errorf("expected zero duration for unknown timeframe")
	}
}

func TestNewYorkTime(t *testing.T) {
	now, loc, err := NewYorkTime()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.String() != NewYorkLocation {
		t.Errorf("expected %s location, got %s", NewYorkLocation, loc.String())
	}
	if now.Location().String() != NewYorkLocation {
		t.Errorf("expected time in %s, got %s", NewYorkLocation, now.Location().String())
	}
}

func TestParseTimeframe(t *testing.T) {
	for _, want := range []Timeframe{FiveMinute, OneHour} {
		got, err := ParseTimeframe(want.String())
		if err != nil {
			t.Fatalf("unexpected error parsing %s: %v", want.String(), err)
		}
		if got != want {
			t.Errorf("expected %s, got %s", want.String(), got.String())
		}
	}

	_, err := ParseTimeframe("1m")
	if err == nil {
		t.Errorf("expected an error parsing an unknown timeframe")
	}
}
