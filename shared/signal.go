package shared

import (
	"time"
)

// TimeoutDuration is the maximum time to wait for a signal or request to be processed.
const TimeoutDuration = time.Second * 4

// StatusCode represents a request or signal status code.
type StatusCode int

const (
	Processing StatusCode = iota
	Processed
	Failed
)

// String stringifies the provided status code.
func (s StatusCode) String() string {
	switch s {
	case Processing:
		return "processing"
	case Processed:
		return "processed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// SignalStatus reports the provided status on the status channel if one is set. It never
// blocks, a full channel drops the status.
func SignalStatus(status chan StatusCode, code StatusCode) {
	if status == nil {
		return
	}

	select {
	case status <- code:
	default:
	}
}

// CatchUpSignal represents a signal to catchup on market data.
type CatchUpSignal struct {
	Market    string
	Timeframe Timeframe
	Start     time.Time
	Status    chan StatusCode
}

// NewCatchUpSignal initializes a new catch up signal.
func NewCatchUpSignal(market string, timeframe Timeframe, start time.Time) CatchUpSignal {
	return CatchUpSignal{
		Market:    market,
		Timeframe: timeframe,
		Start:     start,
		Status:    make(chan StatusCode, 1),
	}
}
