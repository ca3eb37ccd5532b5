package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dnldd/chanlun/market"
	"github.com/dnldd/chanlun/shared"
	"github.com/dnldd/chanlun/structure"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// cacheIntervals is the number of timeframe periods a cached structure stays valid for.
	cacheIntervals = 3
)

// StrokeSummary is the published form of a stroke.
type StrokeSummary struct {
	Trend   string    `json:"trend"`
	Status  string    `json:"status"`
	High    float64   `json:"high"`
	Low     float64   `json:"low"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	StartID int64     `json:"startId"`
	EndID   int64     `json:"endId"`
}

// PivotSummary is the published form of a pivot.
type PivotSummary struct {
	ZG      float64 `json:"zg"`
	ZD      float64 `json:"zd"`
	GG      float64 `json:"gg"`
	DD      float64 `json:"dd"`
	Level   string  `json:"level"`
	Status  string  `json:"status"`
	Trend   string  `json:"trend"`
	StartID int64   `json:"startId"`
	EndID   int64   `json:"endId"`
	Strokes int     `json:"strokes"`
}

// StructureSummary is the published form of a market's structure.
type StructureSummary struct {
	Market       string          `json:"market"`
	Timeframe    string          `json:"timeframe"`
	LastCandleID int64           `json:"lastCandleId"`
	Segments     int             `json:"segments"`
	Strokes      []StrokeSummary `json:"strokes"`
	Pivots       []PivotSummary  `json:"pivots"`
	CreatedOn    time.Time       `json:"createdOn"`
}

// summarize converts the provided structure signal to its published form.
func summarize(signal market.StructureSignal) StructureSummary {
	analysis := signal.Analysis
	summary := StructureSummary{
		Market:       signal.Market,
		Timeframe:    signal.Timeframe.String(),
		LastCandleID: signal.LastCandleID,
		Segments:     len(analysis.Segments),
		Strokes:      make([]StrokeSummary, 0, len(analysis.Strokes)),
		Pivots:       make([]PivotSummary, 0, len(analysis.Pivots)),
		CreatedOn:    signal.CreatedOn,
	}

	for _, stroke := range analysis.Strokes {
		summary.Strokes = append(summary.Strokes, summarizeStroke(stroke))
	}

	for _, pivot := range analysis.Pivots {
		summary.Pivots = append(summary.Pivots, PivotSummary{
			ZG:      pivot.ZG,
			ZD:      pivot.ZD,
			GG:      pivot.GG,
			DD:      pivot.DD,
			Level:   string(pivot.Level),
			Status:  pivot.Status.String(),
			Trend:   pivot.Trend.String(),
			StartID: pivot.StartID,
			EndID:   pivot.EndID,
			Strokes: len(pivot.Strokes),
		})
	}

	return summary
}

func summarizeStroke(stroke *structure.Stroke) StrokeSummary {
	summary := StrokeSummary{
		Trend:  stroke.Trend.String(),
		Status: stroke.Status.String(),
		High:   stroke.High,
		Low:    stroke.Low,
		Start:  stroke.Start,
		End:    stroke.End,
	}

	if len(stroke.OriginIDs) > 0 {
		summary.StartID = stroke.OriginIDs[0]
		summary.EndID = stroke.OriginIDs[len(stroke.OriginIDs)-1]
	}

	return summary
}

// structureChannel returns the pub/sub channel structure updates of a market are published on.
func structureChannel(market string) string {
	return fmt.Sprintf("structure:%s", market)
}

// latestStructureKey returns the key the latest structure of a market is cached under.
func latestStructureKey(market string) string {
	return fmt.Sprintf("structure:latest:%s", market)
}

// cacheTTL returns how long a cached structure of the provided timeframe stays valid.
func cacheTTL(timeframe shared.Timeframe) time.Duration {
	return timeframe.Duration() * cacheIntervals
}

// PublisherConfig represents the publisher configuration.
type PublisherConfig struct {
	// Addr is the redis server address.
	Addr string
	// Password is the redis server password.
	Password string
	// DB is the redis database index.
	DB int
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *PublisherConfig) Validate() error {
	var errs error

	if cfg.Addr == "" {
		errs = errors.Join(errs, fmt.Errorf("redis address cannot be an empty string"))
	}
	if cfg.DB < 0 {
		errs = errors.Join(errs, fmt.Errorf("redis db cannot be negative"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Publisher relays market structure updates over redis pub/sub.
type Publisher struct {
	cfg *PublisherConfig
	rdb *redis.Client
}

// NewPublisher initializes a new publisher and verifies the redis connection.
func NewPublisher(ctx context.Context, cfg *PublisherConfig) (*Publisher, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating publisher config: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: 10,
	})

	err = rdb.Ping(ctx).Err()
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}

	return &Publisher{
		cfg: cfg,
		rdb: rdb,
	}, nil
}

// PublishStructure publishes the signalled structure and caches it as the market's latest.
func (p *Publisher) PublishStructure(ctx context.Context, signal market.StructureSignal) error {
	if signal.Analysis == nil {
		return fmt.Errorf("no analysis provided for %s", signal.Market)
	}

	data, err := json.Marshal(summarize(signal))
	if err != nil {
		return fmt.Errorf("marshaling %s structure: %w", signal.Market, err)
	}

	channel := structureChannel(signal.Market)
	err = p.rdb.Publish(ctx, channel, data).Err()
	if err != nil {
		return fmt.Errorf("publishing %s structure on %s: %w", signal.Market, channel, err)
	}

	key := latestStructureKey(signal.Market)
	err = p.rdb.Set(ctx, key, data, cacheTTL(signal.Timeframe)).Err()
	if err != nil {
		return fmt.Errorf("caching %s structure under %s: %w", signal.Market, key, err)
	}

	p.cfg.Logger.Debug().Msgf("published %s structure on %s", signal.Market, channel)

	return nil
}

// Close closes the redis connection.
func (p *Publisher) Close() error {
	return p.rdb.Close()
}
