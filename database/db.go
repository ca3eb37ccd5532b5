package database

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/dnldd/chanlun/market"
	"github.com/dnldd/chanlun/structure"
	"github.com/google/uuid"
	rqlitehttp "github.com/rqlite/rqlite-go-http"
	"github.com/rs/zerolog"
)

const (
	// SQL statements.
	createStrokeTableSQL   = "CREATE TABLE IF NOT EXISTS stroke (id TEXT PRIMARY KEY, runid TEXT, market TEXT, seq INTEGER, trend TEXT, status TEXT, high REAL, low REAL, starttime INTEGER, endtime INTEGER, startid INTEGER, endid INTEGER, segments INTEGER)"
	createPivotTableSQL    = "CREATE TABLE IF NOT EXISTS pivot (id TEXT PRIMARY KEY, runid TEXT, market TEXT, seq INTEGER, zg REAL, zd REAL, gg REAL, dd REAL, level TEXT, status TEXT, trend TEXT, startid INTEGER, endid INTEGER, strokes INTEGER)"
	createAnalysisTableSQL = "CREATE TABLE IF NOT EXISTS analysis (market TEXT PRIMARY KEY, runid TEXT, timeframe TEXT, segments INTEGER, strokes INTEGER, pivots INTEGER, lastcandleid INTEGER, updatedon INTEGER)"
	deleteStrokesSQL       = "DELETE FROM stroke WHERE market = ?"
	deletePivotsSQL        = "DELETE FROM pivot WHERE market = ?"
	persistStrokeSQL       = "INSERT INTO stroke(id, runid, market, seq, trend, status, high, low, starttime, endtime, startid, endid, segments) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)"
	persistPivotSQL        = "INSERT INTO pivot(id, runid, market, seq, zg, zd, gg, dd, level, status, trend, startid, endid, strokes) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)"
	findAnalysisSQL        = "SELECT * FROM analysis WHERE market = ?"
	persistAnalysisSQL     = "INSERT INTO analysis(market, runid, timeframe, segments, strokes, pivots, lastcandleid, updatedon) VALUES(?,?,?,?,?,?,?,?)"
	updateAnalysisSQL      = "UPDATE analysis SET runid = ?, timeframe = ?, segments = ?, strokes = ?, pivots = ?, lastcandleid = ?, updatedon = ? WHERE market = ?"
)

// StructureStorer defines the requirements for storing market structure.
type StructureStorer interface {
	// PersistStructure replaces the stored structure of the signalled market.
	PersistStructure(ctx context.Context, signal market.StructureSignal) error
}

// DatabaseConfig is the configuration for the database.
type DatabaseConfig struct {
	// Endpoint represents the database connection endpoint.
	Endpoint string
	// User is the database user.
	User string
	// Pass is the database user pass.
	Pass string
	// Logger is the database logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *DatabaseConfig) Validate() error {
	var errs error

	if cfg.Endpoint == "" {
		errs = errors.Join(errs, fmt.Errorf("database endpoint cannot be an empty string"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Database represents the database connection.
type Database struct {
	cfg    *DatabaseConfig
	client *rqlitehttp.Client
}

// Ensure the database implements the StructureStorer interface.
var _ StructureStorer = (*Database)(nil)

// NewDatabase initializes a new database connection.
func NewDatabase(ctx context.Context, cfg *DatabaseConfig) (*Database, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating database config: %w", err)
	}

	httpc := &http.Client{Timeout: time.Second * 5}
	client, err := rqlitehttp.NewClient(cfg.Endpoint, httpc)
	if err != nil {
		return nil, fmt.Errorf("creating database client: %w", err)
	}

	if cfg.User != "" {
		client.SetBasicAuth(cfg.User, cfg.Pass)
	}

	db := &Database{
		cfg:    cfg,
		client: client,
	}

	err = db.bootstrap(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrapping database: %w", err)
	}

	return db, nil
}

// execute runs the provided statements in a single transaction.
func (db *Database) execute(ctx context.Context, stmts rqlitehttp.SQLStatements) error {
	resp, err := db.client.Execute(ctx, stmts, &rqlitehttp.ExecuteOptions{
		Transaction: true,
		Timings:     true,
	})
	if err != nil {
		return err
	}

	has, idx, errStr := resp.HasError()
	if has {
		return fmt.Errorf("executing statement %d: %s", idx, errStr)
	}

	return nil
}

// bootstrap initializes the database.
func (db *Database) bootstrap(ctx context.Context) error {
	return db.execute(ctx, rqlitehttp.SQLStatements{
		{SQL: createStrokeTableSQL},
		{SQL: createPivotTableSQL},
		{SQL: createAnalysisTableSQL},
	})
}

// strokeParams returns the positional parameters persisting the provided stroke.
func strokeParams(runID string, market string, seq int, stroke *structure.Stroke) []any {
	var startID, endID int64
	if len(stroke.OriginIDs) > 0 {
		startID = stroke.OriginIDs[0]
		endID = stroke.OriginIDs[len(stroke.OriginIDs)-1]
	}

	return []any{uuid.New().String(), runID, market, seq, stroke.Trend.String(), stroke.Status.String(),
		stroke.High, stroke.Low, stroke.Start.Unix(), stroke.End.Unix(), startID, endID, stroke.SegmentCount}
}

// pivotParams returns the positional parameters persisting the provided pivot.
func pivotParams(runID string, market string, seq int, pivot *structure.Pivot) []any {
	return []any{uuid.New().String(), runID, market, seq, pivot.ZG, pivot.ZD, pivot.GG, pivot.DD,
		string(pivot.Level), pivot.Status.String(), pivot.Trend.String(), pivot.StartID, pivot.EndID,
		len(pivot.Strokes)}
}

// structureStatements returns the statements replacing the stored structure of the signalled
// market. The analysis record is updated when it exists and inserted otherwise.
func structureStatements(runID string, signal market.StructureSignal, exists bool, now time.Time) rqlitehttp.SQLStatements {
	analysis := signal.Analysis

	stmts := rqlitehttp.SQLStatements{
		{SQL: deleteStrokesSQL, PositionalParams: []any{signal.Market}},
		{SQL: deletePivotsSQL, PositionalParams: []any{signal.Market}},
	}

	for idx, stroke := range analysis.Strokes {
		stmts = append(stmts, rqlitehttp.SQLStatements{
			{SQL: persistStrokeSQL, PositionalParams: strokeParams(runID, signal.Market, idx, stroke)},
		}...)
	}

	for idx, pivot := range analysis.Pivots {
		stmts = append(stmts, rqlitehttp.SQLStatements{
			{SQL: persistPivotSQL, PositionalParams: pivotParams(runID, signal.Market, idx, pivot)},
		}...)
	}

	timeframe := signal.Timeframe.String()
	segments, strokes, pivots := len(analysis.Segments), len(analysis.Strokes), len(analysis.Pivots)

	switch {
	case exists:
		stmts = append(stmts, rqlitehttp.SQLStatements{
			{
				SQL: updateAnalysisSQL,
				PositionalParams: []any{runID, timeframe, segments, strokes, pivots,
					signal.LastCandleID, now.Unix(), signal.Market},
			},
		}...)
	default:
		stmts = append(stmts, rqlitehttp.SQLStatements{
			{
				SQL: persistAnalysisSQL,
				PositionalParams: []any{signal.Market, runID, timeframe, segments, strokes, pivots,
					signal.LastCandleID, now.Unix()},
			},
		}...)
	}

	return stmts
}

// HasStructure checks whether structure has been stored for the provided market.
func (db *Database) HasStructure(ctx context.Context, market string) (bool, error) {
	resp, err := db.client.QuerySingle(ctx, findAnalysisSQL, market)
	if err != nil {
		return false, fmt.Errorf("finding %s analysis: %w", market, err)
	}

	return len(resp.GetQueryResultsAssoc()) > 0, nil
}

// PersistStructure replaces the stored strokes and pivots of the signalled market in a
// single transaction.
func (db *Database) PersistStructure(ctx context.Context, signal market.StructureSignal) error {
	if signal.Analysis == nil {
		db.cfg.Logger.Error().Msgf("unexpected structure signal without an analysis: %s", spew.Sdump(signal))
		return fmt.Errorf("no analysis provided for %s", signal.Market)
	}

	exists, err := db.HasStructure(ctx, signal.Market)
	if err != nil {
		return err
	}

	runID := uuid.New().String()
	stmts := structureStatements(runID, signal, exists, time.Now())

	err = db.execute(ctx, stmts)
	if err != nil {
		return fmt.Errorf("persisting %s structure: %w", signal.Market, err)
	}

	db.cfg.Logger.Debug().Msgf("persisted %d strokes and %d pivots for %s (run %s)",
		len(signal.Analysis.Strokes), len(signal.Analysis.Pivots), signal.Market, runID)

	return nil
}
