package main

import (
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/dnldd/chanlun/shared"
	"github.com/joho/godotenv"
)

const (
	// defaultTimeframe is the default analyzed candle timeframe.
	defaultTimeframe = "5m"
	// defaultFetchInterval is the default period in minutes between market data fetches.
	defaultFetchInterval = 5
)

// Config is the configuration struct for the service.
type Config struct {
	// Markets represents the tracked markets.
	Markets []string
	// Timeframe is the analyzed candle timeframe.
	Timeframe string
	// FMPAPIkey is the FMP service API Key.
	FMPAPIKey string
	// FetchInterval is the period in minutes between market data fetches.
	FetchInterval int
	// SnapshotSize is the number of recent candles retained per market.
	SnapshotSize int
	// DatabaseEndpoint is the rqlite endpoint.
	DatabaseEndpoint string
	// DatabaseUser is the database user.
	DatabaseUser string
	// DatabasePass is the database user pass.
	DatabasePass string
	// RedisAddr is the redis address.
	RedisAddr string
	// RedisPass is the redis password.
	RedisPass string
	// RedisDB is the redis database index.
	RedisDB int
	// Replay is the historic data replay flag.
	Replay bool
	// ReplayDataFilepath is the filepath to the replayed historic data.
	ReplayDataFilepath string

	registeredFlags map[string]bool
}

// applyDefaults sets defaults for unset optional fields.
func (cfg *Config) applyDefaults() {
	if cfg.Timeframe == "" {
		cfg.Timeframe = defaultTimeframe
	}
	if cfg.FetchInterval == 0 {
		cfg.FetchInterval = defaultFetchInterval
	}
	if cfg.SnapshotSize == 0 {
		cfg.SnapshotSize = shared.SnapshotSize
	}
}

// Validate asserts the config sane inputs.
func (cfg *Config) Validate() error {
	var errs error

	if cfg.Timeframe != "" {
		_, err := shared.ParseTimeframe(cfg.Timeframe)
		if err != nil {
			errs = errors.Join(errs, err)
		}
	}
	if cfg.SnapshotSize < 0 || cfg.SnapshotSize > math.MaxInt32 {
		errs = errors.Join(errs, fmt.Errorf("snapshot size out of range: %d", cfg.SnapshotSize))
	}
	if cfg.RedisDB < 0 {
		errs = errors.Join(errs, fmt.Errorf("redis db cannot be negative"))
	}

	switch cfg.Replay {
	case true:
		if cfg.ReplayDataFilepath == "" {
			errs = errors.Join(errs, fmt.Errorf("replay data filepath cannot be an empty string"))
		}
	case false:
		if len(cfg.Markets) == 0 {
			errs = errors.Join(errs, fmt.Errorf("no markets provided for structure service"))
		}
		if cfg.FMPAPIKey == "" {
			errs = errors.Join(errs, fmt.Errorf("fmp api key cannot be an empty string"))
		}
		if cfg.FetchInterval < 0 {
			errs = errors.Join(errs, fmt.Errorf("fetch interval cannot be negative"))
		}
	}

	return errs
}

// registerFlag registers command line arguments of any type and tracks them to avoid reregistration.
func (cfg *Config) registerFlag(name string, value interface{}, usage string) error {
	if cfg.registeredFlags == nil {
		cfg.registeredFlags = make(map[string]bool)
	}

	if cfg.registeredFlags[name] {
		return nil
	}

	cfg.registeredFlags[name] = true

	defValue := os.Getenv(name)
	val := reflect.ValueOf(value)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fmt.Errorf("%s: value must be a non-nil pointer", name)
	}

	switch val.Elem().Kind() {
	case reflect.String:
		flag.StringVar(value.(*string), name, defValue, usage)
	case reflect.Bool:
		var def bool
		if defValue != "" {
			def, _ = strconv.ParseBool(defValue)
		}
		flag.BoolVar(value.(*bool), name, def, usage)
	case reflect.Int:
		var def int
		if defValue != "" {
			def, _ = strconv.Atoi(defValue)
		}
		flag.IntVar(value.(*int), name, def, usage)
	case reflect.Slice:
		// Only handle []string
		if val.Elem().Type().Elem().Kind() == reflect.String {
			var def []string
			if defValue != "" {
				def = strings.Split(defValue, ",")
			}
			flag.Func(name, usage, func(s string) error {
				*value.(*[]string) = strings.Split(s, ",")
				return nil
			})
			// Set default if not provided via flag
			if len(def) > 0 {
				*value.(*[]string) = def
			}
		} else {
			return fmt.Errorf("%s: unsupported slice type", name)
		}
	default:
		return fmt.Errorf("%s: unsupported type", name)
	}

	return nil
}

// loadConfig loads the configuration from environment variables and command line flags.
func loadConfig(cfg *Config, path string) error {
	if path == "" {
		path = ".env"
	}

	// Check if the expected .env file exists before loading it.
	_, err := os.Stat(path)
	if err == nil {
		err := godotenv.Load(path)
		if err != nil {
			return fmt.Errorf("loading .env file: %w", err)
		}
	}

	// Register command line arguments using loaded environment variables as defaults.
	err = cfg.registerFlag("markets", &cfg.Markets, "the tracked markets")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("timeframe", &cfg.Timeframe, "the analyzed candle timeframe (5m or 1H)")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("fmpapikey", &cfg.FMPAPIKey, "the FMP api key")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("fetchinterval", &cfg.FetchInterval, "the period in minutes between market data fetches")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("snapshotsize", &cfg.SnapshotSize, "the number of recent candles retained per market")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("dbendpoint", &cfg.DatabaseEndpoint, "the rqlite endpoint")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("dbuser", &cfg.DatabaseUser, "the database user")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("dbpass", &cfg.DatabasePass, "the database user pass")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("redisaddr", &cfg.RedisAddr, "the redis address")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("redispass", &cfg.RedisPass, "the redis password")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("redisdb", &cfg.RedisDB, "the redis database index")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("replay", &cfg.Replay, "the historic data replay flag")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("replaydatafilepath", &cfg.ReplayDataFilepath, "the replayed historic data filepath")
	if err != nil {
		return err
	}

	// Parse command-line flags.
	flag.Parse()

	err = cfg.Validate()
	if err != nil {
		return err
	}

	cfg.applyDefaults()

	return nil
}
