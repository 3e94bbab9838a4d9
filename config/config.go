package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/daytrader/internal/errs"
	"github.com/rustyeddy/daytrader/internal/logger"
	"github.com/rustyeddy/daytrader/scoring"
)

// Environment overrides applied by LoadFromFile.
const (
	EnvJournalDB   = "DAYTRADE_JOURNAL_DB"
	EnvLogLevel    = "DAYTRADE_LOG_LEVEL"
	EnvMetricsAddr = "DAYTRADE_METRICS_ADDR"
)

// Config represents a complete trading session.
type Config struct {
	Session SessionConfig  `json:"session" yaml:"session"`
	Log     logger.Config  `json:"log" yaml:"log"`
	Feed    FeedConfig     `json:"feed" yaml:"feed"`
	Broker  BrokerConfig   `json:"broker" yaml:"broker"`
	Scoring scoring.Params `json:"scoring" yaml:"scoring"`
	Risk    RiskConfig     `json:"risk" yaml:"risk"`
	Exits   ExitConfig     `json:"exits" yaml:"exits"`
	Journal JournalConfig  `json:"journal" yaml:"journal"`
	Metrics MetricsConfig  `json:"metrics" yaml:"metrics"`
}

// SessionConfig holds account and sizing parameters.
type SessionConfig struct {
	// Symbols limits trading to these symbols; empty trades every symbol
	// the feed prices.
	Symbols      []string      `json:"symbols,omitempty" yaml:"symbols,omitempty"`
	Cash         float64       `json:"cash" yaml:"cash" default:"10000000" validate:"gt=0"`
	Budget       float64       `json:"budget" yaml:"budget" validate:"gte=0"` // 0 uses cash
	OrderValue   float64       `json:"order_value" yaml:"order_value" default:"1000000" validate:"gt=0"`
	LotSize      int64         `json:"lot_size" yaml:"lot_size" default:"1" validate:"gte=1"`
	BuyThreshold float64       `json:"buy_threshold" yaml:"buy_threshold" default:"0.6" validate:"gte=-1,lte=1"`
	OrderTimeout time.Duration `json:"order_timeout" yaml:"order_timeout" default:"5s" validate:"gt=0"`
	TimeZone     string        `json:"time_zone" yaml:"time_zone" default:"UTC"`
	MaxTicks     int64         `json:"max_ticks" yaml:"max_ticks" validate:"gte=0"`
}

// FeedConfig selects the price source.
type FeedConfig struct {
	Type        string             `json:"type" yaml:"type" default:"random" validate:"oneof=random csv"`
	Path        string             `json:"path,omitempty" yaml:"path,omitempty" validate:"required_if=Type csv"`
	From        string             `json:"from,omitempty" yaml:"from,omitempty"` // RFC3339
	To          string             `json:"to,omitempty" yaml:"to,omitempty"`
	Seed        int64              `json:"seed" yaml:"seed" default:"1"`
	Volatility  float64            `json:"volatility" yaml:"volatility" default:"0.002" validate:"gte=0"`
	Interval    time.Duration      `json:"interval" yaml:"interval" default:"1s" validate:"gt=0"`
	StartPrices map[string]float64 `json:"start_prices,omitempty" yaml:"start_prices,omitempty"`
}

type BrokerConfig struct {
	SlippageBps float64  `json:"slippage_bps" yaml:"slippage_bps" validate:"gte=0"`
	MaxFillQty  int64    `json:"max_fill_qty" yaml:"max_fill_qty" validate:"gte=0"`
	Reject      []string `json:"reject,omitempty" yaml:"reject,omitempty"`
}

type RiskConfig struct {
	SectorFile  string            `json:"sector_file,omitempty" yaml:"sector_file,omitempty"`
	Exposure    ExposureConfig    `json:"exposure" yaml:"exposure"`
	DayDrawdown DayDrawdownConfig `json:"day_drawdown" yaml:"day_drawdown"`
	SectorCap   SectorCapConfig   `json:"sector_cap" yaml:"sector_cap"`
	Throttle    ThrottleConfig    `json:"throttle" yaml:"throttle"`
}

type ExposureConfig struct {
	Enabled       *bool   `json:"enabled" yaml:"enabled" default:"true"`
	MaxTotalPct   float64 `json:"max_total_pct" yaml:"max_total_pct" default:"0.5" validate:"gt=0,lte=1"`
	MaxSymbolPct  float64 `json:"max_symbol_pct" yaml:"max_symbol_pct" default:"0.12" validate:"gt=0,lte=1"`
	MaxSectorPct  float64 `json:"max_sector_pct" yaml:"max_sector_pct" validate:"gte=0,lte=1"`
	MinOrderValue float64 `json:"min_order_value" yaml:"min_order_value" validate:"gte=0"`
}

type DayDrawdownConfig struct {
	Enabled         *bool   `json:"enabled" yaml:"enabled" default:"true"`
	HardLimitPct    float64 `json:"hard_limit_pct" yaml:"hard_limit_pct" default:"-2.0" validate:"lt=0"`
	SoftLimitPct    float64 `json:"soft_limit_pct" yaml:"soft_limit_pct" default:"-1.0" validate:"gtfield=HardLimitPct"`
	CooldownMinutes float64 `json:"cooldown_minutes" yaml:"cooldown_minutes" default:"15" validate:"gte=0"`
	MinScale        float64 `json:"min_scale" yaml:"min_scale" default:"0.3" validate:"gt=0,lt=1"`
	FlattenOnHard   bool    `json:"flatten_on_hard" yaml:"flatten_on_hard"`
}

type SectorCapConfig struct {
	Enabled      bool    `json:"enabled" yaml:"enabled"`
	SectorCapPct float64 `json:"sector_cap_pct" yaml:"sector_cap_pct" default:"0.35" validate:"gt=0,lte=1"`
}

type ThrottleConfig struct {
	Enabled       *bool `json:"enabled" yaml:"enabled" default:"true"`
	CooldownTicks int   `json:"cooldown_ticks" yaml:"cooldown_ticks" default:"3" validate:"gte=0"`
}

type ExitConfig struct {
	TakeProfitPct float64 `json:"take_profit_pct" yaml:"take_profit_pct" default:"0.012" validate:"gt=0"`
	StopLossPct   float64 `json:"stop_loss_pct" yaml:"stop_loss_pct" default:"-0.01" validate:"lt=0"`
	TrailingPct   float64 `json:"trailing_pct" yaml:"trailing_pct" default:"0.006" validate:"gt=0"`
	MinHoldTicks  int64   `json:"min_hold_ticks" yaml:"min_hold_ticks" default:"3" validate:"gte=0"`
	CooldownTicks int64   `json:"cooldown_ticks" yaml:"cooldown_ticks" default:"5" validate:"gte=0"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type         string `json:"type" yaml:"type" default:"sqlite" validate:"oneof=none csv sqlite"`
	DBPath       string `json:"db_path,omitempty" yaml:"db_path,omitempty" default:"./daytrade.db"`
	FillsFile    string `json:"fills_file,omitempty" yaml:"fills_file,omitempty" default:"./fills.csv"`
	EquityFile   string `json:"equity_file,omitempty" yaml:"equity_file,omitempty" default:"./equity.csv"`
	SessionsFile string `json:"sessions_file,omitempty" yaml:"sessions_file,omitempty"`
}

type MetricsConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// On reports whether an optional switch is set, treating nil as true.
func On(b *bool) bool { return b == nil || *b }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Default returns a configuration with sensible defaults and a small
// random-walk universe.
func Default() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		panic(err)
	}
	cfg.Feed.StartPrices = map[string]float64{
		"005930": 70000,
		"000660": 130000,
		"035420": 210000,
	}
	return cfg
}

// LoadFromFile loads configuration from a YAML or JSON file. Fields the file
// leaves out keep their defaults; DAYTRADE_* environment variables override
// the file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML, falling back to JSON, over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = &Config{}
		_ = defaults.Set(cfg)
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", errors.Join(err, jerr))
		}
	}
	return cfg, nil
}

// ApplyEnv overrides settings from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvJournalDB); v != "" {
		c.Journal.Type = "sqlite"
		c.Journal.DBPath = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvMetricsAddr); v != "" {
		c.Metrics.Addr = v
	}
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks field ranges and the rules that span fields. Every error
// wraps errs.ErrConfiguration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return fieldError(ve[0])
		}
		return fmt.Errorf("%w: %v", errs.ErrConfiguration, err)
	}

	if c.Feed.Type == "random" && len(c.Feed.StartPrices) == 0 {
		return errs.Config("feed.start_prices", "required for the random feed")
	}
	for sym, px := range c.Feed.StartPrices {
		if px <= 0 {
			return errs.Config("feed.start_prices", "%s must be positive, got %v", sym, px)
		}
	}
	if _, _, err := c.Feed.Range(); err != nil {
		return errs.Config("feed.from", "%v", err)
	}
	if _, err := c.Session.Location(); err != nil {
		return errs.Config("session.time_zone", "%v", err)
	}
	switch c.Journal.Type {
	case "sqlite":
		if c.Journal.DBPath == "" {
			return errs.Config("journal.db_path", "required for the sqlite journal")
		}
	case "csv":
		if c.Journal.FillsFile == "" || c.Journal.EquityFile == "" {
			return errs.Config("journal.fills_file", "fills_file and equity_file required for the csv journal")
		}
	}
	if c.Risk.SectorCap.Enabled && c.Risk.SectorFile == "" {
		return errs.Config("risk.sector_file", "required when sector_cap is enabled")
	}
	return nil
}

func fieldError(fe validator.FieldError) error {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	var msg string
	switch fe.Tag() {
	case "required", "required_if":
		msg = "is required"
	case "oneof":
		msg = "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "gt":
		msg = "must be greater than " + fe.Param()
	case "gte":
		msg = "must be greater than or equal to " + fe.Param()
	case "lt":
		msg = "must be less than " + fe.Param()
	case "lte":
		msg = "must be less than or equal to " + fe.Param()
	case "gtfield":
		msg = "must be greater than " + fe.Param()
	default:
		msg = "failed validation: " + fe.Tag()
	}
	return errs.Config(ns, "%s, got %v", msg, fe.Value())
}

// Range parses the feed's optional [from, to) window.
func (f FeedConfig) Range() (from, to time.Time, err error) {
	if f.From != "" {
		if from, err = time.Parse(time.RFC3339, f.From); err != nil {
			return
		}
	}
	if f.To != "" {
		if to, err = time.Parse(time.RFC3339, f.To); err != nil {
			return
		}
	}
	if !from.IsZero() && !to.IsZero() && !to.After(from) {
		err = fmt.Errorf("to %s must be after from %s", f.To, f.From)
	}
	return
}

// Location resolves the session time zone used for trading-day rollover.
func (s SessionConfig) Location() (*time.Location, error) {
	if s.TimeZone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(s.TimeZone)
}
