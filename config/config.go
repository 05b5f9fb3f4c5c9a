package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"slots-panel/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultGatewayURL     = "http://localhost:8080"
	DefaultPort           = "8081"
	DefaultTuningFile     = "slots.yaml"
	DefaultTickInterval   = 47 * time.Millisecond
	DefaultTickCount      = 7
	DefaultRequestTimeout = 10 * time.Second
	DefaultPayoutRows     = 11
	DefaultEditsPerSecond = 5
	DefaultIdleTimeout    = 15 * time.Minute
)

// Config is the resolved process configuration
type Config struct {
	BotToken      string
	GatewayURL    string
	DatabaseURL   string
	Port          string
	LogLevel      string
	EventsEnabled bool

	Tuning Tuning
}

// Tuning holds panel behaviour read from the optional YAML file
type Tuning struct {
	BetLadder      models.BetLadder `yaml:"bet_ladder"`
	Animation      Animation        `yaml:"animation"`
	RequestTimeout time.Duration    `yaml:"request_timeout"`
	HistorySize    int              `yaml:"history_size"`
	PayoutRows     int              `yaml:"payout_rows"`
	EditsPerSecond int              `yaml:"edits_per_second"`
	IdleTimeout    time.Duration    `yaml:"idle_timeout"`
}

type Animation struct {
	TickInterval time.Duration `yaml:"tick_interval"`
	Ticks        int           `yaml:"ticks"`
}

// DefaultTuning reproduces the stock panel
func DefaultTuning() Tuning {
	return Tuning{
		BetLadder:      append(models.BetLadder(nil), models.DefaultBetLadder...),
		Animation:      Animation{TickInterval: DefaultTickInterval, Ticks: DefaultTickCount},
		RequestTimeout: DefaultRequestTimeout,
		HistorySize:    models.DefaultHistorySize,
		PayoutRows:     DefaultPayoutRows,
		EditsPerSecond: DefaultEditsPerSecond,
		IdleTimeout:    DefaultIdleTimeout,
	}
}

// Load reads .env (if present), the environment and the tuning file.
// A missing tuning file is not an error; a malformed one is.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		BotToken:      os.Getenv("BOT_TOKEN"),
		GatewayURL:    envOr("GATEWAY_URL", DefaultGatewayURL),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		Port:          envOr("PORT", DefaultPort),
		LogLevel:      envOr("LOG_LEVEL", "info"),
		EventsEnabled: true,
	}
	if v := os.Getenv("EVENTS_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("EVENTS_ENABLED: %w", err)
		}
		cfg.EventsEnabled = b
	}

	tuning, err := LoadTuning(envOr("SLOTS_CONFIG", DefaultTuningFile))
	if err != nil {
		return nil, err
	}
	cfg.Tuning = tuning
	return cfg, nil
}

// LoadTuning overlays the YAML file at path onto DefaultTuning
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return t, nil
	}
	if err != nil {
		return t, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if err := t.BetLadder.Validate(); err != nil {
		return err
	}
	switch {
	case t.Animation.TickInterval <= 0:
		return errors.New("animation.tick_interval must be positive")
	case t.Animation.Ticks <= 0:
		return errors.New("animation.ticks must be positive")
	case t.RequestTimeout <= 0:
		return errors.New("request_timeout must be positive")
	case t.HistorySize <= 0:
		return errors.New("history_size must be positive")
	case t.PayoutRows < 0:
		return errors.New("payout_rows must not be negative")
	case t.EditsPerSecond <= 0:
		return errors.New("edits_per_second must be positive")
	case t.IdleTimeout <= 0:
		return errors.New("idle_timeout must be positive")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
