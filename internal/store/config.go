package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"vol-spread-monitor/internal/retry"
	"vol-spread-monitor/internal/types"
)

const (
	ProviderYahoo = "yahoo"
	ProviderStooq = "stooq"

	EnvBotToken       = "TELEGRAM_BOT_TOKEN"
	EnvChatID         = "TELEGRAM_CHAT_ID"
	EnvPushgatewayURL = "PUSHGATEWAY_URL"
	EnvTimezone       = "MONITOR_TIMEZONE"
)

type Instrument struct {
	Symbol       string `yaml:"symbol" validate:"required"`
	Provider     string `yaml:"provider" validate:"required,oneof=yahoo stooq"`
	LookbackDays int    `yaml:"lookback_days" default:"10" validate:"min=1,max=60"`
}

type Config struct {
	Timezone string `yaml:"timezone" default:"Local"`
	HTTP     struct {
		Timeout time.Duration `yaml:"timeout" default:"15s" validate:"gt=0"`
	} `yaml:"http"`
	Retry struct {
		MaxAttempts int           `yaml:"max_attempts" default:"3" validate:"min=1,max=10"`
		DelayBase   time.Duration `yaml:"delay_base" default:"5s" validate:"gte=0"`
	} `yaml:"retry"`
	Instruments struct {
		VIX    Instrument `yaml:"vix"`
		VSTOXX Instrument `yaml:"vstoxx"`
	} `yaml:"instruments"`
	Providers struct {
		Yahoo struct {
			BaseURL string `yaml:"base_url" default:"https://query1.finance.yahoo.com" validate:"required,url"`
		} `yaml:"yahoo"`
		Stooq struct {
			BaseURL string `yaml:"base_url" default:"https://stooq.com" validate:"required,url"`
		} `yaml:"stooq"`
	} `yaml:"providers"`
	Telegram struct {
		BaseURL   string `yaml:"base_url" default:"https://api.telegram.org" validate:"required,url"`
		ParseMode string `yaml:"parse_mode" default:"HTML" validate:"oneof=HTML MarkdownV2 Markdown"`
		// Secrets come from the environment only.
		BotToken string `yaml:"-"`
		ChatID   string `yaml:"-"`
	} `yaml:"telegram"`
	Metrics struct {
		PushgatewayURL string `yaml:"pushgateway_url" validate:"omitempty,url"`
		Job            string `yaml:"job" default:"vol_spread_monitor" validate:"required"`
	} `yaml:"metrics"`
}

var validate = validator.New()

// Default returns a configuration with every default applied and no secrets.
func Default() *Config {
	var c Config
	if err := applyDefaults(&c); err != nil {
		// defaults tags are static; failure here is a programming error
		panic(err)
	}
	return &c
}

func applyDefaults(c *Config) error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("apply defaults: %w", err)
	}
	if c.Instruments.VIX.Symbol == "" {
		c.Instruments.VIX.Symbol = "^VIX"
	}
	if c.Instruments.VIX.Provider == "" {
		c.Instruments.VIX.Provider = ProviderYahoo
	}
	if c.Instruments.VSTOXX.Symbol == "" {
		c.Instruments.VSTOXX.Symbol = "^VSTOXX"
	}
	if c.Instruments.VSTOXX.Provider == "" {
		c.Instruments.VSTOXX.Provider = ProviderStooq
	}
	return nil
}

// Validate checks the non-secret settings. Missing secrets are reported by
// CheckSecrets so the caller can tell them apart.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	if c.Instruments.VIX.Symbol == c.Instruments.VSTOXX.Symbol {
		return fmt.Errorf("instruments.vix and instruments.vstoxx must differ, both are %q", c.Instruments.VIX.Symbol)
	}
	return nil
}

// CheckSecrets returns a *types.MisconfiguredError naming every missing secret.
func (c *Config) CheckSecrets() error {
	var missing []string
	if strings.TrimSpace(c.Telegram.BotToken) == "" {
		missing = append(missing, EnvBotToken)
	}
	if strings.TrimSpace(c.Telegram.ChatID) == "" {
		missing = append(missing, EnvChatID)
	}
	if len(missing) > 0 {
		return &types.MisconfiguredError{Missing: missing}
	}
	return nil
}

// RetryPolicy is the attempt budget shared by the fetcher and the notifier.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.Retry.MaxAttempts,
		Backoff:     retry.Linear(c.Retry.DelayBase),
	}
}

// Location resolves the configured time zone used to read "today".
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// LoadConfig reads the YAML file at path (a missing file means all defaults),
// then applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	var c Config

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyDefaults(&c); err != nil {
		return nil, err
	}
	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv() {
	c.Telegram.BotToken = os.Getenv(EnvBotToken)
	c.Telegram.ChatID = os.Getenv(EnvChatID)
	if v := os.Getenv(EnvPushgatewayURL); v != "" {
		c.Metrics.PushgatewayURL = v
	}
	if v := os.Getenv(EnvTimezone); v != "" {
		c.Timezone = v
	}
}
