package store

import (
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"kalshi-llm-bot/internal/risk"
)

const (
	ModeDryRun = "DRY_RUN"
	ModeLive   = "LIVE"
)

type Config struct {
	Mode string `yaml:"mode" default:"DRY_RUN" validate:"oneof=DRY_RUN LIVE"`

	Market struct {
		Ticker     string `yaml:"ticker" validate:"required"`
		LedgerTail int    `yaml:"ledger_tail" default:"10" validate:"gt=0"`
	} `yaml:"market"`

	Exchange struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"exchange"`

	PriceFeed struct {
		Symbol  string `yaml:"symbol" default:"BTCUSDT"`
		BaseURL string `yaml:"base_url"`
		Limit1m int    `yaml:"limit_1m" default:"15" validate:"gt=0"`
		Limit5m int    `yaml:"limit_5m" default:"12" validate:"gt=0"`
	} `yaml:"price_feed"`

	Risk risk.Limits `yaml:"risk"`

	LLM struct {
		Provider      string  `yaml:"provider" default:"OPENROUTER" validate:"oneof=OPENROUTER NOOP"`
		Model         string  `yaml:"model" default:"anthropic/claude-sonnet-4"`
		MaxTokens     int     `yaml:"max_tokens" default:"1200" validate:"gt=0"`
		ExitMaxTokens int     `yaml:"exit_max_tokens" default:"800" validate:"gt=0"`
		Temperature   float64 `yaml:"temperature" default:"0.2" validate:"gte=0,lte=2"`
	} `yaml:"llm"`

	Prompt struct {
		Path string `yaml:"path" default:"prompts/decision.md"`
	} `yaml:"prompt"`

	Ledger struct {
		Path string `yaml:"path" default:"data/ledger.db"`
	} `yaml:"ledger"`

	Exit struct {
		// Run the exit-position flow when a pending position's market
		// expires within this many minutes.
		TriggerMinutes float64 `yaml:"trigger_minutes" default:"10" validate:"gt=0"`
	} `yaml:"exit"`

	App struct {
		LockfilePath string `yaml:"lockfile_path" default:"data/bot.lock"`
	} `yaml:"app"`
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply config defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}
