package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"kalshi-llm-bot/internal/engine"
	"kalshi-llm-bot/internal/exchange/kalshi"
	"kalshi-llm-bot/internal/interfaces"
	"kalshi-llm-bot/internal/ledger"
	"kalshi-llm-bot/internal/llm/brainobs"
	"kalshi-llm-bot/internal/llm/noop"
	"kalshi-llm-bot/internal/llm/openrouter"
	"kalshi-llm-bot/internal/logger"
	"kalshi-llm-bot/internal/notify/telegram"
	"kalshi-llm-bot/internal/pricefeed/binance"
	"kalshi-llm-bot/internal/safety"
	"kalshi-llm-bot/internal/store"
	"kalshi-llm-bot/internal/trace"

	"github.com/joho/godotenv"
)

// initializeSystem loads the environment and brings up logging and
// tracing. A tracer failure is non-fatal; a logger failure is.
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

func loadConfig(ctx context.Context) (*store.Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

// loadCredentials pulls secrets from the environment. The Kalshi
// private key comes either inline (KALSHI_PRIVATE_KEY) or from a file
// (KALSHI_PRIVATE_KEY_PATH); inline wins when both are set.
func loadCredentials(ctx context.Context) (safety.Credentials, error) {
	creds := safety.Credentials{
		KalshiKeyID:   os.Getenv("KALSHI_ACCESS_KEY_ID"),
		KalshiKeyPEM:  os.Getenv("KALSHI_PRIVATE_KEY"),
		OpenRouterKey: os.Getenv("OPENROUTER_API_KEY"),
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChat:  os.Getenv("TELEGRAM_CHAT_ID"),
	}
	if creds.KalshiKeyPEM == "" {
		if path := os.Getenv("KALSHI_PRIVATE_KEY_PATH"); path != "" {
			b, err := os.ReadFile(path)
			if err != nil {
				logger.ErrorWithErr(ctx, "Failed to read private key file", err, "path", path)
				return creds, err
			}
			creds.KalshiKeyPEM = string(b)
		}
	}
	return creds, nil
}

// buildEngine wires every port adapter and returns the engine plus a
// closer for resources that outlive construction.
func buildEngine(ctx context.Context, cfg *store.Config, creds safety.Credentials) (*engine.Engine, func(), error) {
	exchange, err := kalshi.NewClient(kalshi.Params{
		BaseURL: cfg.Exchange.BaseURL,
		Ticker:  cfg.Market.Ticker,
		KeyID:   creds.KalshiKeyID,
		KeyPEM:  creds.KalshiKeyPEM,
	})
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to build exchange client", err)
		return nil, nil, err
	}

	brain := buildBrain(cfg, creds)
	feed := binance.NewFeed(cfg.PriceFeed.BaseURL)
	notifier := buildNotifier(ctx, creds)

	db, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to open ledger", err, "path", cfg.Ledger.Path)
		return nil, nil, err
	}

	promptMD, err := loadPrompt(ctx, cfg.Prompt.Path)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	eng := engine.New(cfg, exchange, brain, feed, notifier, db, promptMD)
	closer := func() {
		if err := db.Close(); err != nil {
			logger.Warn(ctx, "Failed to close ledger", "error", err.Error())
		}
	}
	return eng, closer, nil
}

func buildBrain(cfg *store.Config, creds safety.Credentials) interfaces.Brain {
	var brain interfaces.Brain
	if cfg.LLM.Provider == "OPENROUTER" {
		brain = openrouter.NewBrain(cfg, creds.OpenRouterKey)
	} else {
		brain = noop.NewBrain()
	}
	return brainobs.Wrap(brain)
}

// buildNotifier returns nil when Telegram is not configured; the
// engine treats a nil notifier as "alerts disabled".
func buildNotifier(ctx context.Context, creds safety.Credentials) interfaces.Notifier {
	if creds.TelegramToken == "" || creds.TelegramChat == "" {
		logger.Info(ctx, "Telegram not configured, alerts disabled")
		return nil
	}
	return telegram.NewNotifier(creds.TelegramToken, creds.TelegramChat)
}

// loadPrompt reads the decision prompt template. A missing or empty
// prompt is a configuration error, not something to paper over.
func loadPrompt(ctx context.Context, path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to read prompt template", err, "path", path)
		return "", err
	}
	if strings.TrimSpace(string(b)) == "" {
		err := fmt.Errorf("prompt template %s is empty", path)
		logger.Error(ctx, "Empty prompt template", "path", path)
		return "", err
	}
	return string(b), nil
}
