package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"kalshi-llm-bot/internal/logger"
	"kalshi-llm-bot/internal/safety"
	"kalshi-llm-bot/internal/trace"
)

// The bot is a one-shot process: an external scheduler (cron, systemd
// timer) invokes it once per cycle and it exits when the cycle is done.
func main() {
	os.Exit(run())
}

func run() int {
	ctx := context.Background()

	if err := initializeSystem(); err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		return 1
	}
	defer func() { _ = trace.Shutdown(ctx) }()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return 1
	}
	creds, err := loadCredentials(ctx)
	if err != nil {
		return 1
	}
	if err := safety.ValidateStartup(cfg, creds); err != nil {
		logger.ErrorWithErr(ctx, "Startup validation failed", err)
		return 1
	}

	lock, err := safety.AcquireLock(cfg.App.LockfilePath)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to acquire lock", err)
		return 1
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn(ctx, "Failed to release lock", "error", err.Error())
		}
	}()

	eng, closer, err := buildEngine(ctx, cfg, creds)
	if err != nil {
		return 1
	}
	defer closer()

	res, err := eng.RunCycle(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Cycle failed", err)
		return 1
	}

	b, _ := json.Marshal(res)
	fmt.Println(string(b))
	return 0
}
