package safety

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"kalshi-llm-bot/internal/store"
)

// Credentials are the process secrets pulled from the environment;
// they never live in the config file.
type Credentials struct {
	KalshiKeyID   string
	KalshiKeyPEM  string
	OpenRouterKey string
	TelegramToken string
	TelegramChat  string
}

// ValidateStartup fails fast on missing credentials. Configuration and
// credential errors are fatal and never retried.
func ValidateStartup(cfg *store.Config, creds Credentials) error {
	var missing []string
	if strings.TrimSpace(creds.KalshiKeyID) == "" {
		missing = append(missing, "KALSHI_ACCESS_KEY_ID")
	}
	if strings.TrimSpace(creds.KalshiKeyPEM) == "" {
		missing = append(missing, "KALSHI_PRIVATE_KEY / KALSHI_PRIVATE_KEY_PATH")
	}
	if cfg.LLM.Provider == "OPENROUTER" && strings.TrimSpace(creds.OpenRouterKey) == "" {
		missing = append(missing, "OPENROUTER_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing credentials: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Lockfile enforces the single-concurrent-cycle assumption: at most
// one bot process runs at a time, guaranteed by exclusive creation.
type Lockfile struct {
	path string
}

func AcquireLock(path string) (*Lockfile, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("lockfile %s exists, another cycle appears to be running", path)
		}
		return nil, fmt.Errorf("acquire lockfile: %w", err)
	}

	fmt.Fprintf(f, "%d\n", os.Getpid())
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, err
	}
	return &Lockfile{path: path}, nil
}

// Release removes the lockfile. Must run on every exit path.
func (l *Lockfile) Release() error {
	return os.Remove(l.path)
}
