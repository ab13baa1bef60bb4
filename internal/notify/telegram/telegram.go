package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Notifier pushes human-readable alerts to a Telegram chat. Callers
// must never let a failed alert abort the trading cycle.
type Notifier struct {
	token  string
	chatID string
	http   *http.Client
}

func NewNotifier(token, chatID string) *Notifier {
	return &Notifier{token: token, chatID: chatID, http: &http.Client{Timeout: 15 * time.Second}}
}

func (n *Notifier) Alert(ctx context.Context, message string) error {
	if n.token == "" || n.chatID == "" {
		return fmt.Errorf("telegram notifier not configured")
	}

	body, err := json.Marshal(map[string]any{
		"chat_id": n.chatID,
		"text":    message,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("telegram status %d", resp.StatusCode)
	}
	return nil
}
