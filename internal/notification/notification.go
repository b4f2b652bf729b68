// Package notification delivers screening alerts through configured
// channels behind a rate-limiting gate.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"altcoin-screener/config"
)

// Notifier is a notification channel.
type Notifier interface {
	Send(ctx context.Context, subject, message string) error
	Name() string
	IsEnabled() bool
}

// Manager fans one alert out to every enabled channel.
type Manager struct {
	notifiers []Notifier
	log       zerolog.Logger
}

func NewManager(cfg config.NotificationConfig, logger zerolog.Logger) *Manager {
	m := &Manager{log: logger.With().Str("component", "notification").Logger()}

	if cfg.Telegram.Enabled && cfg.Telegram.BotToken != "" {
		m.notifiers = append(m.notifiers, NewTelegramNotifier(cfg.Telegram))
	}
	if cfg.Email.Enabled && cfg.Email.Host != "" {
		m.notifiers = append(m.notifiers, NewEmailNotifier(cfg.Email))
	}

	return m
}

// HasChannels reports whether any channel is configured.
func (m *Manager) HasChannels() bool {
	return len(m.notifiers) > 0
}

// Send delivers to all enabled channels and returns the names of those that
// accepted the message.
func (m *Manager) Send(ctx context.Context, subject, message string) []string {
	var delivered []string
	for _, n := range m.notifiers {
		if !n.IsEnabled() {
			continue
		}
		if err := n.Send(ctx, subject, message); err != nil {
			m.log.Warn().Err(err).Str("channel", n.Name()).Msg("notification delivery failed")
			continue
		}
		delivered = append(delivered, n.Name())
	}
	return delivered
}

// TelegramNotifier sends messages through the Telegram Bot API.
type TelegramNotifier struct {
	cfg        config.TelegramConfig
	httpClient *http.Client
}

func NewTelegramNotifier(cfg config.TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) Name() string    { return "telegram" }
func (t *TelegramNotifier) IsEnabled() bool { return t.cfg.Enabled }

func (t *TelegramNotifier) Send(ctx context.Context, subject, message string) error {
	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.cfg.BotToken)

	payload := map[string]interface{}{
		"chat_id":    t.cfg.ChatID,
		"text":       fmt.Sprintf("*%s*\n%s", subject, message),
		"parse_mode": "Markdown",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error sending telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram API error %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
