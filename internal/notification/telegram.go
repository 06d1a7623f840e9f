package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/adiwijaya/smarthome-server/internal/protocol"
	"github.com/adiwijaya/smarthome-server/pkg/config"
)

// TelegramNotifier delivers alert notifications to a Telegram chat.
type TelegramNotifier struct {
	config *config.TelegramConfig
	client *http.Client
}

// NewTelegramNotifier creates a new Telegram notifier.
func NewTelegramNotifier(cfg *config.TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// SendAlertNotification delivers the notification text of an alert record.
func (t *TelegramNotifier) SendAlertNotification(alert *protocol.AlertMessage) error {
	return t.Send(alert.NotificationText())
}

// Send delivers a text message to the configured chat. Best effort: when the
// bot is not configured the message is logged and dropped.
func (t *TelegramNotifier) Send(text string) error {
	if t.config.BotToken == "" || t.config.ChatID == "" {
		fmt.Printf("Telegram not configured, skipping message:\n%s\n", text)
		return nil
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.config.BotToken)
	payload, err := json.Marshal(map[string]string{
		"chat_id": t.config.ChatID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	resp, err := t.client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}

// TestConnection checks that the bot token is valid.
func (t *TelegramNotifier) TestConnection() error {
	if t.config.BotToken == "" {
		return fmt.Errorf("telegram not configured")
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/getMe", t.config.BotToken)
	resp, err := t.client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to reach Telegram API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	fmt.Println("Telegram connection test successful")
	return nil
}
