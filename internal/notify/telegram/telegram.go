// Package telegram implements a Telegram Bot API notifier
package telegram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/northbeck/papertrade/internal/core"
	"github.com/northbeck/papertrade/internal/notify"
)

const defaultAPIBase = "https://api.telegram.org"

// Telegram implements the Notifier interface for Telegram Bot API
type Telegram struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

// New creates a new Telegram notifier
func New(botToken, chatID string) *Telegram {
	return NewWithBaseURL(botToken, chatID, defaultAPIBase)
}

// NewWithBaseURL creates a Telegram notifier against a custom API base,
// used in tests.
func NewWithBaseURL(botToken, chatID, baseURL string) *Telegram {
	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (t *Telegram) Name() string {
	return "telegram"
}

func (t *Telegram) Init(cfg notify.Config) error {
	if token, ok := cfg.Params["bot_token"].(string); ok {
		t.botToken = token
	}
	if chatID, ok := cfg.Params["chat_id"].(string); ok {
		t.chatID = chatID
	}

	if t.botToken == "" {
		return fmt.Errorf("telegram: bot_token is required")
	}
	if t.chatID == "" {
		return fmt.Errorf("telegram: chat_id is required")
	}
	if t.apiBase == "" {
		t.apiBase = defaultAPIBase
	}
	if t.client == nil {
		t.client = &http.Client{Timeout: 30 * time.Second}
	}

	return nil
}

func (t *Telegram) Send(event notify.Event) error {
	message := t.formatEvent(event)
	return t.sendMessage(message)
}

func (t *Telegram) SendBatch(events []notify.Event) error {
	if len(events) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📊 *%d Trade Events*\n\n", len(events)))

	for i, event := range events {
		sb.WriteString(t.formatEvent(event))
		if i < len(events)-1 {
			sb.WriteString("\n---\n\n")
		}
	}

	return t.sendMessage(sb.String())
}

func (t *Telegram) formatEvent(event notify.Event) string {
	var sb strings.Builder

	switch event.Type {
	case notify.EventTradeClosed:
		emoji := "📈"
		if event.PnL < 0 {
			emoji = "📉"
		}
		sb.WriteString(fmt.Sprintf("%s *%s* - closed %s [%s]\n", emoji, core.FormatSymbol(event.Symbol), event.Side, event.Reason))
		sb.WriteString(fmt.Sprintf("📊 Quantity: %.4f\n", event.Quantity))
		sb.WriteString(fmt.Sprintf("💰 Exit: $%.2f\n", event.Price))
		sb.WriteString(fmt.Sprintf("💡 P&L: $%.2f (%+.2f%%)\n", event.PnL, event.PnLPercent))
	default:
		emoji := "📈"
		if event.Side == core.SideShort {
			emoji = "📉"
		}
		sb.WriteString(fmt.Sprintf("%s *%s* - opened %s\n", emoji, core.FormatSymbol(event.Symbol), event.Side))
		sb.WriteString(fmt.Sprintf("📊 Quantity: %.4f\n", event.Quantity))
		sb.WriteString(fmt.Sprintf("💰 Price: $%.2f\n", event.Price))
	}

	if event.Strategy != "" {
		sb.WriteString(fmt.Sprintf("🎯 Strategy: %s\n", event.Strategy))
	}

	sb.WriteString(fmt.Sprintf("⏰ Time: %s", event.Time.Format("2006-01-02 15:04:05")))

	return sb.String()
}

func (t *Telegram) sendMessage(text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)

	payload := map[string]any{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: failed to marshal payload: %w", err)
	}

	resp, err := t.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var result map[string]any
		json.NewDecoder(resp.Body).Decode(&result)
		return fmt.Errorf("telegram: API error (status %d): %v", resp.StatusCode, result)
	}

	return nil
}
