package notify

import (
	"context"
	"fmt"
	"time"

	"signal-trade-bot-go/internal/config"
	"signal-trade-bot-go/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const telegramAPI = "https://api.telegram.org"

// Telegram posts HTML messages through the Bot API.
type Telegram struct {
	client *resty.Client
	token  string
	chatID string
	logger *zap.Logger
}

var _ Notifier = (*Telegram)(nil)

// NewTelegram returns nil when the sink is disabled or missing credentials.
func NewTelegram(cfg config.Telegram, logger *zap.Logger) *Telegram {
	logger = logger.Named("telegram")
	if !cfg.Enabled {
		logger.Info("Telegram notifications disabled")
		return nil
	}
	if cfg.BotToken == "" || cfg.ChatID == "" {
		logger.Warn("Telegram enabled but bot_token/chat_id not configured")
		return nil
	}
	return newTelegram(telegramAPI, cfg.BotToken, cfg.ChatID, logger)
}

func newTelegram(baseURL, token, chatID string, logger *zap.Logger) *Telegram {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second)
	return &Telegram{client: client, token: token, chatID: chatID, logger: logger}
}

// Send posts one message and reports whether it was accepted.
func (t *Telegram) Send(ctx context.Context, text string) error {
	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"chat_id":    t.chatID,
			"text":       text,
			"parse_mode": "HTML",
		}).
		SetResult(&result).
		SetError(&result).
		Post("/bot" + t.token + "/sendMessage")
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	if resp.IsError() || !result.OK {
		return fmt.Errorf("telegram rejected message: status %d: %s", resp.StatusCode(), result.Description)
	}
	return nil
}

func (t *Telegram) send(ctx context.Context, text string) {
	if err := t.Send(ctx, text); err != nil {
		t.logger.Error("Failed to deliver notification", zap.Error(err))
	}
}

func (t *Telegram) NotifyTrade(ctx context.Context, sig *models.Signal, exec *Execution) {
	t.send(ctx, FormatTrade(sig, exec))
}

func (t *Telegram) NotifyDailyReport(ctx context.Context, stats DailyStats) {
	t.send(ctx, FormatDailyReport(stats))
}

func (t *Telegram) NotifyError(ctx context.Context, message, details string) {
	t.send(ctx, FormatError(message, details))
}

func (t *Telegram) NotifyStartup(ctx context.Context, summary Summary) {
	t.send(ctx, FormatStartup(summary))
}

func (t *Telegram) NotifyShutdown(ctx context.Context) {
	t.send(ctx, shutdownMessage)
}
