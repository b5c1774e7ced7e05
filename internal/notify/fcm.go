package notify

import (
	"context"
	"fmt"

	"signal-trade-bot-go/internal/config"
	"signal-trade-bot-go/internal/models"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// multicaster is the part of the messaging client used for delivery.
type multicaster interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCM pushes short alerts to registered devices.
type FCM struct {
	client multicaster
	tokens []string
	logger *zap.Logger
}

var _ Notifier = (*FCM)(nil)

// NewFCM returns nil when push is disabled or no device tokens are configured.
func NewFCM(ctx context.Context, cfg config.FCM, logger *zap.Logger) (*FCM, error) {
	logger = logger.Named("fcm")
	if !cfg.Enabled || len(cfg.Tokens) == 0 {
		logger.Info("Push notifications disabled")
		return nil, nil
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(cfg.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	logger.Info("Firebase Cloud Messaging initialized", zap.Int("devices", len(cfg.Tokens)))
	return &FCM{client: client, tokens: cfg.Tokens, logger: logger}, nil
}

func (f *FCM) push(ctx context.Context, title, body string, data map[string]string) {
	message := &messaging.MulticastMessage{
		Tokens: f.tokens,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "trade_alerts",
				Priority:  messaging.PriorityHigh,
			},
		},
	}

	resp, err := f.client.SendEachForMulticast(ctx, message)
	if err != nil {
		f.logger.Error("Failed to send push notification", zap.Error(err))
		return
	}
	if resp.FailureCount > 0 {
		f.logger.Warn("Some push notifications failed",
			zap.Int("success", resp.SuccessCount),
			zap.Int("failure", resp.FailureCount),
		)
	}
}

func (f *FCM) NotifyTrade(ctx context.Context, sig *models.Signal, exec *Execution) {
	body := fmt.Sprintf("%s confidence %d%%", sig.Symbol, sig.Confidence)
	status := "signal"
	if exec != nil {
		switch {
		case exec.DryRun:
			status = "dry_run"
		case exec.Success:
			status = "executed"
			body = fmt.Sprintf("%s %.6f @ %s", sig.Symbol, exec.Quantity, price(exec.FillPrice))
		default:
			status = "failed"
			body = fmt.Sprintf("%s execution failed: %s", sig.Symbol, exec.Error)
		}
	}
	f.push(ctx, fmt.Sprintf("%s %s", sig.Action, sig.Symbol), body, map[string]string{
		"type":   "trade",
		"symbol": sig.Symbol,
		"action": string(sig.Action),
		"status": status,
	})
}

func (f *FCM) NotifyDailyReport(ctx context.Context, stats DailyStats) {
	body := fmt.Sprintf("%d trades, PnL %+.2f %s, balance %.2f", stats.TotalTrades, stats.TotalPnL, stats.Currency, stats.Balance)
	f.push(ctx, "Daily report", body, map[string]string{"type": "daily_report"})
}

func (f *FCM) NotifyError(ctx context.Context, message, _ string) {
	f.push(ctx, "Trading bot error", message, map[string]string{"type": "error"})
}

func (f *FCM) NotifyStartup(ctx context.Context, summary Summary) {
	f.push(ctx, "Bot started", fmt.Sprintf("%s %s %v", summary.Exchange, summary.Mode, summary.Symbols),
		map[string]string{"type": "startup"})
}

func (f *FCM) NotifyShutdown(ctx context.Context) {
	f.push(ctx, "Bot stopped", "Trading bot has been shut down.", map[string]string{"type": "shutdown"})
}
