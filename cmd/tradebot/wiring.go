package main

import (
	"context"

	goredis "github.com/go-redis/redis/v8"

	"github.com/thibautquentinjacob/trading-bot/config"
	"github.com/thibautquentinjacob/trading-bot/internal/execution"
	"github.com/thibautquentinjacob/trading-bot/internal/model"
	"github.com/thibautquentinjacob/trading-bot/internal/notification"
	redisstore "github.com/thibautquentinjacob/trading-bot/internal/store/redis"
)

// buildNotifier always logs alerts and adds Telegram and webhook
// delivery when configured.
func buildNotifier(cfg *config.Config) notification.Notifier {
	n := notification.Multi{notification.NewLogNotifier()}
	if cfg.TelegramBotToken != "" {
		n = append(n, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	if cfg.WebhookURL != "" {
		n = append(n, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	return n
}

func publisherClient(p *redisstore.Publisher) *goredis.Client {
	if p == nil {
		return nil
	}
	return p.Client()
}

// resetRiskOnOpen starts a new risk day whenever the market opens.
func resetRiskOnOpen(ctx context.Context, ex *execution.Executor, events <-chan model.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if open, isBool := ev.Payload.(bool); ev.Kind == model.EventMarket && isBool && open {
				ex.ResetDaily()
			}
		}
	}
}
