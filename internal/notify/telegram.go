// Package notify delivers high-priority triage alerts to an operator
// channel. Only Telegram is wired today.
package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/careloop/triagelog/internal/config"
	"github.com/careloop/triagelog/internal/store"
	"github.com/careloop/triagelog/internal/triage"
)

// Bot is the slice of the Telegram API we use (allows mocking in tests).
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// BotFactory creates Bot instances (allows mocking)
type BotFactory func(token string) (Bot, error)

var defaultBotFactory BotFactory = func(token string) (Bot, error) {
	return tgbotapi.NewBotAPI(token)
}

type TelegramNotifier struct {
	bot    Bot
	chatID int64
	log    *zap.Logger
}

func NewTelegramNotifier(cfg config.TelegramConfig, log *zap.Logger) (*TelegramNotifier, error) {
	return NewTelegramNotifierWithFactory(cfg, log, defaultBotFactory)
}

func NewTelegramNotifierWithFactory(cfg config.TelegramConfig, log *zap.Logger, factory BotFactory) (*TelegramNotifier, error) {
	bot, err := factory(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramNotifier{
		bot:    bot,
		chatID: cfg.ChatID,
		log:    log,
	}, nil
}

func (n *TelegramNotifier) TriageAlert(ctx context.Context, ev store.Event, tr triage.Triage) error {
	text := fmt.Sprintf(
		"HIGH priority triage (event %d)\nSpecialist: %s\nReason: %s\nComplaint: %s",
		ev.ID, tr.Specialist, tr.Reason, ev.Text,
	)

	if _, err := n.bot.Send(tgbotapi.NewMessage(n.chatID, text)); err != nil {
		return fmt.Errorf("send telegram alert: %w", err)
	}

	n.log.Info("triage alert sent", zap.Int64("event_id", ev.ID))
	return nil
}
