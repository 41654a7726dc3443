package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/careloop/triagelog/internal/config"
	"github.com/careloop/triagelog/internal/store"
	"github.com/careloop/triagelog/internal/triage"
)

type fakeBot struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		b.sent = append(b.sent, msg)
	}
	return tgbotapi.Message{}, b.err
}

func newTestNotifier(t *testing.T, bot *fakeBot) *TelegramNotifier {
	t.Helper()
	cfg := config.TelegramConfig{Enabled: true, Token: "123:abc", ChatID: 42}
	n, err := NewTelegramNotifierWithFactory(cfg, zap.NewNop(), func(token string) (Bot, error) {
		if token != "123:abc" {
			t.Fatalf("token = %q", token)
		}
		return bot, nil
	})
	if err != nil {
		t.Fatalf("NewTelegramNotifierWithFactory error: %v", err)
	}
	return n
}

func TestTriageAlert_SendsFormattedMessage(t *testing.T) {
	bot := &fakeBot{}
	n := newTestNotifier(t, bot)

	ev := store.Event{ID: 7, Type: store.TypeSymptom, Text: "crushing chest pain"}
	tr := triage.Triage{Specialist: "Cardiologist", Reason: "possible cardiac event", Priority: triage.PriorityHigh}

	if err := n.TriageAlert(context.Background(), ev, tr); err != nil {
		t.Fatalf("TriageAlert error: %v", err)
	}

	if len(bot.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(bot.sent))
	}
	msg := bot.sent[0]
	if msg.ChatID != 42 {
		t.Fatalf("chat id = %d", msg.ChatID)
	}
	for _, want := range []string{"HIGH priority", "event 7", "Cardiologist", "possible cardiac event", "crushing chest pain"} {
		if !strings.Contains(msg.Text, want) {
			t.Fatalf("message %q missing %q", msg.Text, want)
		}
	}
}

func TestTriageAlert_SendFailureIsReturned(t *testing.T) {
	bot := &fakeBot{err: errors.New("bad gateway")}
	n := newTestNotifier(t, bot)

	err := n.TriageAlert(context.Background(), store.Event{ID: 1}, triage.Triage{})
	if err == nil {
		t.Fatal("expected error from failing bot")
	}
}

func TestNewTelegramNotifier_FactoryErrorSurfaces(t *testing.T) {
	cfg := config.TelegramConfig{Token: "bad"}
	_, err := NewTelegramNotifierWithFactory(cfg, zap.NewNop(), func(token string) (Bot, error) {
		return nil, errors.New("unauthorized")
	})
	if err == nil {
		t.Fatal("expected factory error to surface")
	}
}
