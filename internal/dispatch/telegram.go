package dispatch

import (
	"context"
	"fmt"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/Darkatse/StatusHub/internal/config"
	"github.com/Darkatse/StatusHub/internal/presence"
)

// telegramSender pushes the composed text to a Telegram chat. The bot is
// used purely as an outbound client; no update polling is started.
type telegramSender struct {
	bot  *tele.Bot
	chat *tele.Chat
}

func newTelegramSender(cfg config.TelegramSenderConfig) (*telegramSender, error) {
	bot, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, fmt.Errorf("telegram sender: %w", err)
	}
	return &telegramSender{
		bot:  bot,
		chat: &tele.Chat{ID: cfg.ChatID},
	}, nil
}

func (s *telegramSender) Name() string { return "telegram" }

func (s *telegramSender) Send(ctx context.Context, _ presence.StatusEvent, text string) error {
	done := make(chan error, 1)
	go func() {
		_, err := s.bot.Send(s.chat, text)
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(30 * time.Second):
		return fmt.Errorf("telegram send timed out")
	}
}
