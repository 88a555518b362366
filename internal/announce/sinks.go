package announce

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	logx "shutdownd/pkg/logx"
)

// LogSink writes announcements to the process log. It is always configured,
// so a broadcast is observable even with no external sink wired up.
type LogSink struct {
	Log logx.Logger
}

func (s LogSink) Name() string { return "log" }

func (s LogSink) Send(_ context.Context, message string) error {
	s.Log.Info("broadcast", logx.String("message", message))
	return nil
}

// TelegramConfig configures the optional ops-channel sink.
type TelegramConfig struct {
	Token      string
	ChatID     int64
	ThreadID   int
	RatePerSec int
}

// TelegramSink posts announcements to a Telegram chat/thread.
// It is send-only: no poller, no handlers.
type TelegramSink struct {
	bot      *tele.Bot
	chatID   int64
	threadID int
	limiter  *rate.Limiter
}

func NewTelegramSink(cfg TelegramConfig) (*TelegramSink, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is required")
	}
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}

	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	return &TelegramSink{
		bot:      b,
		chatID:   cfg.ChatID,
		threadID: cfg.ThreadID,
		limiter:  rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

func (s *TelegramSink) Name() string { return "telegram" }

func (s *TelegramSink) Send(ctx context.Context, message string) error {
	// Announcements are rare; waiting on the limiter (bounded by the caller's
	// ctx) beats dropping.
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := s.bot.Send(&tele.Chat{ID: s.chatID}, message, &tele.SendOptions{
		ThreadID:              s.threadID,
		DisableWebPagePreview: true,
	})
	return err
}
