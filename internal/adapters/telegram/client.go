package telegram

import (
	"context"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"hypertrader/pkg/errors"
	"hypertrader/pkg/logger"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	// Telegram allows about one message per second to the same chat
	perChatInterval = time.Second
	perChatBurst    = 3
)

// Bot is a send-only Telegram client. It never polls for updates.
type Bot struct {
	api *tgbotapi.BotAPI
	log *logger.Logger

	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
}

type Config struct {
	Token       string
	Endpoint    string
	Debug       bool
	HTTPTimeout time.Duration
}

// NewBot authenticates with getMe, so a bad token fails at startup
func NewBot(cfg Config, log *logger.Logger) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.Wrap(errors.ErrNotConfigured, "telegram bot token is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = tgbotapi.APIEndpoint
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = defaultHTTPTimeout
	}

	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, cfg.Endpoint, &http.Client{Timeout: cfg.HTTPTimeout})
	if err != nil {
		return nil, errors.Wrap(err, "telegram getMe")
	}
	api.Debug = cfg.Debug

	log = log.With("component", "telegram", "bot", api.Self.UserName)
	log.Debugw("Telegram bot authorized")

	return &Bot{api: api, log: log, limiters: make(map[int64]*rate.Limiter)}, nil
}

func (b *Bot) limiter(chatID int64) *rate.Limiter {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.limiters[chatID]
	if !ok {
		l = rate.NewLimiter(rate.Every(perChatInterval), perChatBurst)
		b.limiters[chatID] = l
	}
	return l
}

// SendMarkdown sends text with legacy Markdown parsing. Callers escape any
// untrusted fragments.
func (b *Bot) SendMarkdown(ctx context.Context, chatID int64, text string) error {
	if err := b.limiter(chatID).Wait(ctx); err != nil {
		return errors.Wrapf(err, "telegram chat %d rate limit", chatID)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true

	start := time.Now()
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warnw("Failed to send message", "chat_id", chatID, "error", err)
		return errors.Wrap(err, "telegram sendMessage")
	}
	b.log.Debugw("Message sent", "chat_id", chatID, "duration", time.Since(start))
	return nil
}
