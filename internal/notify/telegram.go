package notify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSender delivers notifications through a Telegram bot.
type TelegramSender struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewTelegramSender creates a TelegramSender for the given bot token and chat
// ID. Creating the bot validates the token against the Bot API.
func NewTelegramSender(token, chatID string) (*TelegramSender, error) {
	return newTelegramSender(token, chatID, tgbotapi.APIEndpoint)
}

func newTelegramSender(token, chatID, endpoint string) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("telegram: invalid chat ID %q: %w", chatID, err)
	}
	return &TelegramSender{
		bot:            bot,
		chatID:         id,
		maxRetries:     3,
		retryDelayBase: time.Second,
	}, nil
}

// Name returns "telegram".
func (t *TelegramSender) Name() string {
	return "telegram"
}

// Send posts title in bold followed by message, retrying with a linear
// backoff.
func (t *TelegramSender) Send(ctx context.Context, title, message string) error {
	msg := tgbotapi.NewMessage(t.chatID, fmt.Sprintf("*%s*\n%s", escapeMarkdown(title), escapeMarkdown(message)))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true

	var lastErr error
	for i := 0; i < t.maxRetries; i++ {
		_, err := t.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		if i == t.maxRetries-1 {
			break
		}
		timer := time.NewTimer(t.retryDelayBase * time.Duration(i+1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("telegram: send: %w", ctx.Err())
		case <-timer.C:
		}
	}
	return fmt.Errorf("telegram: send after %d attempts: %w", t.maxRetries, lastErr)
}

// escapeMarkdown escapes the characters legacy Markdown mode treats as markup.
func escapeMarkdown(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}
