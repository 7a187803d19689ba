// Package telegram delivers digests through the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/pscheid92/stockpulse/internal/domain"
)

// maxMessageLength is Telegram's limit for one text message, in characters.
const maxMessageLength = 4096

type Notifier struct {
	api *tgbotapi.BotAPI
}

var _ domain.Notifier = (*Notifier)(nil)

// NewNotifier authenticates the bot token against the public Bot API.
func NewNotifier(token string) (*Notifier, error) {
	return NewNotifierWithEndpoint(token, tgbotapi.APIEndpoint)
}

// NewNotifierWithEndpoint uses endpoint, a format string taking the token and
// the method name.
func NewNotifierWithEndpoint(token, endpoint string) (*Notifier, error) {
	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect telegram bot: %w", err)
	}
	return &Notifier{api: api}, nil
}

func (n *Notifier) Username() string {
	return n.api.Self.UserName
}

// Send posts text to chatID, split into several messages when it exceeds
// Telegram's length limit.
func (n *Notifier) Send(ctx context.Context, chatID int64, text string) error {
	for _, part := range splitMessage(text, maxMessageLength) {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg := tgbotapi.NewMessage(chatID, part)
		msg.DisableWebPagePreview = true
		if _, err := n.api.Send(msg); err != nil {
			return fmt.Errorf("failed to send telegram message to chat %d: %w", chatID, err)
		}
	}
	return nil
}

// splitMessage cuts text at line boundaries into chunks of at most limit
// characters. A single line longer than limit is cut hard.
func splitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var (
		parts   []string
		current strings.Builder
		size    int
	)
	flush := func() {
		if size > 0 {
			parts = append(parts, strings.TrimRight(current.String(), "\n"))
			current.Reset()
			size = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		runes := []rune(line)
		for len(runes) > limit {
			flush()
			parts = append(parts, string(runes[:limit]))
			runes = runes[limit:]
		}
		if size+len(runes) > limit {
			flush()
		}
		current.WriteString(string(runes))
		size += len(runes)
	}
	flush()
	return parts
}
