package telegram

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bryanwahyu/profixion/internal/domain/contact"
)

// DefaultTimeout bounds every Bot API request.
const DefaultTimeout = 10 * time.Second

type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewNotifier(token string, chatID int64) (*Notifier, error) {
	return NewNotifierWithEndpoint(token, tgbotapi.APIEndpoint, chatID, DefaultTimeout)
}

// NewNotifierWithEndpoint targets a non-default Bot API server. endpoint
// uses the SDK format, e.g. "https://api.telegram.org/bot%s/%s".
func NewNotifierWithEndpoint(token, endpoint string, chatID int64, timeout time.Duration) (*Notifier, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	return &Notifier{bot: bot, chatID: chatID}, nil
}

func (n *Notifier) Notify(ctx context.Context, m contact.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, Format(m))
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := n.bot.Send(msg)
	return err
}

// Format renders m as Telegram HTML.
func Format(m contact.Message) string {
	return fmt.Sprintf(
		"📬 <b>New contact message</b>\n"+
			"👤 %s\n"+
			"✉️ <a href=\"mailto:%s\">%s</a>\n"+
			"📝 <b>%s</b>\n\n%s",
		html.EscapeString(m.Name),
		html.EscapeString(m.Email), html.EscapeString(m.Email),
		html.EscapeString(m.Subject),
		html.EscapeString(m.Body),
	)
}
