package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/evcraddock/house-deals/internal/money"
)

// sender is the part of *tgbotapi.BotAPI the notifier uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts deal events to a Telegram chat.
type TelegramNotifier struct {
	bot     sender
	chatID  int64
	enabled bool
}

// NewTelegramNotifier creates a Telegram notifier. Without a bot token or
// chat ID it returns a disabled notifier that drops every event.
func NewTelegramNotifier(botToken string, chatID int64) (*TelegramNotifier, error) {
	if botToken == "" || chatID == 0 {
		return &TelegramNotifier{enabled: false}, nil
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}

	return &TelegramNotifier{bot: bot, chatID: chatID, enabled: true}, nil
}

// Enabled reports whether events are delivered.
func (n *TelegramNotifier) Enabled() bool {
	return n.enabled
}

// Notify implements Notifier.
func (n *TelegramNotifier) Notify(ctx context.Context, e Event) error {
	if !n.enabled {
		return nil
	}

	msg := tgbotapi.NewMessage(n.chatID, formatEvent(e))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("sending telegram message for deal %s: %w", e.DealID, err)
	}
	return nil
}

var eventTitles = map[EventType]string{
	OfferSubmitted: "New offer",
	OfferCountered: "Counter offer",
	OfferAccepted:  "Offer accepted",
	OfferRejected:  "Offer rejected",
	OfferWithdrawn: "Offer withdrawn",
	DealCancelled:  "Deal cancelled",
	DealExpired:    "Deal expired",
}

func eventTitle(t EventType) string {
	if title, ok := eventTitles[t]; ok {
		return title
	}
	return string(t)
}

func formatEvent(e Event) string {
	title := eventTitle(e.Type)

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n\n", html.EscapeString(title))
	fmt.Fprintf(&b, "Deal: <code>%s</code>\n", html.EscapeString(e.DealID))
	if e.OfferID != "" {
		fmt.Fprintf(&b, "Offer: <code>%s</code>\n", html.EscapeString(e.OfferID))
	}
	if e.Amount > 0 {
		fmt.Fprintf(&b, "Amount: %s\n", html.EscapeString(money.Format(e.Amount, e.Currency)))
	}
	if e.ActorID != "" {
		fmt.Fprintf(&b, "By: %s\n", html.EscapeString(e.ActorID))
	}
	return b.String()
}
