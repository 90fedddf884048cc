package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evcraddock/house-deals/internal/money"
)

type fakeSender struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

type recorder struct {
	events []Event
	err    error
}

func (r *recorder) Notify(_ context.Context, e Event) error {
	r.events = append(r.events, e)
	return r.err
}

var accepted = Event{
	Type:     OfferAccepted,
	DealID:   "deal-1",
	OfferID:  "offer-2",
	ActorID:  "buyer",
	Amount:   310000000,
	Currency: money.COP,
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := LogNotifier{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	require.NoError(t, n.Notify(context.Background(), accepted))
	out := buf.String()
	assert.Contains(t, out, "type=offer_accepted")
	assert.Contains(t, out, "deal_id=deal-1")
	assert.Contains(t, out, "amount=310000000")
}

func TestMulti(t *testing.T) {
	ok := &recorder{}
	failing := &recorder{err: errors.New("smtp down")}

	err := Multi{ok, nil, failing}.Notify(context.Background(), accepted)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
	assert.Len(t, ok.events, 1)
	assert.Len(t, failing.events, 1)

	assert.NoError(t, Multi{ok}.Notify(context.Background(), accepted))
}

func TestTelegramDisabled(t *testing.T) {
	n, err := NewTelegramNotifier("", 0)
	require.NoError(t, err)
	assert.False(t, n.Enabled())
	assert.NoError(t, n.Notify(context.Background(), accepted))
}

func TestTelegramSends(t *testing.T) {
	fake := &fakeSender{}
	n := &TelegramNotifier{bot: fake, chatID: 42, enabled: true}

	require.NoError(t, n.Notify(context.Background(), accepted))
	require.Len(t, fake.sent, 1)

	msg, ok := fake.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
	assert.True(t, strings.HasPrefix(msg.Text, "<b>Offer accepted</b>"))
	assert.Contains(t, msg.Text, "COP 310,000,000")
}

func TestTelegramSendError(t *testing.T) {
	n := &TelegramNotifier{bot: &fakeSender{err: errors.New("rate limited")}, chatID: 42, enabled: true}
	err := n.Notify(context.Background(), accepted)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deal-1")
}

func TestFormatEventEscapes(t *testing.T) {
	text := formatEvent(Event{Type: DealCancelled, DealID: "<d>", ActorID: `a&b "o'c"`})
	assert.Contains(t, text, "&lt;d&gt;")
	assert.Contains(t, text, "a&amp;b &#34;o&#39;c&#34;")
	assert.NotContains(t, text, "Amount")
}
