package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBotAPI struct {
	mu       sync.Mutex
	failures int
	sent     []string
	modes    []string
	chats    []string
}

func (f *fakeBotAPI) handler(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"barzin","username":"barzin_bot"}}`))
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		r.ParseForm()
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failures > 0 {
			f.failures--
			w.Write([]byte(`{"ok":false,"error_code":500,"description":"Internal Server Error"}`))
			return
		}
		f.sent = append(f.sent, r.Form.Get("text"))
		f.modes = append(f.modes, r.Form.Get("parse_mode"))
		f.chats = append(f.chats, r.Form.Get("chat_id"))
		w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, api *fakeBotAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(api.handler))
	t.Cleanup(srv.Close)

	c, err := NewClient(Options{
		BotToken:       "token",
		ChatID:         "42",
		MaxRetries:     3,
		RetryDelayBase: time.Millisecond,
		Endpoint:       srv.URL + "/bot%s/%s",
		HTTPClient:     srv.Client(),
	})
	require.NoError(t, err)
	return c
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Options{})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewClient(Options{BotToken: "token", ChatID: "not-a-number"})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotConfigured)
}

func TestNotifySendsHTML(t *testing.T) {
	api := &fakeBotAPI{}
	c := newTestClient(t, api)

	require.NoError(t, c.Notify(context.Background(), "<b>hi</b>"))
	require.Len(t, api.sent, 1)
	assert.Equal(t, "<b>hi</b>", api.sent[0])
	assert.Equal(t, "HTML", api.modes[0])
	assert.Equal(t, "42", api.chats[0])
}

func TestSendMessageRetries(t *testing.T) {
	api := &fakeBotAPI{failures: 2}
	c := newTestClient(t, api)

	require.NoError(t, c.SendMessage(context.Background(), "retry", 7))
	assert.Equal(t, []string{"7"}, api.chats)
}

func TestSendMessageGivesUp(t *testing.T) {
	api := &fakeBotAPI{failures: 5}
	c := newTestClient(t, api)

	err := c.SendMessage(context.Background(), "never", 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 retries")
}

func commandMessage(text string) *tgbotapi.Message {
	cmdLen := len(text)
	if i := strings.IndexByte(text, ' '); i >= 0 {
		cmdLen = i
	}
	return &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: 99},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
	}
}

func TestHandleCommand(t *testing.T) {
	api := &fakeBotAPI{}
	c := newTestClient(t, api)

	var gotArgs string
	c.Handle("/price", func(_ context.Context, args string) string {
		gotArgs = args
		return "BTC: 82,000"
	})
	c.Handle("silent", func(context.Context, string) string { return "" })

	c.handleCommand(context.Background(), commandMessage("/ping"))
	c.handleCommand(context.Background(), commandMessage("/price btc"))
	c.handleCommand(context.Background(), commandMessage("/silent"))
	c.handleCommand(context.Background(), commandMessage("/unknown"))

	assert.Equal(t, "btc", gotArgs)
	assert.Equal(t, []string{"Pong", "BTC: 82,000"}, api.sent)
	assert.Equal(t, []string{"99", "99"}, api.chats)
}

func TestNopSender(t *testing.T) {
	var s Sender = NopSender{}
	assert.ErrorIs(t, s.Notify(context.Background(), "x"), ErrNotConfigured)
	assert.ErrorIs(t, s.SendMessage(context.Background(), "x", 1), ErrNotConfigured)
}

func TestEscapeHTML(t *testing.T) {
	assert.Equal(t, "a &lt;b&gt; &amp; c", EscapeHTML("a <b> & c"))
}
