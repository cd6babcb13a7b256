// Package telegram provides a client for sending notifications via Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jpillora/backoff"

	"github.com/hamidbarzin/cryptobarzin/internal/logger"
	"github.com/hamidbarzin/cryptobarzin/internal/metrics"
)

// ErrNotConfigured is returned by senders without a bot token or chat id.
var ErrNotConfigured = errors.New("telegram is not configured")

// Sender delivers HTML messages.
type Sender interface {
	SendMessage(ctx context.Context, text string, chatID int64) error
	Notify(ctx context.Context, text string) error
}

// CommandHandler answers a bot command. args is the text after the command.
// The returned HTML is sent back to the chat; an empty reply sends nothing.
type CommandHandler func(ctx context.Context, args string) string

// Options configures a Client.
type Options struct {
	BotToken       string
	ChatID         string
	MaxRetries     int
	RetryDelayBase time.Duration
	// Endpoint overrides the Bot API URL format, e.g. for tests.
	Endpoint   string
	HTTPClient *http.Client
	Metrics    *metrics.Metrics
}

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	metrics        *metrics.Metrics

	mu       sync.RWMutex
	handlers map[string]CommandHandler
}

// NewClient creates a new Telegram client.
func NewClient(opts Options) (*Client, error) {
	if opts.BotToken == "" || opts.ChatID == "" {
		return nil, ErrNotConfigured
	}

	chatIDInt, err := strconv.ParseInt(opts.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 75 * time.Second}
	}

	bot, err := tgbotapi.NewBotAPIWithClient(opts.BotToken, endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryDelayBase := opts.RetryDelayBase
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
		metrics:        opts.Metrics,
		handlers:       make(map[string]CommandHandler),
	}, nil
}

// Handle registers h for /command. Registering twice replaces the handler.
func (c *Client) Handle(command string, h CommandHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[strings.TrimPrefix(command, "/")] = h
}

// ListenForCommands starts a goroutine that polls for Telegram updates and handles bot commands.
// It returns immediately; the goroutine stops when ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(ctx, update.Message)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	command := msg.Command()
	if command == "ping" {
		c.reply(ctx, msg.Chat.ID, "Pong")
		return
	}

	c.mu.RLock()
	h, ok := c.handlers[command]
	c.mu.RUnlock()
	if !ok {
		return
	}

	if text := h(ctx, msg.CommandArguments()); text != "" {
		c.reply(ctx, msg.Chat.ID, text)
	}
}

func (c *Client) reply(ctx context.Context, chatID int64, text string) {
	if err := c.SendMessage(ctx, text, chatID); err != nil {
		logger.Warn("Failed to reply to command: %v", err)
	}
}

// SendMessage sends an HTML message with exponential-backoff retry.
func (c *Client) SendMessage(ctx context.Context, text string, chatID int64) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	b := &backoff.Backoff{Min: c.retryDelayBase, Max: 10 * c.retryDelayBase, Factor: 2}
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				c.metrics.TelegramMessage(false)
				return ctx.Err()
			case <-time.After(b.Duration()):
			}
		}
		if _, err := c.bot.Send(msg); err == nil {
			c.metrics.TelegramMessage(true)
			return nil
		} else {
			lastErr = err
			logger.Debug("Telegram send attempt %d/%d failed: %v", i+1, c.maxRetries, err)
		}
	}
	c.metrics.TelegramMessage(false)
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// Notify sends text to the configured chat.
func (c *Client) Notify(ctx context.Context, text string) error {
	return c.SendMessage(ctx, text, c.chatID)
}

// ChatID returns the configured chat.
func (c *Client) ChatID() int64 {
	return c.chatID
}

// NopSender stands in when Telegram is disabled. Every send fails with
// ErrNotConfigured.
type NopSender struct{}

func (NopSender) SendMessage(context.Context, string, int64) error { return ErrNotConfigured }
func (NopSender) Notify(context.Context, string) error             { return ErrNotConfigured }

// EscapeHTML escapes text for Telegram's HTML parse mode.
func EscapeHTML(text string) string {
	return html.EscapeString(text)
}
