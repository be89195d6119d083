// Package telegram wraps the Telegram Bot API client for OrderPipe.
//
// It provides sending, editing and deleting of chat messages with inline
// keyboards, and long-polling for updates.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// DefaultPollTimeout is the long-polling timeout in seconds.
const DefaultPollTimeout = 60

// ErrMissingToken is returned by NewClient without a bot token.
var ErrMissingToken = errors.New("telegram bot token not set")

// Button is one inline keyboard button.
type Button struct {
	Text string
	Data string
}

// Bot is the subset of bot operations used by the messaging layer.
type Bot interface {
	SendText(ctx context.Context, chatID int64, text string, keyboard [][]Button) (int, error)
	EditText(ctx context.Context, chatID int64, messageID int, text string, keyboard [][]Button) error
	SendPhoto(ctx context.Context, chatID int64, path, caption string) (int, error)
	Delete(ctx context.Context, chatID int64, messageID int) error
	AnswerCallback(ctx context.Context, callbackID string) error
	Updates() tgbotapi.UpdatesChannel
	Stop()
}

// Opts holds configuration options for the Telegram client.
type Opts struct {
	Token       string
	Debug       bool
	PollTimeout int
}

// Option defines a configuration option for the Telegram client.
type Option func(*Opts)

// WithToken sets the bot token.
func WithToken(token string) Option {
	return func(o *Opts) {
		o.Token = token
	}
}

// WithDebug enables request logging in the underlying library.
func WithDebug(debug bool) Option {
	return func(o *Opts) {
		o.Debug = debug
	}
}

// WithPollTimeout sets the long-polling timeout in seconds.
func WithPollTimeout(seconds int) Option {
	return func(o *Opts) {
		o.PollTimeout = seconds
	}
}

// Client wraps tgbotapi.BotAPI.
type Client struct {
	api         *tgbotapi.BotAPI
	pollTimeout int
}

var _ Bot = (*Client)(nil)

// NewClient authenticates against the Bot API with the configured token.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{PollTimeout: DefaultPollTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("Telegram NewClient options set", "Token_set", cfg.Token != "", "Debug", cfg.Debug, "PollTimeout", cfg.PollTimeout)
	if cfg.Token == "" {
		return nil, ErrMissingToken
	}

	if err := tgbotapi.SetLogger(botLogger{}); err != nil {
		slog.Warn("Telegram NewClient: failed to install library logger", "error", err)
	}

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		slog.Error("Telegram NewClient: authorization failed", "error", err)
		return nil, fmt.Errorf("failed to authorize telegram bot: %w", err)
	}
	api.Debug = cfg.Debug
	slog.Info("Telegram client authorized", "username", api.Self.UserName)
	return &Client{api: api, pollTimeout: cfg.PollTimeout}, nil
}

// Username returns the bot's username.
func (c *Client) Username() string {
	return c.api.Self.UserName
}

func (c *Client) SendText(_ context.Context, chatID int64, text string, keyboard [][]Button) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	if len(keyboard) > 0 {
		msg.ReplyMarkup = markup(keyboard)
	}
	sent, err := c.api.Send(msg)
	if err != nil {
		slog.Error("Telegram SendText failed", "chat_id", chatID, "error", err)
		return 0, fmt.Errorf("failed to send message to chat %d: %w", chatID, err)
	}
	slog.Debug("Telegram SendText succeeded", "chat_id", chatID, "message_id", sent.MessageID)
	return sent.MessageID, nil
}

// EditText replaces the text and keyboard of a message. An empty keyboard
// removes the buttons. Edits that change nothing are not errors.
func (c *Client) EditText(_ context.Context, chatID int64, messageID int, text string, keyboard [][]Button) error {
	var edit tgbotapi.EditMessageTextConfig
	if len(keyboard) > 0 {
		edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, markup(keyboard))
	} else {
		edit = tgbotapi.NewEditMessageText(chatID, messageID, text)
	}
	if _, err := c.api.Request(edit); err != nil {
		if IsNotModified(err) {
			slog.Debug("Telegram EditText: message not modified", "chat_id", chatID, "message_id", messageID)
			return nil
		}
		slog.Error("Telegram EditText failed", "chat_id", chatID, "message_id", messageID, "error", err)
		return fmt.Errorf("failed to edit message %d in chat %d: %w", messageID, chatID, err)
	}
	slog.Debug("Telegram EditText succeeded", "chat_id", chatID, "message_id", messageID)
	return nil
}

func (c *Client) SendPhoto(_ context.Context, chatID int64, path, caption string) (int, error) {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(path))
	photo.Caption = caption
	sent, err := c.api.Send(photo)
	if err != nil {
		slog.Error("Telegram SendPhoto failed", "chat_id", chatID, "path", path, "error", err)
		return 0, fmt.Errorf("failed to send photo to chat %d: %w", chatID, err)
	}
	slog.Debug("Telegram SendPhoto succeeded", "chat_id", chatID, "message_id", sent.MessageID)
	return sent.MessageID, nil
}

func (c *Client) Delete(_ context.Context, chatID int64, messageID int) error {
	if _, err := c.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("failed to delete message %d in chat %d: %w", messageID, chatID, err)
	}
	slog.Debug("Telegram Delete succeeded", "chat_id", chatID, "message_id", messageID)
	return nil
}

func (c *Client) AnswerCallback(_ context.Context, callbackID string) error {
	if _, err := c.api.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		return fmt.Errorf("failed to answer callback %s: %w", callbackID, err)
	}
	return nil
}

// Updates starts long polling and returns the update channel.
func (c *Client) Updates() tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = c.pollTimeout
	return c.api.GetUpdatesChan(u)
}

// Stop ends long polling.
func (c *Client) Stop() {
	c.api.StopReceivingUpdates()
}

// IsNotModified reports whether err is the Bot API's "message is not
// modified" rejection.
func IsNotModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}

func markup(keyboard [][]Button) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(keyboard))
	for _, row := range keyboard {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// botLogger routes library log lines to slog.
type botLogger struct{}

func (botLogger) Println(v ...interface{}) {
	slog.Debug("telegram-bot-api", "msg", strings.TrimSpace(fmt.Sprintln(v...)))
}

func (botLogger) Printf(format string, v ...interface{}) {
	slog.Debug("telegram-bot-api", "msg", fmt.Sprintf(format, v...))
}
