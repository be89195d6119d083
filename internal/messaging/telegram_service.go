package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/BTreeMap/OrderPipe/internal/models"
	"github.com/BTreeMap/OrderPipe/internal/telegram"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramService implements Service over the Telegram Bot API. Session keys
// are chat IDs in decimal.
type TelegramService struct {
	bot      telegram.Bot
	imageDir string
	events   chan models.Event

	mu sync.Mutex
	// menus holds the message to edit for in-place renders, per chat.
	menus map[int64]int

	stopOnce sync.Once
	done     chan struct{}
}

var _ Service = (*TelegramService)(nil)

// NewTelegramService creates a service; image references are resolved
// relative to imageDir.
func NewTelegramService(bot telegram.Bot, imageDir string) *TelegramService {
	return &TelegramService{
		bot:      bot,
		imageDir: imageDir,
		events:   make(chan models.Event, DefaultChannelBufferSize),
		menus:    make(map[int64]int),
		done:     make(chan struct{}),
	}
}

// Start begins long polling. The Events channel is closed when polling ends.
func (s *TelegramService) Start(ctx context.Context) error {
	slog.Debug("TelegramService Start invoked")
	updates := s.bot.Updates()
	go s.pump(ctx, updates)
	slog.Info("TelegramService polling started")
	return nil
}

// Stop ends polling.
func (s *TelegramService) Stop() error {
	s.stopOnce.Do(func() {
		slog.Info("TelegramService Stop invoked")
		close(s.done)
		s.bot.Stop()
	})
	return nil
}

func (s *TelegramService) Events() <-chan models.Event {
	return s.events
}

func (s *TelegramService) pump(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	defer close(s.events)
	for {
		select {
		case upd, ok := <-updates:
			if !ok {
				slog.Debug("TelegramService updates channel closed")
				return
			}
			ev, ok := s.translate(ctx, upd)
			if !ok {
				continue
			}
			select {
			case s.events <- ev:
			case <-ctx.Done():
				return
			case <-s.done:
				return
			}
		case <-ctx.Done():
			slog.Debug("TelegramService stopping due to context cancellation")
			return
		case <-s.done:
			return
		}
	}
}

func requester(u *tgbotapi.User) models.Requester {
	if u == nil {
		return models.Requester{}
	}
	return models.Requester{
		ID:        strconv.FormatInt(u.ID, 10),
		Username:  u.UserName,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// translate converts an update into an event. Updates that carry nothing
// the conversation understands yield ok=false.
func (s *TelegramService) translate(ctx context.Context, upd tgbotapi.Update) (models.Event, bool) {
	msgID := "tg:" + strconv.Itoa(upd.UpdateID)

	if cq := upd.CallbackQuery; cq != nil {
		if err := s.bot.AnswerCallback(ctx, cq.ID); err != nil {
			slog.Warn("TelegramService: answering callback failed", "error", err)
		}
		if cq.Message == nil || cq.Message.Chat == nil || cq.Data == "" {
			return models.Event{}, false
		}
		chatID := cq.Message.Chat.ID
		s.mu.Lock()
		s.menus[chatID] = cq.Message.MessageID
		s.mu.Unlock()
		ev := models.ChoiceSelected(strconv.FormatInt(chatID, 10), cq.Data, requester(cq.From))
		ev.MessageID = msgID
		return ev, true
	}

	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return models.Event{}, false
	}
	key := strconv.FormatInt(msg.Chat.ID, 10)
	from := requester(msg.From)

	var ev models.Event
	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			ev = models.EntryCommand(key, from)
		case "cancel":
			ev = models.CancelCommand(key, from)
		case "info":
			ev = models.ChoiceSelected(key, models.TokenAboutShop, from)
		case "sales":
			ev = models.ChoiceSelected(key, models.TokenShowSales, from)
		default:
			slog.Debug("TelegramService: unknown command ignored", "command", msg.Command(), "chat_id", msg.Chat.ID)
			return models.Event{}, false
		}
	} else {
		if msg.Text == "" {
			return models.Event{}, false
		}
		ev = models.FreeText(key, msg.Text, from)
	}
	ev.MessageID = msgID
	return ev, true
}

func keyboard(r models.Render) [][]telegram.Button {
	rows := make([][]telegram.Button, 0, len(r.Choices)+1)
	for _, c := range r.Choices {
		text := c.Label
		if c.Selected {
			text = SelectedMark + text
		}
		rows = append(rows, []telegram.Button{{Text: text, Data: c.Token}})
	}
	if r.Done != nil {
		rows = append(rows, []telegram.Button{{Text: r.Done.Label, Data: r.Done.Token}})
	}
	return rows
}

func parseChatID(key string) (int64, error) {
	id, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram chat id %q: %w", key, err)
	}
	return id, nil
}

// Render displays r in the chat identified by sessionKey.
func (s *TelegramService) Render(ctx context.Context, sessionKey string, r models.Render) (string, error) {
	chatID, err := parseChatID(sessionKey)
	if err != nil {
		return "", err
	}

	switch r.Kind {
	case models.RenderChoiceList, models.RenderPlainText:
		var kb [][]telegram.Button
		if r.Kind == models.RenderChoiceList {
			kb = keyboard(r)
		}
		if r.Replace {
			s.mu.Lock()
			target, ok := s.menus[chatID]
			s.mu.Unlock()
			if ok {
				err := s.bot.EditText(ctx, chatID, target, r.Title, kb)
				if err == nil {
					if kb == nil {
						s.forgetMenu(chatID, target)
					}
					return "", nil
				}
				slog.Warn("TelegramService.Render: edit failed, sending new message", "chat_id", chatID, "message_id", target, "error", err)
			}
		}
		id, err := s.bot.SendText(ctx, chatID, r.Title, kb)
		if err != nil {
			return "", err
		}
		if kb != nil {
			s.mu.Lock()
			s.menus[chatID] = id
			s.mu.Unlock()
		}
		return "", nil

	case models.RenderImage:
		path := filepath.Join(s.imageDir, r.ImageRef)
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("image %s unavailable: %w", r.ImageRef, err)
		}
		id, err := s.bot.SendPhoto(ctx, chatID, path, r.Title)
		if err != nil {
			return "", err
		}
		return strconv.Itoa(id), nil

	case models.RenderRetractImage:
		id, err := strconv.Atoi(r.Handle)
		if err != nil {
			return "", fmt.Errorf("invalid image handle %q: %w", r.Handle, err)
		}
		return "", s.bot.Delete(ctx, chatID, id)

	default:
		return "", fmt.Errorf("unsupported render kind %q", r.Kind)
	}
}

func (s *TelegramService) forgetMenu(chatID int64, messageID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.menus[chatID] == messageID {
		delete(s.menus, chatID)
	}
}

// SendText sends a plain message to a chat ID.
func (s *TelegramService) SendText(ctx context.Context, to string, body string) error {
	chatID, err := parseChatID(to)
	if err != nil {
		return err
	}
	_, err = s.bot.SendText(ctx, chatID, body, nil)
	return err
}
