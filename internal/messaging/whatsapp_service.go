package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/OrderPipe/internal/models"
	"github.com/BTreeMap/OrderPipe/internal/whatsapp"
	"go.mau.fi/whatsmeow/types/events"
)

// DefaultChannelTimeout bounds how long an inbound message waits for room in
// the events channel before it is dropped.
const DefaultChannelTimeout = 1 * time.Second

// WhatsAppService implements Service using the Whatsmeow-based whatsapp
// client. Choice lists are rendered as numbered text menus; session keys
// are the sender's phone number without the leading +.
type WhatsAppService struct {
	client   whatsapp.Sender
	waClient *whatsapp.Client // Access to underlying client for event handling
	menu     *TextMenu
	imageDir string
	events   chan models.Event

	mu       sync.Mutex
	stopped  bool
	handler  uint32
	hasHook  bool
	stopOnce sync.Once
}

var _ Service = (*WhatsAppService)(nil)

// NewWhatsAppService creates a new WhatsAppService wrapping the given Sender.
func NewWhatsAppService(client whatsapp.Sender, imageDir string) *WhatsAppService {
	service := &WhatsAppService{
		client:   client,
		menu:     NewTextMenu(),
		imageDir: imageDir,
		events:   make(chan models.Event, DefaultChannelBufferSize),
	}
	if waClient, ok := client.(*whatsapp.Client); ok {
		service.waClient = waClient
		slog.Debug("WhatsAppService created with full client for event handling")
	} else {
		slog.Debug("WhatsAppService created with interface client (likely mock)")
	}
	return service
}

// Start registers the whatsmeow event handler.
func (s *WhatsAppService) Start(ctx context.Context) error {
	slog.Debug("WhatsAppService Start invoked")
	if s.waClient == nil || s.waClient.GetClient() == nil {
		slog.Debug("WhatsAppService no full client available, skipping event handling (likely mock)")
		return nil
	}
	id := s.waClient.GetClient().AddEventHandler(func(evt interface{}) {
		if msg, ok := evt.(*events.Message); ok {
			s.handleIncomingMessage(ctx, msg)
		}
	})
	s.mu.Lock()
	s.handler, s.hasHook = id, true
	s.mu.Unlock()
	slog.Info("WhatsAppService event handler registered")
	return nil
}

// Stop unregisters the event handler and closes the events channel.
func (s *WhatsAppService) Stop() error {
	s.stopOnce.Do(func() {
		slog.Info("WhatsAppService Stop invoked")
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.hasHook && s.waClient != nil {
			s.waClient.GetClient().RemoveEventHandler(s.handler)
		}
		s.stopped = true
		close(s.events)
	})
	return nil
}

func (s *WhatsAppService) Events() <-chan models.Event {
	return s.events
}

// messageText extracts the text of a plain or extended text message.
func messageText(evt *events.Message) (string, bool) {
	if evt.Message == nil {
		return "", false
	}
	if evt.Message.Conversation != nil {
		return evt.Message.GetConversation(), true
	}
	if ext := evt.Message.GetExtendedTextMessage(); ext != nil && ext.Text != nil {
		return ext.GetText(), true
	}
	return "", false
}

func (s *WhatsAppService) handleIncomingMessage(ctx context.Context, evt *events.Message) {
	if evt.Info.IsFromMe || evt.Info.IsGroup {
		return
	}
	text, ok := messageText(evt)
	if !ok {
		slog.Debug("WhatsAppService ignoring non-text message", "from", evt.Info.Sender.String())
		return
	}
	from := models.Requester{ID: evt.Info.Sender.User, FirstName: evt.Info.PushName}
	s.Deliver(ctx, evt.Info.Sender.User, "wa:"+evt.Info.ID, text, from)
}

// Deliver parses one inbound text line for sessionKey and queues the event.
func (s *WhatsAppService) Deliver(ctx context.Context, sessionKey, messageID, text string, from models.Requester) {
	ev := s.menu.Parse(sessionKey, text, from)
	ev.MessageID = messageID

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	select {
	case s.events <- ev:
		slog.Debug("WhatsAppService incoming message forwarded", "sessionKey", sessionKey, "kind", ev.Kind)
	case <-ctx.Done():
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WhatsAppService events channel blocked, dropping message", "sessionKey", sessionKey, "timeout", DefaultChannelTimeout)
	}
}

// Render displays r in the chat of sessionKey.
func (s *WhatsAppService) Render(ctx context.Context, sessionKey string, r models.Render) (string, error) {
	switch r.Kind {
	case models.RenderChoiceList, models.RenderPlainText:
		_, err := s.client.SendText(ctx, sessionKey, s.menu.Format(sessionKey, r))
		return "", err
	case models.RenderImage:
		path := filepath.Join(s.imageDir, r.ImageRef)
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("image %s unavailable: %w", r.ImageRef, err)
		}
		mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
		if mimeType == "" {
			mimeType = "image/jpeg"
		}
		return s.client.SendImage(ctx, sessionKey, data, mimeType, r.Title)
	case models.RenderRetractImage:
		return "", s.client.Revoke(ctx, sessionKey, r.Handle)
	default:
		return "", fmt.Errorf("unsupported render kind %q", r.Kind)
	}
}

// SendText sends a plain message to a phone number.
func (s *WhatsAppService) SendText(ctx context.Context, to string, body string) error {
	_, err := s.client.SendText(ctx, strings.TrimPrefix(to, "+"), body)
	return err
}
