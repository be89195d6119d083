package telegram

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// SentMessage is one message recorded by MockClient.
type SentMessage struct {
	ChatID    int64
	MessageID int
	Text      string
	Keyboard  [][]Button
	Photo     string
}

// Edit is one edit recorded by MockClient.
type Edit struct {
	ChatID    int64
	MessageID int
	Text      string
	Keyboard  [][]Button
}

// MockClient implements Bot in memory (for tests). Message IDs start at 1.
type MockClient struct {
	mu        sync.Mutex
	nextID    int
	Sent      []SentMessage
	Edits     []Edit
	Deleted   []int
	Answered  []string
	EditErr   error
	DeleteErr error
	updates   chan tgbotapi.Update
	stopOnce  sync.Once
}

var _ Bot = (*MockClient)(nil)

// NewMockClient creates a mock with a buffered update channel.
func NewMockClient() *MockClient {
	return &MockClient{updates: make(chan tgbotapi.Update, 16)}
}

// Push delivers an update to the consumer of Updates.
func (m *MockClient) Push(u tgbotapi.Update) {
	m.updates <- u
}

func (m *MockClient) SendText(_ context.Context, chatID int64, text string, keyboard [][]Button) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.Sent = append(m.Sent, SentMessage{ChatID: chatID, MessageID: m.nextID, Text: text, Keyboard: keyboard})
	return m.nextID, nil
}

func (m *MockClient) EditText(_ context.Context, chatID int64, messageID int, text string, keyboard [][]Button) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EditErr != nil {
		return m.EditErr
	}
	m.Edits = append(m.Edits, Edit{ChatID: chatID, MessageID: messageID, Text: text, Keyboard: keyboard})
	return nil
}

func (m *MockClient) SendPhoto(_ context.Context, chatID int64, path, caption string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.Sent = append(m.Sent, SentMessage{ChatID: chatID, MessageID: m.nextID, Text: caption, Photo: path})
	return m.nextID, nil
}

func (m *MockClient) Delete(_ context.Context, _ int64, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.Deleted = append(m.Deleted, messageID)
	return nil
}

func (m *MockClient) AnswerCallback(_ context.Context, callbackID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Answered = append(m.Answered, callbackID)
	return nil
}

func (m *MockClient) Updates() tgbotapi.UpdatesChannel {
	return m.updates
}

// Stop closes the update channel.
func (m *MockClient) Stop() {
	m.stopOnce.Do(func() { close(m.updates) })
}

// Snapshot returns copies of the recorded calls.
func (m *MockClient) Snapshot() (sent []SentMessage, edits []Edit, deleted []int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.Sent...), append([]Edit(nil), m.Edits...), append([]int(nil), m.Deleted...)
}

// Answers returns the callback IDs answered so far.
func (m *MockClient) Answers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Answered...)
}
