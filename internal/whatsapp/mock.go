package whatsapp

import (
	"context"
	"fmt"
	"sync"
)

// SentMessage is one message recorded by MockClient.
type SentMessage struct {
	ID       string
	To       string
	Body     string
	Image    []byte
	MimeType string
}

// MockClient implements Sender in memory (for tests), avoiding real WhatsApp connections.
type MockClient struct {
	mu      sync.Mutex
	Sent    []SentMessage
	Revoked []string
	Err     error
}

var _ Sender = (*MockClient)(nil)

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) record(msg SentMessage) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	msg.ID = fmt.Sprintf("MSG%d", len(m.Sent)+1)
	m.Sent = append(m.Sent, msg)
	return msg.ID, nil
}

func (m *MockClient) SendText(_ context.Context, to string, body string) (string, error) {
	return m.record(SentMessage{To: to, Body: body})
}

func (m *MockClient) SendImage(_ context.Context, to string, data []byte, mimeType, caption string) (string, error) {
	return m.record(SentMessage{To: to, Body: caption, Image: data, MimeType: mimeType})
}

func (m *MockClient) Revoke(_ context.Context, _ string, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Revoked = append(m.Revoked, messageID)
	return nil
}

// Messages returns a copy of the recorded messages.
func (m *MockClient) Messages() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.Sent...)
}
