// Package messaging connects chat transports to the order conversation.
//
// A Service turns transport updates into models.Event values and renders
// models.Render instructions back to the chat. The EventRouter feeds events
// to the state machine, one at a time per session.
package messaging

import (
	"context"

	"github.com/BTreeMap/OrderPipe/internal/models"
)

// Constants for service configuration
const (
	// DefaultChannelBufferSize defines the default buffer size for event channels
	DefaultChannelBufferSize = 100
)

// Service defines a pluggable chat transport.
type Service interface {
	// Start begins background processing (e.g., polling for updates).
	Start(ctx context.Context) error

	// Stop stops background processing; the Events channel is closed afterwards.
	Stop() error

	// Events returns the channel of inbound conversation events.
	Events() <-chan models.Event

	// Render displays an instruction in the chat of sessionKey. For images the
	// returned handle identifies the message for later retraction.
	Render(ctx context.Context, sessionKey string, r models.Render) (string, error)

	// SendText sends a plain message to an arbitrary destination.
	SendText(ctx context.Context, to string, body string) error
}
