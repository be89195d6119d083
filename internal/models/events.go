package models

import (
	"errors"
	"strconv"
	"strings"
)

// EventKind identifies the variant of an inbound Event.
type EventKind string

const (
	// EventEntryCommand starts (or restarts) the order conversation.
	EventEntryCommand EventKind = "entry"
	// EventChoiceSelected carries the opaque token of a pressed choice.
	EventChoiceSelected EventKind = "choice"
	// EventFreeText carries one line of user text.
	EventFreeText EventKind = "text"
	// EventCancelCommand aborts the conversation from any stage.
	EventCancelCommand EventKind = "cancel"
)

// ErrEmptySessionKey is returned when an event arrives without a session key.
var ErrEmptySessionKey = errors.New("session key cannot be empty")

// Requester identifies the chat user behind an event.
type Requester struct {
	ID        string `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Label returns the identifying label of the requester: @username first,
// then the display name, then the numeric identifier.
func (r Requester) Label() string {
	if r.Username != "" {
		return "@" + r.Username
	}
	if name := strings.TrimSpace(r.FirstName + " " + r.LastName); name != "" {
		return name
	}
	return r.ID
}

// Event is one inbound occurrence for a session, built by the transport.
type Event struct {
	SessionKey string    `json:"session_key"`
	Kind       EventKind `json:"kind"`
	Token      string    `json:"token,omitempty"`
	Text       string    `json:"text,omitempty"`
	Requester  Requester `json:"requester"`
	// MessageID is the transport's unique id for the inbound update, used for deduplication.
	MessageID string `json:"message_id,omitempty"`
}

// Validate checks that the event is structurally usable by the router.
func (e Event) Validate() error {
	if e.SessionKey == "" {
		return ErrEmptySessionKey
	}
	switch e.Kind {
	case EventEntryCommand, EventCancelCommand, EventFreeText:
		return nil
	case EventChoiceSelected:
		if e.Token == "" {
			return errors.New("choice event requires a token")
		}
		return nil
	default:
		return errors.New("unknown event kind " + strconv.Quote(string(e.Kind)))
	}
}

// EntryCommand builds an entry event.
func EntryCommand(key string, from Requester) Event {
	return Event{SessionKey: key, Kind: EventEntryCommand, Requester: from}
}

// CancelCommand builds a cancel event.
func CancelCommand(key string, from Requester) Event {
	return Event{SessionKey: key, Kind: EventCancelCommand, Requester: from}
}

// ChoiceSelected builds a choice event for the given token.
func ChoiceSelected(key, token string, from Requester) Event {
	return Event{SessionKey: key, Kind: EventChoiceSelected, Token: token, Requester: from}
}

// FreeText builds a free text event.
func FreeText(key, text string, from Requester) Event {
	return Event{SessionKey: key, Kind: EventFreeText, Text: text, Requester: from}
}
