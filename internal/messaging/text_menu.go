package messaging

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/BTreeMap/OrderPipe/internal/models"
)

// SelectedMark prefixes selected options.
const SelectedMark = "✅ "

// TextMenu renders choice lists as numbered text for transports without
// buttons and maps numeric replies back to choice tokens. The done action
// is always number 0.
type TextMenu struct {
	mu    sync.Mutex
	menus map[string]menu
}

type menu struct {
	tokens []string // tokens[i-1] is choice i
	done   string
}

// NewTextMenu creates an empty codec.
func NewTextMenu() *TextMenu {
	return &TextMenu{menus: make(map[string]menu)}
}

// Format renders r as text and remembers its numbering for sessionKey.
// A plain text that replaces the menu in place ends the menu.
func (m *TextMenu) Format(sessionKey string, r models.Render) string {
	switch r.Kind {
	case models.RenderChoiceList:
		var b strings.Builder
		b.WriteString(r.Title)
		b.WriteString("\n")
		mn := menu{tokens: make([]string, len(r.Choices))}
		for i, c := range r.Choices {
			mark := ""
			if c.Selected {
				mark = SelectedMark
			}
			fmt.Fprintf(&b, "\n%d. %s%s", i+1, mark, c.Label)
			mn.tokens[i] = c.Token
		}
		if r.Done != nil {
			fmt.Fprintf(&b, "\n0. %s", r.Done.Label)
			mn.done = r.Done.Token
		}
		b.WriteString("\n\nReply with a number.")
		m.mu.Lock()
		m.menus[sessionKey] = mn
		m.mu.Unlock()
		return b.String()
	case models.RenderPlainText:
		if r.Replace {
			m.Clear(sessionKey)
		}
		return r.Title
	default:
		return r.Title
	}
}

// Clear forgets the menu of sessionKey.
func (m *TextMenu) Clear(sessionKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.menus, sessionKey)
}

// Parse turns one line of user text into an event. Commands map to their
// events, numbers of the current menu to choice tokens, anything else is
// free text.
func (m *TextMenu) Parse(sessionKey, text string, from models.Requester) models.Event {
	trimmed := strings.TrimSpace(text)
	switch strings.ToLower(trimmed) {
	case "/start", "start":
		m.Clear(sessionKey)
		return models.EntryCommand(sessionKey, from)
	case "/cancel", "cancel":
		m.Clear(sessionKey)
		return models.CancelCommand(sessionKey, from)
	case "/info":
		return models.ChoiceSelected(sessionKey, models.TokenAboutShop, from)
	case "/sales":
		return models.ChoiceSelected(sessionKey, models.TokenShowSales, from)
	}

	if n, err := strconv.Atoi(trimmed); err == nil {
		m.mu.Lock()
		mn, ok := m.menus[sessionKey]
		m.mu.Unlock()
		if ok {
			switch {
			case n == 0 && mn.done != "":
				return models.ChoiceSelected(sessionKey, mn.done, from)
			case n >= 1 && n <= len(mn.tokens):
				return models.ChoiceSelected(sessionKey, mn.tokens[n-1], from)
			}
		}
	}
	return models.FreeText(sessionKey, text, from)
}
