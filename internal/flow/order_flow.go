// Package flow implements the order conversation state machine.
//
// Every inbound event is looked up in a route table keyed by the session's
// stage and the event pattern. Events without a route are ignored, so a
// handler only ever sees events its stage accepts.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BTreeMap/OrderPipe/internal/catalog"
	"github.com/BTreeMap/OrderPipe/internal/contact"
	"github.com/BTreeMap/OrderPipe/internal/models"
	"github.com/BTreeMap/OrderPipe/internal/order"
	"github.com/BTreeMap/OrderPipe/internal/selection"
)

// Display renders instructions to the user of a session. For RenderImage the
// returned handle identifies the shown artifact for a later RenderRetractImage.
type Display interface {
	Render(ctx context.Context, sessionKey string, r models.Render) (string, error)
}

// OrderDispatcher forwards a completed order to its sinks.
type OrderDispatcher interface {
	Dispatch(ctx context.Context, rec models.OrderRecord) order.Report
}

// HandlerFunc handles one routed event for a session.
type HandlerFunc func(ctx context.Context, s *Session, ev models.Event) error

// Opts holds OrderFlow configuration.
type Opts struct {
	Texts  *Texts
	Parser *contact.Parser
	Now    func() time.Time
}

// Option configures an OrderFlow.
type Option func(*Opts)

// WithTexts replaces the default user-facing texts.
func WithTexts(t Texts) Option {
	return func(o *Opts) {
		o.Texts = &t
	}
}

// WithContactParser sets the contact parser (default: lenient policy).
func WithContactParser(p *contact.Parser) Option {
	return func(o *Opts) {
		o.Parser = p
	}
}

// WithClock sets the time source used for order timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Opts) {
		o.Now = now
	}
}

// OrderFlow is the conversation state machine shared by all sessions.
type OrderFlow struct {
	catalog    *catalog.Catalog
	display    Display
	dispatcher OrderDispatcher
	sessions   *SessionManager
	parser     *contact.Parser
	texts      Texts
	now        func() time.Time
	memoryList selection.List
	colorList  selection.List
	routes     []route
}

// NewOrderFlow creates the state machine. dispatcher may be nil, in which
// case completed orders are only acknowledged.
func NewOrderFlow(cat *catalog.Catalog, display Display, dispatcher OrderDispatcher, opts ...Option) *OrderFlow {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	texts := DefaultTexts()
	if cfg.Texts != nil {
		texts = *cfg.Texts
	}
	parser := cfg.Parser
	if parser == nil {
		parser = contact.NewParser(contact.DefaultPolicy)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	f := &OrderFlow{
		catalog:    cat,
		display:    display,
		dispatcher: dispatcher,
		sessions:   NewSessionManager(),
		parser:     parser,
		texts:      texts,
		now:        now,
		memoryList: selection.List{Prefix: models.PrefixMemory, DoneLabel: texts.MemoryDone},
		colorList:  selection.List{Prefix: models.PrefixColor, DoneLabel: texts.ColorDone},
	}
	f.routes = f.buildRoutes()
	slog.Debug("OrderFlow created", "models", cat.Len(), "contactPolicy", parser.Policy(), "routes", len(f.routes))
	return f
}

// Sessions exposes the session manager for status reporting.
func (f *OrderFlow) Sessions() *SessionManager {
	return f.sessions
}

// Handle processes one event. It reports whether the event was routed;
// unrouted events leave the session untouched. Callers must not handle two
// events of the same session concurrently.
func (f *OrderFlow) Handle(ctx context.Context, ev models.Event) (bool, error) {
	if err := ev.Validate(); err != nil {
		return false, err
	}
	sess := f.sessions.checkout(ev.SessionKey)
	h, ok := f.Route(sess.Stage, ev)
	if !ok {
		slog.Debug("OrderFlow.Handle: no route, event ignored", "sessionKey", ev.SessionKey, "stage", sess.Stage, "kind", ev.Kind, "token", ev.Token)
		return false, nil
	}
	from := sess.Stage
	err := h(ctx, sess, ev)
	f.sessions.commit(sess)
	if err != nil {
		slog.Error("OrderFlow.Handle: handler failed", "sessionKey", ev.SessionKey, "stage", from, "kind", ev.Kind, "token", ev.Token, "error", err)
		return true, err
	}
	slog.Debug("OrderFlow.Handle: event handled", "sessionKey", ev.SessionKey, "from", from, "to", sess.Stage, "kind", ev.Kind)
	return true, nil
}

func (f *OrderFlow) show(ctx context.Context, key string, r models.Render) string {
	handle, err := f.display.Render(ctx, key, r)
	if err != nil {
		slog.Error("OrderFlow.show: render failed", "sessionKey", key, "kind", r.Kind, "error", err)
		return ""
	}
	return handle
}

func (f *OrderFlow) retractImage(ctx context.Context, s *Session) {
	if s.ImageHandle == "" {
		return
	}
	if _, err := f.display.Render(ctx, s.Key, models.RetractImage(s.ImageHandle)); err != nil {
		slog.Warn("OrderFlow.retractImage: retraction failed, ignoring", "sessionKey", s.Key, "handle", s.ImageHandle, "error", err)
	}
	s.ImageHandle = ""
}

func (f *OrderFlow) modelList(title string) models.Render {
	names := f.catalog.Models()
	choices := make([]models.Choice, len(names))
	for i, name := range names {
		choices[i] = models.Choice{Label: name, Token: models.PrefixModel + strconv.Itoa(i)}
	}
	return models.ShowChoiceList(title, choices, nil)
}

func (f *OrderFlow) cancel(ctx context.Context, s *Session, _ models.Event) error {
	f.retractImage(ctx, s)
	s.Reset()
	f.show(ctx, s.Key, models.ShowPlainText(f.texts.Cancelled))
	return nil
}

func (f *OrderFlow) enter(ctx context.Context, s *Session, _ models.Event) error {
	f.retractImage(ctx, s)
	s.Reset()
	s.Stage = models.StageChoosingEntry
	f.show(ctx, s.Key, f.texts.entryMenu())
	return nil
}

func (f *OrderFlow) beginSelection(ctx context.Context, s *Session, _ models.Event) error {
	s.Stage = models.StageModelSelect
	f.show(ctx, s.Key, f.modelList(f.texts.ChooseModel).InPlace())
	return nil
}

// restartSelection drops any order in progress and opens the model list.
func (f *OrderFlow) restartSelection(ctx context.Context, s *Session, _ models.Event) error {
	f.retractImage(ctx, s)
	s.Reset()
	s.Stage = models.StageModelSelect
	f.show(ctx, s.Key, f.modelList(f.texts.ChooseModel))
	return nil
}

func (f *OrderFlow) chooseModel(ctx context.Context, s *Session, ev models.Event) error {
	suffix := strings.TrimPrefix(ev.Token, models.PrefixModel)
	idx, err := strconv.Atoi(suffix)
	if err != nil {
		return fmt.Errorf("%w: malformed model token %q", models.ErrInvariant, ev.Token)
	}
	model, ok := f.catalog.ModelAt(idx)
	if !ok {
		return fmt.Errorf("%w: model index %d outside catalog of %d models", models.ErrInvariant, idx, f.catalog.Len())
	}
	entry, _ := f.catalog.Entry(model)

	s.clearSelection()
	s.Model = model
	s.MemoryOptions = entry.Memory
	s.ColorOptions = entry.Colors
	s.Stage = models.StageMemorySelect
	f.show(ctx, s.Key, f.memoryList.Render(f.texts.memoryTitle(model), s.MemoryOptions, s.Memory).InPlace())
	return nil
}

// optionLabel decodes a toggle token and checks it against the snapshotted
// options. Stale or foreign tokens yield ok=false.
func (f *OrderFlow) optionLabel(s *Session, list selection.List, token string, options []string) (string, bool) {
	label, err := list.Label(strings.TrimPrefix(token, list.Prefix))
	if err != nil {
		slog.Warn("OrderFlow.optionLabel: undecodable option token, ignoring", "sessionKey", s.Key, "token", token, "error", err)
		return "", false
	}
	if !slices.Contains(options, label) {
		slog.Warn("OrderFlow.optionLabel: option not offered for model, ignoring", "sessionKey", s.Key, "model", s.Model, "option", label)
		return "", false
	}
	return label, true
}

func (f *OrderFlow) toggleMemory(ctx context.Context, s *Session, ev models.Event) error {
	label, ok := f.optionLabel(s, f.memoryList, ev.Token, s.MemoryOptions)
	if !ok {
		return nil
	}
	s.Memory.Toggle(label)
	f.show(ctx, s.Key, f.memoryList.Render(f.texts.memoryTitle(s.Model), s.MemoryOptions, s.Memory).InPlace())
	return nil
}

func (f *OrderFlow) memoryDone(ctx context.Context, s *Session, _ models.Event) error {
	if entry, ok := f.catalog.Entry(s.Model); ok && entry.Image != "" {
		handle, err := f.display.Render(ctx, s.Key, models.ShowImage(entry.Image, f.texts.imageCaption(s.Model)))
		if err != nil {
			slog.Warn("OrderFlow.memoryDone: color image not shown", "sessionKey", s.Key, "image", entry.Image, "error", err)
		} else {
			s.ImageHandle = handle
		}
	}
	s.Stage = models.StageColorSelect
	f.show(ctx, s.Key, f.colorList.Render(f.texts.ColorPrompt, s.ColorOptions, s.Colors))
	return nil
}

func (f *OrderFlow) toggleColor(ctx context.Context, s *Session, ev models.Event) error {
	label, ok := f.optionLabel(s, f.colorList, ev.Token, s.ColorOptions)
	if !ok {
		return nil
	}
	s.Colors.Toggle(label)
	f.show(ctx, s.Key, f.colorList.Render(f.texts.ColorPrompt, s.ColorOptions, s.Colors).InPlace())
	return nil
}

func (f *OrderFlow) colorDone(ctx context.Context, s *Session, _ models.Event) error {
	f.retractImage(ctx, s)
	s.Stage = models.StageConfirm
	summary := f.texts.summary(s.Model, s.Memory.Summary(), s.Colors.Summary())
	f.show(ctx, s.Key, models.ShowChoiceList(summary, f.texts.confirmChoices(), nil).InPlace())
	return nil
}

func (f *OrderFlow) confirm(ctx context.Context, s *Session, _ models.Event) error {
	s.Stage = models.StageContactCapture
	f.show(ctx, s.Key, models.ShowPlainText(f.texts.ContactPrompt).InPlace())
	return nil
}

func (f *OrderFlow) edit(ctx context.Context, s *Session, _ models.Event) error {
	s.clearSelection()
	s.Stage = models.StageModelSelect
	f.show(ctx, s.Key, f.modelList(f.texts.RestartModel).InPlace())
	return nil
}

func (f *OrderFlow) submitContact(ctx context.Context, s *Session, ev models.Event) error {
	c, err := f.parser.Parse(ev.Text)
	if err != nil {
		var pe *contact.ParseError
		if !errors.As(err, &pe) {
			return err
		}
		slog.Info("OrderFlow.submitContact: contact rejected", "sessionKey", s.Key, "policy", pe.Policy)
		f.show(ctx, s.Key, models.ShowPlainText(pe.Message))
		return nil
	}

	rec := order.NewRecord(order.Draft{
		Requester: ev.Requester,
		Model:     s.Model,
		Memory:    s.Memory,
		Colors:    s.Colors,
		Contact:   c,
	}, f.now())
	slog.Info("OrderFlow.submitContact: order assembled", "sessionKey", s.Key, "order_id", rec.ID, "model", rec.Model)
	if f.dispatcher != nil {
		f.dispatcher.Dispatch(ctx, rec)
	}

	s.Reset()
	f.show(ctx, s.Key, f.texts.postOrderMenu(f.texts.Thanks))
	return nil
}

func (f *OrderFlow) info(ctx context.Context, s *Session, ev models.Event) error {
	text := f.texts.info(ev.Token)
	if s.Stage == models.StageIdle {
		f.show(ctx, s.Key, f.texts.postOrderMenu(text))
		return nil
	}
	f.show(ctx, s.Key, models.ShowPlainText(text))
	return nil
}
