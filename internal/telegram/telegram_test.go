package telegram

import (
	"context"
	"errors"
	"testing"
)

func TestNewClientRequiresToken(t *testing.T) {
	if _, err := NewClient(); !errors.Is(err, ErrMissingToken) {
		t.Errorf("expected ErrMissingToken, got %v", err)
	}
}

func TestOptions(t *testing.T) {
	opts := &Opts{}
	WithToken("123:abc")(opts)
	WithDebug(true)(opts)
	WithPollTimeout(5)(opts)
	if opts.Token != "123:abc" || !opts.Debug || opts.PollTimeout != 5 {
		t.Errorf("unexpected opts %+v", opts)
	}
}

func TestMarkup(t *testing.T) {
	m := markup([][]Button{{{Text: "A", Data: "a"}}, {{Text: "B", Data: "b"}, {Text: "C", Data: "c"}}})
	if len(m.InlineKeyboard) != 2 || len(m.InlineKeyboard[1]) != 2 {
		t.Fatalf("unexpected layout %+v", m.InlineKeyboard)
	}
	if m.InlineKeyboard[1][1].Text != "C" || m.InlineKeyboard[1][1].CallbackData == nil || *m.InlineKeyboard[1][1].CallbackData != "c" {
		t.Errorf("unexpected button %+v", m.InlineKeyboard[1][1])
	}
}

func TestIsNotModified(t *testing.T) {
	if !IsNotModified(errors.New("Bad Request: message is not modified: specified new message content")) {
		t.Error("expected not-modified detection")
	}
	if IsNotModified(errors.New("Forbidden")) || IsNotModified(nil) {
		t.Error("unexpected not-modified detection")
	}
}

func TestMockClientIDs(t *testing.T) {
	m := NewMockClient()
	ctx := context.Background()
	id1, _ := m.SendText(ctx, 1, "hi", nil)
	id2, _ := m.SendPhoto(ctx, 1, "/tmp/x.png", "cap")
	if id1 != 1 || id2 != 2 {
		t.Errorf("ids = %d, %d", id1, id2)
	}
	_ = m.Delete(ctx, 1, id2)
	sent, _, deleted := m.Snapshot()
	if len(sent) != 2 || len(deleted) != 1 || deleted[0] != 2 {
		t.Errorf("sent=%v deleted=%v", sent, deleted)
	}
	m.Stop()
	m.Stop()
	if _, ok := <-m.Updates(); ok {
		t.Error("updates channel should be closed")
	}
}
