package messaging

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BTreeMap/OrderPipe/internal/models"
	"github.com/BTreeMap/OrderPipe/internal/telegram"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/go-cmp/cmp"
)

func commandUpdate(updateID int, chatID int64, cmd string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: updateID,
		Message: &tgbotapi.Message{
			MessageID: updateID,
			From:      &tgbotapi.User{ID: 42, UserName: "alice"},
			Chat:      &tgbotapi.Chat{ID: chatID},
			Text:      cmd,
			Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
		},
	}
}

func receive(t *testing.T, ch <-chan models.Event) models.Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("events channel closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return models.Event{}
}

func TestTelegramServiceTranslatesUpdates(t *testing.T) {
	bot := telegram.NewMockClient()
	svc := NewTelegramService(bot, t.TempDir())
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer svc.Stop()

	from := models.Requester{ID: "42", Username: "alice"}

	bot.Push(commandUpdate(1, 7, "/start"))
	want := models.EntryCommand("7", from)
	want.MessageID = "tg:1"
	if diff := cmp.Diff(want, receive(t, svc.Events())); diff != "" {
		t.Errorf("start mismatch (-want +got):\n%s", diff)
	}

	bot.Push(commandUpdate(2, 7, "/cancel"))
	if ev := receive(t, svc.Events()); ev.Kind != models.EventCancelCommand {
		t.Errorf("expected cancel, got %+v", ev)
	}

	bot.Push(tgbotapi.Update{UpdateID: 3, Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: 42, UserName: "alice"},
		Chat: &tgbotapi.Chat{ID: 7},
		Text: "Ivan +79001234567",
	}})
	want = models.FreeText("7", "Ivan +79001234567", from)
	want.MessageID = "tg:3"
	if diff := cmp.Diff(want, receive(t, svc.Events())); diff != "" {
		t.Errorf("text mismatch (-want +got):\n%s", diff)
	}

	bot.Push(tgbotapi.Update{UpdateID: 4, CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: 42, UserName: "alice"},
		Message: &tgbotapi.Message{MessageID: 55, Chat: &tgbotapi.Chat{ID: 7}},
		Data:    "model_0",
	}})
	want = models.ChoiceSelected("7", "model_0", from)
	want.MessageID = "tg:4"
	if diff := cmp.Diff(want, receive(t, svc.Events())); diff != "" {
		t.Errorf("callback mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"cb1"}, bot.Answers()); diff != "" {
		t.Errorf("answered callbacks mismatch (-want +got):\n%s", diff)
	}
}

func TestTelegramServiceClosesEventsWhenPollingEnds(t *testing.T) {
	bot := telegram.NewMockClient()
	svc := NewTelegramService(bot, "")
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	bot.Push(commandUpdate(1, 7, "/unknown"))
	svc.Stop()

	select {
	case _, ok := <-svc.Events():
		if ok {
			t.Error("unknown command should not produce an event")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed after Stop")
	}
}

func TestTelegramServiceRender(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "phone.png"), []byte("png"), 0o600); err != nil {
		t.Fatal(err)
	}
	bot := telegram.NewMockClient()
	svc := NewTelegramService(bot, dir)
	ctx := context.Background()

	list := models.ShowChoiceList("Storage", []models.Choice{
		{Label: "256GB", Token: "mem_256GB", Selected: true},
	}, &models.Choice{Label: "Done", Token: "mem_done"})
	if _, err := svc.Render(ctx, "7", list); err != nil {
		t.Fatalf("Render list: %v", err)
	}
	if _, err := svc.Render(ctx, "7", list.InPlace()); err != nil {
		t.Fatalf("Render in place: %v", err)
	}

	handle, err := svc.Render(ctx, "7", models.ShowImage("phone.png", "iPhone"))
	if err != nil {
		t.Fatalf("Render image: %v", err)
	}
	if _, err := svc.Render(ctx, "7", models.RetractImage(handle)); err != nil {
		t.Fatalf("Retract: %v", err)
	}
	if _, err := svc.Render(ctx, "7", models.ShowImage("missing.png", "")); err == nil {
		t.Error("expected error for missing image")
	}

	sent, edits, deleted := bot.Snapshot()
	if len(sent) != 2 {
		t.Fatalf("sent %d messages, want 2: %+v", len(sent), sent)
	}
	wantKB := [][]telegram.Button{
		{{Text: SelectedMark + "256GB", Data: "mem_256GB"}},
		{{Text: "Done", Data: "mem_done"}},
	}
	if diff := cmp.Diff(wantKB, sent[0].Keyboard); diff != "" {
		t.Errorf("keyboard mismatch (-want +got):\n%s", diff)
	}
	if len(edits) != 1 || edits[0].MessageID != sent[0].MessageID {
		t.Errorf("expected one edit of message %d, got %+v", sent[0].MessageID, edits)
	}
	if sent[1].Photo != filepath.Join(dir, "phone.png") {
		t.Errorf("photo path = %q", sent[1].Photo)
	}
	if diff := cmp.Diff([]int{sent[1].MessageID}, deleted); diff != "" {
		t.Errorf("deleted mismatch (-want +got):\n%s", diff)
	}
}

func TestTelegramServiceEditFallsBackToSend(t *testing.T) {
	bot := telegram.NewMockClient()
	bot.EditErr = errors.New("message can't be edited")
	svc := NewTelegramService(bot, "")
	ctx := context.Background()

	list := models.ShowChoiceList("Pick", []models.Choice{{Label: "A", Token: "a"}}, nil)
	if _, err := svc.Render(ctx, "7", list); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Render(ctx, "7", models.ShowPlainText("contact please").InPlace()); err != nil {
		t.Fatal(err)
	}
	sent, _, _ := bot.Snapshot()
	if len(sent) != 2 || sent[1].Text != "contact please" {
		t.Errorf("expected fallback send, got %+v", sent)
	}
}

func TestTelegramServiceRejectsBadKeys(t *testing.T) {
	svc := NewTelegramService(telegram.NewMockClient(), "")
	if _, err := svc.Render(context.Background(), "not-a-chat", models.ShowPlainText("x")); err == nil {
		t.Error("expected error for non-numeric session key")
	}
	if err := svc.SendText(context.Background(), "abc", "x"); err == nil {
		t.Error("expected error for non-numeric destination")
	}
	if _, err := svc.Render(context.Background(), "7", models.RetractImage("zz")); err == nil {
		t.Error("expected error for invalid handle")
	}
}
