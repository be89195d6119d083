package messaging

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BTreeMap/OrderPipe/internal/models"
	"github.com/BTreeMap/OrderPipe/internal/whatsapp"
	"github.com/google/go-cmp/cmp"
)

func TestWhatsAppServiceMenuRoundTrip(t *testing.T) {
	client := whatsapp.NewMockClient()
	svc := NewWhatsAppService(client, t.TempDir())
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer svc.Stop()
	ctx := context.Background()

	list := models.ShowChoiceList("Choose a model", []models.Choice{
		{Label: "iPhone 17", Token: "model_0"},
		{Label: "iPhone Air", Token: "model_1"},
	}, nil)
	if _, err := svc.Render(ctx, "79001234567", list); err != nil {
		t.Fatalf("Render: %v", err)
	}
	msgs := client.Messages()
	if len(msgs) != 1 || msgs[0].To != "79001234567" || !strings.Contains(msgs[0].Body, "2. iPhone Air") {
		t.Fatalf("unexpected messages: %+v", msgs)
	}

	from := models.Requester{ID: "79001234567", FirstName: "Ivan"}
	svc.Deliver(ctx, "79001234567", "wa:1", "2", from)
	want := models.ChoiceSelected("79001234567", "model_1", from)
	want.MessageID = "wa:1"
	if diff := cmp.Diff(want, receive(t, svc.Events())); diff != "" {
		t.Errorf("event mismatch (-want +got):\n%s", diff)
	}
}

func TestWhatsAppServiceImages(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "phone.png"), []byte("png-bytes"), 0o600); err != nil {
		t.Fatal(err)
	}
	client := whatsapp.NewMockClient()
	svc := NewWhatsAppService(client, dir)
	ctx := context.Background()

	handle, err := svc.Render(ctx, "1", models.ShowImage("phone.png", "iPhone 17"))
	if err != nil {
		t.Fatalf("Render image: %v", err)
	}
	if handle == "" {
		t.Fatal("expected a handle for the image")
	}
	msgs := client.Messages()
	if msgs[0].MimeType != "image/png" || string(msgs[0].Image) != "png-bytes" || msgs[0].Body != "iPhone 17" {
		t.Errorf("unexpected image message: %+v", msgs[0])
	}

	if _, err := svc.Render(ctx, "1", models.RetractImage(handle)); err != nil {
		t.Fatalf("Retract: %v", err)
	}
	if diff := cmp.Diff([]string{handle}, client.Revoked); diff != "" {
		t.Errorf("revoked mismatch (-want +got):\n%s", diff)
	}

	if _, err := svc.Render(ctx, "1", models.ShowImage("nope.png", "")); err == nil {
		t.Error("expected error for missing image file")
	}
}

func TestWhatsAppServiceSendText(t *testing.T) {
	client := whatsapp.NewMockClient()
	svc := NewWhatsAppService(client, "")
	if err := svc.SendText(context.Background(), "+79001234567", "📦 New order"); err != nil {
		t.Fatal(err)
	}
	if got := client.Messages()[0].To; got != "79001234567" {
		t.Errorf("destination = %q, want leading + stripped", got)
	}

	client.Err = errors.New("not connected")
	if err := svc.SendText(context.Background(), "1", "x"); err == nil {
		t.Error("expected send error to propagate")
	}
}

func TestWhatsAppServiceDropsAfterStop(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient(), "")
	svc.Stop()
	svc.Deliver(context.Background(), "1", "wa:1", "hi", models.Requester{})
	if _, ok := <-svc.Events(); ok {
		t.Error("no events expected after Stop")
	}
	if err := svc.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}
