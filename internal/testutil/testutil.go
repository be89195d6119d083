// Package testutil provides shared fakes and assertion helpers for OrderPipe tests.
package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/BTreeMap/OrderPipe/internal/models"
)

// ErrInjected is returned by fakes configured to fail.
var ErrInjected = errors.New("injected failure")

// RenderCall is one recorded Render invocation.
type RenderCall struct {
	SessionKey string
	Render     models.Render
}

// RecordingDisplay records every render instruction. Images receive handles
// "img-1", "img-2", ... Setting FailKinds makes renders of those kinds fail.
type RecordingDisplay struct {
	mu        sync.Mutex
	calls     []RenderCall
	images    int
	FailKinds map[models.RenderKind]bool
}

// NewRecordingDisplay creates an empty display.
func NewRecordingDisplay() *RecordingDisplay {
	return &RecordingDisplay{FailKinds: make(map[models.RenderKind]bool)}
}

// Render records r.
func (d *RecordingDisplay) Render(_ context.Context, sessionKey string, r models.Render) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, RenderCall{SessionKey: sessionKey, Render: r})
	if d.FailKinds[r.Kind] {
		return "", ErrInjected
	}
	if r.Kind == models.RenderImage {
		d.images++
		return fmt.Sprintf("img-%d", d.images), nil
	}
	return "", nil
}

// Calls returns a copy of all recorded renders.
func (d *RecordingDisplay) Calls() []RenderCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]RenderCall(nil), d.calls...)
}

// Last returns the most recent render, or false when nothing was rendered.
func (d *RecordingDisplay) Last() (models.Render, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.calls) == 0 {
		return models.Render{}, false
	}
	return d.calls[len(d.calls)-1].Render, true
}

// Kinds returns the kinds of all recorded renders in order.
func (d *RecordingDisplay) Kinds() []models.RenderKind {
	d.mu.Lock()
	defer d.mu.Unlock()
	kinds := make([]models.RenderKind, len(d.calls))
	for i, c := range d.calls {
		kinds[i] = c.Render.Kind
	}
	return kinds
}

// Reset forgets recorded renders.
func (d *RecordingDisplay) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = nil
}

// RecordingLog is an in-memory order log sink.
type RecordingLog struct {
	mu      sync.Mutex
	records []models.OrderRecord
	Err     error
}

// AppendOrder records rec unless Err is set.
func (l *RecordingLog) AppendOrder(_ context.Context, rec models.OrderRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return l.Err
	}
	l.records = append(l.records, rec)
	return nil
}

// Records returns a copy of the appended records.
func (l *RecordingLog) Records() []models.OrderRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.OrderRecord(nil), l.records...)
}

// SentText is one recorded SendText call.
type SentText struct {
	To   string
	Body string
}

// RecordingNotifier records text messages. Every attempt is recorded, even
// when Err is set.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []SentText
	Err  error
}

// SendText records the message.
func (n *RecordingNotifier) SendText(_ context.Context, to, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, SentText{To: to, Body: body})
	return n.Err
}

// Sent returns a copy of the recorded messages.
func (n *RecordingNotifier) Sent() []SentText {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]SentText(nil), n.sent...)
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t testing.TB, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes JSON response and validates the status field.
func AssertJSONResponse(t testing.TB, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}
