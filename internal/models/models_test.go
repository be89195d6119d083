package models

import (
	"errors"
	"testing"
	"time"
)

func TestRequesterLabelPriority(t *testing.T) {
	tests := []struct {
		name string
		req  Requester
		want string
	}{
		{"username wins", Requester{ID: "42", Username: "anna", FirstName: "Anna", LastName: "Petrova"}, "@anna"},
		{"display name", Requester{ID: "42", FirstName: "Anna", LastName: "Petrova"}, "Anna Petrova"},
		{"first name only", Requester{ID: "42", FirstName: "Anna"}, "Anna"},
		{"last name only", Requester{ID: "42", LastName: "Petrova"}, "Petrova"},
		{"numeric fallback", Requester{ID: "42"}, "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.req.Label(); got != tt.want {
				t.Errorf("Label() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEventValidate(t *testing.T) {
	from := Requester{ID: "1"}
	if err := EntryCommand("", from).Validate(); !errors.Is(err, ErrEmptySessionKey) {
		t.Errorf("expected ErrEmptySessionKey, got %v", err)
	}
	if err := ChoiceSelected("1", "", from).Validate(); err == nil {
		t.Error("expected error for choice without token")
	}
	if err := (Event{SessionKey: "1", Kind: "bogus"}).Validate(); err == nil {
		t.Error("expected error for unknown kind")
	}
	for _, ev := range []Event{EntryCommand("1", from), CancelCommand("1", from), FreeText("1", "hi", from), ChoiceSelected("1", TokenStartOrder, from)} {
		if err := ev.Validate(); err != nil {
			t.Errorf("unexpected error for %s: %v", ev.Kind, err)
		}
	}
}

func TestOrderRecordRow(t *testing.T) {
	o := OrderRecord{
		Requester: "@anna",
		Phone:     "+79161234567",
		Name:      "Petrova Anna",
		Model:     "iPhone 17 Pro",
		Memory:    "256GB, 512GB",
		Colors:    "Silver",
		CreatedAt: time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC),
	}
	row := o.Row()
	want := []string{"@anna", "+79161234567", "2026-10-17 09:30:00", "Petrova Anna", "iPhone 17 Pro", "256GB, 512GB", "Silver"}
	if len(row) != 7 {
		t.Fatalf("expected 7 columns, got %d", len(row))
	}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("column %d = %q, want %q", i, row[i], want[i])
		}
	}
}

func TestRenderHelpers(t *testing.T) {
	r := ShowChoiceList("pick", []Choice{{Label: "a", Token: "x_a", Selected: true}, {Label: "b", Token: "x_b"}}, &Choice{Label: "Done", Token: "x_done"})
	flags := r.SelectedFlags()
	if len(flags) != 2 || !flags[0] || flags[1] {
		t.Errorf("unexpected flags %v", flags)
	}
	if r.Replace {
		t.Error("new choice list should not replace by default")
	}
	if !r.InPlace().Replace {
		t.Error("InPlace should set Replace")
	}
	if r.Replace {
		t.Error("InPlace must not mutate the receiver")
	}
}

func TestIsValidStage(t *testing.T) {
	for _, s := range Stages {
		if !IsValidStage(s) {
			t.Errorf("stage %s should be valid", s)
		}
	}
	if IsValidStage("NOPE") {
		t.Error("unknown stage reported valid")
	}
}
