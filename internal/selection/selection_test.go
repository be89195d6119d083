package selection

import (
	"testing"

	"github.com/BTreeMap/OrderPipe/internal/catalog"
	"github.com/BTreeMap/OrderPipe/internal/models"
	"github.com/google/go-cmp/cmp"
)

func TestToggleIsItsOwnInverse(t *testing.T) {
	starts := []Set{NewSet(), NewSet("256GB"), NewSet("256GB", "1TB")}
	for _, start := range starts {
		for _, opt := range []string{"256GB", "512GB", "1TB"} {
			s := start.Clone()
			s.Toggle(opt).Toggle(opt)
			if !s.Equal(start) {
				t.Errorf("toggling %q twice from %v gave %v", opt, start.Sorted(), s.Sorted())
			}
		}
	}
}

func TestToggleAddsAndRemoves(t *testing.T) {
	s := NewSet()
	s.Toggle("Silver")
	if !s.Contains("Silver") || s.Len() != 1 {
		t.Fatalf("expected Silver selected, got %v", s.Sorted())
	}
	s.Toggle("Silver")
	if s.Contains("Silver") || s.Len() != 0 {
		t.Fatalf("expected empty set, got %v", s.Sorted())
	}
}

func TestJoinAndSummary(t *testing.T) {
	s := NewSet("512GB", "256GB", "1TB")
	if got := s.Join(); got != "1TB, 256GB, 512GB" {
		t.Errorf("Join() = %q", got)
	}
	if got := NewSet().Join(); got != "" {
		t.Errorf("empty Join() = %q", got)
	}
	if got := NewSet().Summary(); got != NonePlaceholder {
		t.Errorf("empty Summary() = %q", got)
	}
	if got := NewSet("Silver").Summary(); got != "Silver" {
		t.Errorf("Summary() = %q", got)
	}
}

func TestListRender(t *testing.T) {
	l := List{Prefix: models.PrefixColor, DoneLabel: "Done"}
	r := l.Render("Pick colors", []string{"Sky Blue", "Light Gold"}, NewSet("Light Gold"))

	want := models.Render{
		Kind:  models.RenderChoiceList,
		Title: "Pick colors",
		Choices: []models.Choice{
			{Label: "Sky Blue", Token: "col_Sky_Blue"},
			{Label: "Light Gold", Token: "col_Light_Gold", Selected: true},
		},
		Done: &models.Choice{Label: "Done", Token: "col_done"},
	}
	if diff := cmp.Diff(want, r); diff != "" {
		t.Errorf("Render mismatch (-want +got):\n%s", diff)
	}
}

func TestListRenderZeroSelectionsStillHasDone(t *testing.T) {
	l := List{Prefix: models.PrefixMemory, DoneLabel: "Done"}
	r := l.Render("Memory", []string{"256GB"}, NewSet())
	if r.Done == nil || r.Done.Token != "mem_done" {
		t.Fatalf("done action missing: %+v", r.Done)
	}
	for _, f := range r.SelectedFlags() {
		if f {
			t.Error("nothing should be selected")
		}
	}
}

func TestTokenRoundTripForCatalog(t *testing.T) {
	l := List{Prefix: models.PrefixColor}
	for _, e := range catalog.Default().Entries() {
		for _, opt := range e.Colors {
			tok := l.Token(opt)
			got, err := l.Label(tok[len(l.Prefix):])
			if err != nil || got != opt {
				t.Errorf("token %q decoded to %q (%v), want %q", tok, got, err, opt)
			}
			if tok == l.DoneToken() {
				t.Errorf("option %q collides with done token", opt)
			}
		}
	}
}
