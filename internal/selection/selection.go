// Package selection implements the multi-select accumulator: a set of
// toggled option labels and its rendering as a choice list with a
// completion action.
package selection

import (
	"sort"
	"strings"

	"github.com/BTreeMap/OrderPipe/internal/catalog"
	"github.com/BTreeMap/OrderPipe/internal/models"
)

// NonePlaceholder is shown instead of an empty joined selection.
const NonePlaceholder = "(none selected)"

// Set is an unordered set of option labels. Labels are opaque.
type Set map[string]struct{}

// NewSet returns a set holding labels.
func NewSet(labels ...string) Set {
	s := make(Set, len(labels))
	for _, l := range labels {
		s[l] = struct{}{}
	}
	return s
}

// Toggle removes label if present, otherwise adds it, and returns the set.
func (s Set) Toggle(label string) Set {
	if _, ok := s[label]; ok {
		delete(s, label)
	} else {
		s[label] = struct{}{}
	}
	return s
}

// Contains reports whether label is selected.
func (s Set) Contains(label string) bool {
	_, ok := s[label]
	return ok
}

// Len returns the number of selected labels.
func (s Set) Len() int {
	return len(s)
}

// Clone returns an independent copy.
func (s Set) Clone() Set {
	c := make(Set, len(s))
	for l := range s {
		c[l] = struct{}{}
	}
	return c
}

// Equal reports whether both sets hold the same labels.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for l := range s {
		if !other.Contains(l) {
			return false
		}
	}
	return true
}

// Sorted returns the labels in lexicographic order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for l := range s {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Join returns the sorted labels joined by ", ".
func (s Set) Join() string {
	return strings.Join(s.Sorted(), ", ")
}

// Summary is Join with NonePlaceholder for an empty set.
func (s Set) Summary() string {
	if len(s) == 0 {
		return NonePlaceholder
	}
	return s.Join()
}

// List describes how a multi-select list is rendered.
type List struct {
	// Prefix is prepended to every token, e.g. models.PrefixMemory.
	Prefix    string
	DoneLabel string
}

// Token returns the choice token for option label.
func (l List) Token(label string) string {
	return l.Prefix + catalog.EncodeOption(label)
}

// DoneToken returns the token of the completion action.
func (l List) DoneToken() string {
	return l.Prefix + models.TokenDone
}

// Label decodes a token suffix (the part after Prefix) back to an option label.
func (l List) Label(suffix string) (string, error) {
	return catalog.DecodeOption(suffix)
}

// Render builds the choice list for options in their given order, tagging
// each with its selection state, plus the done action.
func (l List) Render(title string, options []string, selected Set) models.Render {
	choices := make([]models.Choice, len(options))
	for i, opt := range options {
		choices[i] = models.Choice{
			Label:    opt,
			Token:    l.Token(opt),
			Selected: selected.Contains(opt),
		}
	}
	return models.ShowChoiceList(title, choices, &models.Choice{Label: l.DoneLabel, Token: l.DoneToken()})
}
