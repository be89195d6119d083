// Package catalog holds the static product tables: model to memory options,
// color options and an optional image reference.
//
// A Catalog is loaded once at startup and shared read-only by all sessions.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/BTreeMap/OrderPipe/internal/models"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Errors returned by Validate.
var (
	ErrEmptyCatalog   = errors.New("catalog has no models")
	ErrDuplicateModel = errors.New("duplicate model")
	ErrNoOptions      = errors.New("model has no options")
	ErrDuplicateLabel = errors.New("duplicate option label")
	ErrReservedLabel  = errors.New("option label collides with a reserved token")
	ErrLabelTooLong   = errors.New("option token exceeds the callback data limit")
)

// MaxTokenBytes is the largest choice token a Telegram inline button accepts
// as callback data.
const MaxTokenBytes = 64

// Entry is the option table of a single model.
type Entry struct {
	Model  string   `yaml:"model"`
	Memory []string `yaml:"memory"`
	Colors []string `yaml:"colors"`
	Image  string   `yaml:"image,omitempty"`
}

type file struct {
	Models []Entry `yaml:"models"`
}

// Catalog is an immutable, ordered set of entries.
type Catalog struct {
	entries []Entry
	index   map[string]int
}

// New builds a catalog from entries and validates it.
func New(entries []Entry) (*Catalog, error) {
	c := &Catalog{
		entries: make([]Entry, len(entries)),
		index:   make(map[string]int, len(entries)),
	}
	for i, e := range entries {
		c.entries[i] = Entry{
			Model:  e.Model,
			Memory: slices.Clone(e.Memory),
			Colors: slices.Clone(e.Colors),
			Image:  e.Image,
		}
		if _, dup := c.index[e.Model]; !dup {
			c.index[e.Model] = i
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	return New(f.Models)
}

// Load reads a catalog from path, or returns the built-in catalog when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		slog.Debug("Catalog.Load: using built-in catalog")
		return Parse(defaultCatalog)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", path, err)
	}
	slog.Info("Catalog.Load: catalog loaded", "path", path, "models", len(c.entries))
	return c, nil
}

// Default returns the built-in catalog. It panics if the embedded document is invalid.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("built-in catalog is invalid: %v", err))
	}
	return c
}

// Validate checks that every model has non-empty, duplicate-free option
// lists whose labels survive the token codec and fit in a button token.
func (c *Catalog) Validate() error {
	if len(c.entries) == 0 {
		return ErrEmptyCatalog
	}
	seen := make(map[string]bool, len(c.entries))
	for _, e := range c.entries {
		if strings.TrimSpace(e.Model) == "" {
			return errors.New("model name cannot be empty")
		}
		if seen[e.Model] {
			return fmt.Errorf("%w: %q", ErrDuplicateModel, e.Model)
		}
		seen[e.Model] = true
		if err := validateOptions(e.Model, "memory", models.PrefixMemory, e.Memory); err != nil {
			return err
		}
		if err := validateOptions(e.Model, "colors", models.PrefixColor, e.Colors); err != nil {
			return err
		}
	}
	return nil
}

func validateOptions(model, table, prefix string, options []string) error {
	if len(options) == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNoOptions, model, table)
	}
	seen := make(map[string]bool, len(options))
	for _, opt := range options {
		if opt == "" {
			return fmt.Errorf("empty option label in %s/%s", model, table)
		}
		if seen[opt] {
			return fmt.Errorf("%w: %s/%s %q", ErrDuplicateLabel, model, table, opt)
		}
		seen[opt] = true
		if EncodeOption(opt) == reservedToken {
			return fmt.Errorf("%w: %s/%s %q", ErrReservedLabel, model, table, opt)
		}
		if n := len(prefix + EncodeOption(opt)); n > MaxTokenBytes {
			return fmt.Errorf("%w: %s/%s %q encodes to %d bytes", ErrLabelTooLong, model, table, opt, n)
		}
	}
	return nil
}

// Models returns the model names in catalog order.
func (c *Catalog) Models() []string {
	names := make([]string, len(c.entries))
	for i, e := range c.entries {
		names[i] = e.Model
	}
	return names
}

// Len returns the number of models.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// ModelAt returns the model name at index i.
func (c *Catalog) ModelAt(i int) (string, bool) {
	if i < 0 || i >= len(c.entries) {
		return "", false
	}
	return c.entries[i].Model, true
}

// Entry returns a copy of the entry for model.
func (c *Catalog) Entry(model string) (Entry, bool) {
	i, ok := c.index[model]
	if !ok {
		return Entry{}, false
	}
	e := c.entries[i]
	return Entry{Model: e.Model, Memory: slices.Clone(e.Memory), Colors: slices.Clone(e.Colors), Image: e.Image}, true
}

// Entries returns copies of all entries in catalog order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		entry, _ := c.Entry(e.Model)
		out = append(out, entry)
	}
	return out
}
