// Package page describes the landing page: which editable fields exist,
// how each is styled, and what it shows before anyone edits it.
package page

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultDefinition []byte

// Element is the HTML element a field renders as.
type Element string

const (
	H1   Element = "h1"
	H2   Element = "h2"
	H3   Element = "h3"
	H4   Element = "h4"
	H5   Element = "h5"
	H6   Element = "h6"
	P    Element = "p"
	Span Element = "span"
	Div  Element = "div"
)

// elementClasses mirrors the typography each element had before editing
// was added, so edit mode does not reflow the page.
var elementClasses = map[Element]string{
	H1: "text-5xl md:text-8xl font-bold",
	H2: "text-3xl md:text-4xl font-bold",
	H3: "text-2xl md:text-3xl font-bold",
	H4: "text-xl md:text-2xl font-bold",
	H5: "text-lg md:text-xl font-bold",
	H6: "text-base md:text-lg font-bold",
	P:  "text-base md:text-lg",
}

// Valid reports whether e is a known element.
func (e Element) Valid() bool {
	switch e {
	case H1, H2, H3, H4, H5, H6, P, Span, Div:
		return true
	}
	return false
}

// Field is one editable region.
type Field struct {
	Key             string  `yaml:"key"`
	As              Element `yaml:"as"`
	Default         string  `yaml:"default"` // markdown
	Class           string  `yaml:"class"`
	Placeholder     string  `yaml:"placeholder"`
	AllowFormatting *bool   `yaml:"allow_formatting"`
	Disabled        bool    `yaml:"disabled"`

	defaultMarkup string
}

// Formatting reports whether the field accepts rich text. Defaults to true.
func (f *Field) Formatting() bool {
	return f.AllowFormatting == nil || *f.AllowFormatting
}

// EditorClass is the class list applied to the field in both display and
// edit mode.
func (f *Field) EditorClass() string {
	base := elementClasses[f.As]
	switch {
	case base == "":
		return f.Class
	case f.Class == "":
		return base
	}
	return base + " " + f.Class
}

// PlaceholderText is the hint shown while the field is empty.
func (f *Field) PlaceholderText() string {
	if f.Placeholder != "" {
		return f.Placeholder
	}
	return "Edit " + f.Key + "..."
}

// DefaultMarkup is Default rendered from markdown.
func (f *Field) DefaultMarkup() string {
	return f.defaultMarkup
}

// Section groups fields under an anchor.
type Section struct {
	ID     string  `yaml:"id"`
	Class  string  `yaml:"class"`
	Fields []Field `yaml:"fields"`
}

// Page is a parsed page definition.
type Page struct {
	Title       string    `yaml:"title"`
	Description string    `yaml:"description"`
	Image       string    `yaml:"image"`
	Audio       string    `yaml:"audio"`
	Sections    []Section `yaml:"sections"`

	byKey map[string]*Field
}

// Default returns the built-in page definition.
func Default() (*Page, error) {
	return Parse(defaultDefinition)
}

// Load reads a page definition from path. An empty path selects Default.
func Load(path string) (*Page, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading page: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parse decodes and validates a YAML page definition.
func Parse(data []byte) (*Page, error) {
	var p Page
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("parsing page: empty definition")
		}
		return nil, fmt.Errorf("parsing page: %w", err)
	}
	if err := p.init(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Page) init() error {
	var errs []error
	p.byKey = make(map[string]*Field)
	for si := range p.Sections {
		sec := &p.Sections[si]
		for fi := range sec.Fields {
			f := &sec.Fields[fi]
			if f.Key == "" {
				errs = append(errs, fmt.Errorf("section %q field %d: missing key", sec.ID, fi))
				continue
			}
			if _, dup := p.byKey[f.Key]; dup {
				errs = append(errs, fmt.Errorf("duplicate field key %q", f.Key))
				continue
			}
			if f.As == "" {
				f.As = Div
			}
			if !f.As.Valid() {
				errs = append(errs, fmt.Errorf("field %q: unknown element %q", f.Key, f.As))
			}
			markup, err := markdownToMarkup(f.Default, f.As)
			if err != nil {
				errs = append(errs, fmt.Errorf("field %q: rendering default: %w", f.Key, err))
			}
			f.defaultMarkup = markup
			p.byKey[f.Key] = f
		}
	}
	return errors.Join(errs...)
}

// Field returns the field registered under key.
func (p *Page) Field(key string) (*Field, bool) {
	f, ok := p.byKey[key]
	return f, ok
}

// Keys returns every field key in page order.
func (p *Page) Keys() []string {
	var keys []string
	for _, sec := range p.Sections {
		for _, f := range sec.Fields {
			keys = append(keys, f.Key)
		}
	}
	return keys
}

// Defaults returns the default markup of every field keyed by content key.
func (p *Page) Defaults() map[string]string {
	out := make(map[string]string, len(p.byKey))
	for k, f := range p.byKey {
		out[k] = f.defaultMarkup
	}
	return out
}

// WrapperClass is the class list of the element wrapping the editor.
func (f *Field) WrapperClass() string {
	return strings.TrimSpace("min-h-[1em] " + f.Class)
}
