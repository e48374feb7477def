package page

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultParses(t *testing.T) {
	p, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	if p.Title != "Passing the Fire - Watani Stiner" {
		t.Fatalf("unexpected title %q", p.Title)
	}
	f, ok := p.Field("hero-title")
	if !ok {
		t.Fatal("hero-title missing")
	}
	if f.As != H1 {
		t.Fatalf("expected h1, got %q", f.As)
	}
	if f.DefaultMarkup() != "Passing the Fire" {
		t.Fatalf("heading default should not keep a paragraph: %q", f.DefaultMarkup())
	}
	host, _ := p.Field("hero-host")
	if host.DefaultMarkup() != "with <em>Watani Stiner</em>" {
		t.Fatalf("unexpected inline markup %q", host.DefaultMarkup())
	}
	if len(p.Keys()) != len(p.Defaults()) {
		t.Fatalf("keys and defaults disagree: %d vs %d", len(p.Keys()), len(p.Defaults()))
	}
}

func TestParseRejectsDuplicateKeys(t *testing.T) {
	_, err := Parse([]byte(`
title: t
sections:
  - id: a
    fields:
      - key: title
        as: h1
  - id: b
    fields:
      - key: title
        as: p
`))
	if err == nil || !strings.Contains(err.Error(), `duplicate field key "title"`) {
		t.Fatalf("expected duplicate key error, got %v", err)
	}
}

func TestParseRejectsBadDefinitions(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown element", "sections:\n  - fields:\n      - key: k\n        as: marquee\n", "unknown element"},
		{"missing key", "sections:\n  - id: s\n    fields:\n      - as: p\n", "missing key"},
		{"unknown yaml field", "title: t\ncolour: red\n", "colour"},
		{"empty", "", "empty definition"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestElementDefaultsToDiv(t *testing.T) {
	p, err := Parse([]byte("sections:\n  - fields:\n      - key: body\n        default: \"one\\n\\ntwo\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	f, _ := p.Field("body")
	if f.As != Div {
		t.Fatalf("expected div, got %q", f.As)
	}
	if !strings.Contains(f.DefaultMarkup(), "<p>one</p>") || !strings.Contains(f.DefaultMarkup(), "<p>two</p>") {
		t.Fatalf("div should keep paragraphs: %q", f.DefaultMarkup())
	}
}

func TestEditorClass(t *testing.T) {
	tests := []struct {
		as    Element
		class string
		want  string
	}{
		{H1, "", "text-5xl md:text-8xl font-bold"},
		{H1, "mt-2", "text-5xl md:text-8xl font-bold mt-2"},
		{H2, "", "text-3xl md:text-4xl font-bold"},
		{H3, "", "text-2xl md:text-3xl font-bold"},
		{H4, "", "text-xl md:text-2xl font-bold"},
		{H5, "", "text-lg md:text-xl font-bold"},
		{H6, "x", "text-base md:text-lg font-bold x"},
		{P, "", "text-base md:text-lg"},
		{Span, "small", "small"},
		{Div, "", ""},
	}
	for _, tt := range tests {
		f := Field{As: tt.as, Class: tt.class}
		if got := f.EditorClass(); got != tt.want {
			t.Errorf("%s/%q: got %q, want %q", tt.as, tt.class, got, tt.want)
		}
	}
}

func TestFieldDefaults(t *testing.T) {
	f := Field{Key: "tagline"}
	if f.PlaceholderText() != "Edit tagline..." {
		t.Fatalf("unexpected placeholder %q", f.PlaceholderText())
	}
	if !f.Formatting() {
		t.Fatal("formatting should default to allowed")
	}
	if f.WrapperClass() != "min-h-[1em]" {
		t.Fatalf("unexpected wrapper class %q", f.WrapperClass())
	}
	off := false
	f = Field{Key: "k", Placeholder: "Say it", AllowFormatting: &off, Class: "a b"}
	if f.PlaceholderText() != "Say it" || f.Formatting() || f.WrapperClass() != "min-h-[1em] a b" {
		t.Fatalf("explicit settings ignored: %+v", f)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.yaml")
	if err := os.WriteFile(path, []byte("title: Mine\nsections:\n  - fields:\n      - key: a\n        as: p\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.Title != "Mine" {
		t.Fatalf("unexpected title %q", p.Title)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	def, err := Load("")
	if err != nil || def.Title == "Mine" {
		t.Fatalf("empty path should select the built-in page: %v", err)
	}
}

func TestSanitizerStripsScript(t *testing.T) {
	p, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	s := NewSanitizer(p, true)
	got := s.Clean("invitation-body", `<p>hi <strong>there</strong><script>alert(1)</script></p><img src=x onerror=alert(1)>`)
	if strings.Contains(got, "script") || strings.Contains(got, "onerror") || strings.Contains(got, "<img") {
		t.Fatalf("unsafe markup survived: %q", got)
	}
	if !strings.Contains(got, "<strong>there</strong>") {
		t.Fatalf("allowed markup was stripped: %q", got)
	}
}

func TestSanitizerColorSpans(t *testing.T) {
	s := NewSanitizer(nil, true)
	got := s.Clean("any", `<span style="color: red">red</span>`)
	if !strings.Contains(got, "<span") || !strings.Contains(got, "color") {
		t.Fatalf("color span stripped: %q", got)
	}
	got = s.Clean("any", `<span style="background: url(javascript:alert(1))">x</span>`)
	if strings.Contains(got, "javascript") || strings.Contains(got, "background") {
		t.Fatalf("unsafe style survived: %q", got)
	}
}

func TestSanitizerPlainFields(t *testing.T) {
	p, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	s := NewSanitizer(p, true)
	if got := s.Clean("hero-title", "<b>Big</b> news"); got != "Big news" {
		t.Fatalf("plain field kept markup: %q", got)
	}
}

func TestSanitizerDisabled(t *testing.T) {
	s := NewSanitizer(nil, false)
	raw := `<script>alert(1)</script>`
	if got := s.Clean("k", raw); got != raw {
		t.Fatalf("disabled sanitizer changed markup: %q", got)
	}
	if s.Enabled() {
		t.Fatal("expected disabled")
	}
}

type mapSource map[string]string

func (m mapSource) Get(key, def string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return def
}

func TestRender(t *testing.T) {
	p, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	v := p.Render(mapSource{"hero-title": "Hello<script>x</script>"}, NewSanitizer(p, true))
	if v.Title != p.Title || len(v.Sections) != len(p.Sections) {
		t.Fatalf("unexpected view header: %+v", v)
	}
	hero := v.Sections[0].Fields[0]
	if hero.Key != "hero-title" || hero.Tag != "h1" {
		t.Fatalf("unexpected first field %+v", hero)
	}
	if string(hero.Markup) != "Hello" {
		t.Fatalf("stored value not cleaned: %q", hero.Markup)
	}
	sub := v.Sections[0].Fields[1]
	if string(sub.Markup) != "A Sacred Invitation for Young Black Truth-Seekers" {
		t.Fatalf("absent key should render its default: %q", sub.Markup)
	}
	if sub.Placeholder != "Edit hero-subtitle..." {
		t.Fatalf("unexpected placeholder %q", sub.Placeholder)
	}
}
