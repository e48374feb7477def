package page

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

var colorValue = regexp.MustCompile(`^(#[0-9a-fA-F]{3,8}|[a-zA-Z]{3,20}|rgba?\(\s*\d{1,3}%?\s*,\s*\d{1,3}%?\s*,\s*\d{1,3}%?\s*(,\s*(0|1|0?\.\d+)\s*)?\))$`)

func richPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "strong", "b", "em", "i", "ul", "ol", "li",
		"h1", "h2", "h3", "h4", "h5", "h6", "span")
	p.AllowStyles("color").Matching(colorValue).OnElements("span")
	return p
}

// Sanitizer cleans markup before it is stored or rendered. Fields that do
// not allow formatting keep text only.
type Sanitizer struct {
	page    *Page
	rich    *bluemonday.Policy
	strict  *bluemonday.Policy
	enabled bool
}

// NewSanitizer returns a sanitizer for the fields of p. A disabled
// sanitizer passes markup through untouched.
func NewSanitizer(p *Page, enabled bool) *Sanitizer {
	return &Sanitizer{
		page:    p,
		rich:    richPolicy(),
		strict:  bluemonday.StrictPolicy(),
		enabled: enabled,
	}
}

// Enabled reports whether markup is being cleaned.
func (s *Sanitizer) Enabled() bool {
	return s != nil && s.enabled
}

// Clean returns value made safe for the field named key. Keys the page
// does not define get the rich policy.
func (s *Sanitizer) Clean(key, value string) string {
	if !s.Enabled() {
		return value
	}
	if s.page != nil {
		if f, ok := s.page.Field(key); ok && !f.Formatting() {
			return s.strict.Sanitize(value)
		}
	}
	return s.rich.Sanitize(value)
}
