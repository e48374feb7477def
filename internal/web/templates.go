package web

import (
	"embed"
	"html/template"
	"io/fs"
	"strings"

	"flyer/internal/page"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*.js static/*.css
var staticEmbed embed.FS

func staticFS() fs.FS {
	sub, err := fs.Sub(staticEmbed, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

func parseTemplates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"field": renderField,
	}).ParseFS(templateFS, "templates/*.html")
}

// renderField emits the editable element for f. The tag comes from the
// page's fixed element set and the markup was cleaned by page.Render.
func renderField(f page.FieldView) template.HTML {
	var b strings.Builder
	attr := func(name, value string) {
		b.WriteString(" ")
		b.WriteString(name)
		b.WriteString(`="`)
		b.WriteString(template.HTMLEscapeString(value))
		b.WriteString(`"`)
	}

	b.WriteString("<")
	b.WriteString(f.Tag)
	attr("class", strings.TrimSpace("flyer-field "+f.EditorClass))
	attr("data-key", f.Key)
	attr("data-placeholder", f.Placeholder)
	if f.Formatting {
		attr("data-formatting", "true")
	}
	if f.Disabled {
		attr("data-disabled", "true")
	}
	b.WriteString(">")
	b.WriteString(string(f.Markup))
	b.WriteString("</")
	b.WriteString(f.Tag)
	b.WriteString(">")
	return template.HTML(b.String())
}
