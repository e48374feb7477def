package page

import "html/template"

// Source supplies stored values. content.Store satisfies it.
type Source interface {
	Get(key, def string) string
}

// View is the render-ready form of a page.
type View struct {
	Title       string
	Description string
	Image       string
	Audio       string
	Sections    []SectionView
}

type SectionView struct {
	ID     string
	Class  string
	Fields []FieldView
}

type FieldView struct {
	Key          string
	Tag          string
	WrapperClass string
	EditorClass  string
	Placeholder  string
	Formatting   bool
	Disabled     bool
	Markup       template.HTML
}

// Render resolves every field against src, falling back to the field's
// default, and cleans the result with san.
func (p *Page) Render(src Source, san *Sanitizer) View {
	v := View{
		Title:       p.Title,
		Description: p.Description,
		Image:       p.Image,
		Audio:       p.Audio,
		Sections:    make([]SectionView, 0, len(p.Sections)),
	}
	for _, sec := range p.Sections {
		sv := SectionView{ID: sec.ID, Class: sec.Class, Fields: make([]FieldView, 0, len(sec.Fields))}
		for i := range sec.Fields {
			f := &sec.Fields[i]
			value := src.Get(f.Key, f.defaultMarkup)
			sv.Fields = append(sv.Fields, FieldView{
				Key:          f.Key,
				Tag:          string(f.As),
				WrapperClass: f.WrapperClass(),
				EditorClass:  f.EditorClass(),
				Placeholder:  f.PlaceholderText(),
				Formatting:   f.Formatting(),
				Disabled:     f.Disabled,
				Markup:       template.HTML(san.Clean(f.Key, value)),
			})
		}
		v.Sections = append(v.Sections, sv)
	}
	return v
}
