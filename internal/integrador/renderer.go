package integrador

import (
	"embed"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"text/template"
)

//go:embed templates/*.xml
var templateFS embed.FS

// Fields are the values substituted into a request template.
type Fields map[string]string

// Renderer produces request documents from named templates.
type Renderer interface {
	// Render writes the document for template name. Unknown names fail with
	// ErrUnknownCommand.
	Render(w io.Writer, name string, fields Fields) error
	// Lookup resolves a command or template name, case-insensitively and
	// with or without the ".xml" suffix, to its canonical template name.
	Lookup(name string) (string, bool)
}

// TemplateRenderer renders the request templates embedded in the binary.
type TemplateRenderer struct {
	tmpl  *template.Template
	names map[string]string // lower-case command name -> template name
}

// NewTemplateRenderer parses the embedded request templates.
func NewTemplateRenderer() (*TemplateRenderer, error) {
	tmpl, err := template.New("integrador").
		Option("missingkey=zero").
		Funcs(template.FuncMap{"xml": escapeXML}).
		ParseFS(templateFS, "templates/*.xml")
	if err != nil {
		return nil, fmt.Errorf("integrador: parse templates: %w", err)
	}
	r := &TemplateRenderer{tmpl: tmpl, names: map[string]string{}}
	for _, t := range tmpl.Templates() {
		if path.Ext(t.Name()) != ".xml" {
			continue
		}
		r.names[commandKey(t.Name())] = t.Name()
	}
	return r, nil
}

// MustTemplateRenderer is NewTemplateRenderer for package-level setup; the
// embedded templates are fixed at build time.
func MustTemplateRenderer() *TemplateRenderer {
	r, err := NewTemplateRenderer()
	if err != nil {
		panic(err)
	}
	return r
}

func (r *TemplateRenderer) Lookup(name string) (string, bool) {
	t, ok := r.names[commandKey(name)]
	return t, ok
}

func (r *TemplateRenderer) Render(w io.Writer, name string, fields Fields) error {
	canonical, ok := r.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	if fields == nil {
		fields = Fields{}
	}
	if err := r.tmpl.ExecuteTemplate(w, canonical, fields); err != nil {
		return fmt.Errorf("integrador: render %s: %w", canonical, err)
	}
	return nil
}

// Commands lists the available commands without the ".xml" suffix.
func (r *TemplateRenderer) Commands() []string {
	out := make([]string, 0, len(r.names))
	for _, t := range r.names {
		out = append(out, strings.TrimSuffix(t, ".xml"))
	}
	sort.Strings(out)
	return out
}

func commandKey(name string) string {
	return strings.TrimSuffix(strings.ToLower(name), ".xml")
}

func escapeXML(s string) (string, error) {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(s)); err != nil {
		return "", err
	}
	return b.String(), nil
}
