// Package render provides the default template renderer for error pages. It
// uses html/template with the sprig function library and ships the
// "layout/layout" and "errhero/error-default" templates.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/Masterminds/sprig/v3"

	"github.com/strongdm/errhero/pkg/errhero"
)

//go:embed templates
var defaultTemplates embed.FS

// Ext is the file extension of template files.
const Ext = ".html"

// Option configures a TemplateRenderer.
type Option func(*options)

type options struct {
	fsys []fs.FS
	data map[string]any
}

// WithFS adds templates from fsys. A template whose name matches a default
// replaces it. Names are slash paths without Ext.
func WithFS(fsys fs.FS) Option {
	return func(o *options) {
		o.fsys = append(o.fsys, fsys)
	}
}

// WithData sets values passed to every template next to .Content.
func WithData(data map[string]any) Option {
	return func(o *options) {
		o.data = data
	}
}

// TemplateRenderer implements errhero.Renderer.
type TemplateRenderer struct {
	templates map[string]*template.Template
	data      map[string]any

	mu     sync.Mutex
	layout string
}

var _ errhero.Renderer = (*TemplateRenderer)(nil)

// New parses the default templates and any added through WithFS.
func New(opts ...Option) (*TemplateRenderer, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	defaults, err := fs.Sub(defaultTemplates, "templates")
	if err != nil {
		return nil, err
	}

	r := &TemplateRenderer{
		templates: make(map[string]*template.Template),
		data:      o.data,
	}
	for _, fsys := range append([]fs.FS{defaults}, o.fsys...) {
		if err := r.load(fsys); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *TemplateRenderer) load(fsys fs.FS) error {
	return fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != Ext {
			return nil
		}
		src, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("read template %s: %w", p, err)
		}
		name := strings.TrimSuffix(p, Ext)
		t, err := template.New(name).Funcs(sprig.HtmlFuncMap()).Parse(string(src))
		if err != nil {
			return fmt.Errorf("parse template %s: %w", p, err)
		}
		r.templates[name] = t
		return nil
	})
}

// Has reports whether a template named name was loaded.
func (r *TemplateRenderer) Has(name string) bool {
	_, ok := r.templates[name]
	return ok
}

// SetLayout selects the layout for subsequent renders. An empty name
// renders views without a layout.
func (r *TemplateRenderer) SetLayout(name string) {
	r.mu.Lock()
	r.layout = name
	r.mu.Unlock()
}

// Render renders view and wraps it in the active layout as .Content.
func (r *TemplateRenderer) Render(view string) (string, error) {
	r.mu.Lock()
	layout := r.layout
	r.mu.Unlock()

	data := make(map[string]any, len(r.data)+1)
	for k, v := range r.data {
		data[k] = v
	}

	content, err := r.execute(view, data)
	if err != nil {
		return "", err
	}
	if layout == "" {
		return content, nil
	}
	data["Content"] = template.HTML(content)
	return r.execute(layout, data)
}

func (r *TemplateRenderer) execute(name string, data map[string]any) (string, error) {
	t, ok := r.templates[name]
	if !ok {
		return "", fmt.Errorf("template %q not found", name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template %q: %w", name, err)
	}
	return buf.String(), nil
}
