// Package prompt renders the text sent to the model from validated flow input.
package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/template"

	apperrors "homewise/internal/common/errors"
)

const templateExt = ".tmpl"

// Canonical template names, one per flow plus reminder notifications.
const (
	PredictMaintenance         = "predict-maintenance"
	MaintenanceRecommendations = "maintenance-recommendations"
	Chat                       = "chat"
	ReminderSubject            = "reminder-subject"
	ReminderEmail              = "reminder-email"
	ReminderSMS                = "reminder-sms"
)

//go:embed templates/*.tmpl
var embedded embed.FS

var funcs = template.FuncMap{
	"num":   formatNumber,
	"trim":  strings.TrimSpace,
	"lower": strings.ToLower,
}

// Renderer executes named templates. It is safe for concurrent use once built.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer loads the embedded templates and, when dir is set, overlays every *.tmpl
// found there so a deployment can replace any template by file name.
func NewRenderer(dir string) (*Renderer, error) {
	root := template.New("homewise").Funcs(funcs).Option("missingkey=error")

	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		return nil, fmt.Errorf("open embedded templates: %w", err)
	}
	if err := parseAll(root, sub); err != nil {
		return nil, err
	}

	if dir != "" {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("prompt template dir %s: %w", dir, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("prompt template dir %s is not a directory", dir)
		}
		if err := parseAll(root, os.DirFS(dir)); err != nil {
			return nil, err
		}
	}

	return &Renderer{tmpl: root}, nil
}

// MustNewRenderer is NewRenderer for the embedded set, which cannot fail to parse.
func MustNewRenderer() *Renderer {
	r, err := NewRenderer("")
	if err != nil {
		panic(err)
	}
	return r
}

func parseAll(root *template.Template, fsys fs.FS) error {
	files, err := fs.Glob(fsys, "*"+templateExt)
	if err != nil {
		return fmt.Errorf("list templates: %w", err)
	}
	sort.Strings(files)
	for _, name := range files {
		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read template %s: %w", name, err)
		}
		if _, err := root.New(strings.TrimSuffix(name, templateExt)).Parse(string(body)); err != nil {
			return fmt.Errorf("parse template %s: %w", name, err)
		}
	}
	return nil
}

// Render executes template name against data. Same inputs always give the same bytes.
func (r *Renderer) Render(name string, data any) (string, error) {
	t := r.tmpl.Lookup(name)
	if t == nil {
		return "", apperrors.NewTemplateNotFoundError(name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", apperrors.NewTemplateRenderFailedError(name, err)
	}
	return buf.String(), nil
}

// Has reports whether a template with that name is loaded.
func (r *Renderer) Has(name string) bool {
	return r.tmpl.Lookup(name) != nil
}

// Names lists loaded template names, sorted.
func (r *Renderer) Names() []string {
	var names []string
	for _, t := range r.tmpl.Templates() {
		if t.Name() != r.tmpl.Name() {
			names = append(names, t.Name())
		}
	}
	sort.Strings(names)
	return names
}

// formatNumber prints the shortest decimal form: 60 -> "60", 60.5 -> "60.5", never exponent form.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
