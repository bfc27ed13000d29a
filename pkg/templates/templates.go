package templates

import (
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/tutorboard/notifier/pkg/broadcast"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// RenderedEmail is the output of rendering one notification email.
type RenderedEmail struct {
	Subject  string
	BodyHTML string
}

// Renderer maps a broadcast kind plus per-recipient data to a rendered
// email. Rendering is pure: no I/O, no side effects.
type Renderer struct {
	bodies   *template.Template
	subjects map[broadcast.Kind]*template.Template
}

// Subject line templates per kind. Kept next to the kind switch in
// bodyTemplateName so adding a kind touches one place.
var subjectSources = map[broadcast.Kind]string{
	broadcast.KindNewJob:       `New job posting: {{.Title}}`,
	broadcast.KindAnnouncement: `{{.Title}}`,
}

// bodyTemplateName resolves a kind to its body template. The exhaustive
// switch over the closed Kind set means a new kind without a template is a
// visible gap here, not a runtime string lookup miss.
func bodyTemplateName(kind broadcast.Kind) (string, error) {
	switch kind {
	case broadcast.KindNewJob:
		return "new_job.html.tmpl", nil
	case broadcast.KindAnnouncement:
		return "announcement.html.tmpl", nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// New parses the embedded template set. It panics only on programmer error
// (malformed embedded templates), which is caught by the package tests.
func New() (*Renderer, error) {
	bodies, err := template.ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse body templates: %w", err)
	}

	subjects := make(map[broadcast.Kind]*template.Template, len(subjectSources))
	for kind, src := range subjectSources {
		tpl, err := template.New(string(kind) + "_subject").Parse(src)
		if err != nil {
			return nil, fmt.Errorf("failed to parse subject template for %q: %w", kind, err)
		}
		subjects[kind] = tpl
	}

	return &Renderer{bodies: bodies, subjects: subjects}, nil
}

// MustNew creates a Renderer that panics on invalid embedded templates,
// failing fast at startup.
func MustNew() *Renderer {
	r, err := New()
	if err != nil {
		panic(err)
	}
	return r
}

// Render produces the subject and HTML body for the given kind. The data
// map carries broadcast fields plus per-recipient context (RecipientName
// and whatever extra context the caller supplied).
func (r *Renderer) Render(kind broadcast.Kind, data map[string]any) (RenderedEmail, error) {
	name, err := bodyTemplateName(kind)
	if err != nil {
		return RenderedEmail{}, err
	}

	subjectTpl, ok := r.subjects[kind]
	if !ok {
		return RenderedEmail{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	var subject strings.Builder
	if err := subjectTpl.Execute(&subject, data); err != nil {
		return RenderedEmail{}, fmt.Errorf("failed to render subject for %q: %w", kind, err)
	}

	var body strings.Builder
	if err := r.bodies.ExecuteTemplate(&body, name, data); err != nil {
		return RenderedEmail{}, fmt.Errorf("failed to render body for %q: %w", kind, err)
	}

	return RenderedEmail{
		Subject:  subject.String(),
		BodyHTML: body.String(),
	}, nil
}
