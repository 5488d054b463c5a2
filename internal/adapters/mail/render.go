// Package mail renders applicant mails and sends them over SMTP.
package mail

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

// Template names an embedded mail template.
type Template string

// Templates.
const (
	TemplateReceived Template = "received"
	TemplatePass     Template = "pass"
	TemplateFail     Template = "fail"
)

// ErrUnknownTemplate is returned for template names that are not embedded.
var ErrUnknownTemplate = errors.New("unknown mail template")

var subjects = map[Template]string{ //nolint:gochecknoglobals // fixed lookup
	TemplateReceived: "We received your volunteer application",
	TemplatePass:     "Your application result: welcome aboard",
	TemplateFail:     "Your application result",
}

// Data feeds a template.
type Data struct {
	Name          string
	ApplicationID string
	Email         string
	NextURL       string
	// Reason is plain text; "|" starts a new line.
	Reason string
}

// Message is a rendered mail.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Renderer holds the parsed templates.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	t, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}
	return &Renderer{tmpl: t}, nil
}

// ParseTemplate validates a template name.
func ParseTemplate(name string) (Template, bool) {
	t := Template(strings.TrimSuffix(name, ".html"))
	_, ok := subjects[t]
	return t, ok
}

// Render builds the message for to.
func (r *Renderer) Render(name Template, to string, d Data) (Message, error) {
	subject, ok := subjects[name]
	if !ok {
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	var buf bytes.Buffer
	err := r.tmpl.ExecuteTemplate(&buf, string(name)+".html", map[string]any{
		"Name":          d.Name,
		"ApplicationID": d.ApplicationID,
		"Email":         d.Email,
		"NextURL":       d.NextURL,
		"Reason":        reasonHTML(d.Reason),
	})
	if err != nil {
		return Message{}, fmt.Errorf("render %s: %w", name, err)
	}
	return Message{To: to, Subject: subject, HTML: buf.String()}, nil
}

func reasonHTML(reason string) template.HTML {
	parts := strings.Split(reason, "|")
	for i, p := range parts {
		parts[i] = template.HTMLEscapeString(strings.TrimSpace(p))
	}
	return template.HTML(strings.Join(parts, "<br>")) //nolint:gosec // parts are escaped above
}
