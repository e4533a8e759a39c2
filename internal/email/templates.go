package email

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/dustin/go-humanize"
)

//go:embed templates/*
var files embed.FS

// Template names.
const (
	Activation = "activation"
	Reset      = "reset"
	Invite     = "invite"
	Reminder   = "reminder"
	Bounce     = "bounce"
	OpsReport  = "ops_report"
)

var funcs = map[string]interface{}{
	"reltime": func(t, now time.Time) string {
		return humanize.RelTime(t, now, "ago", "from now")
	},
	"minutes": Until,
	"datetime": func(t time.Time) string {
		return t.Format("Mon, 02 Jan 2006 15:04 MST")
	},
	"join": strings.Join,
}

// Until words a lead time in minutes: "now", "in 30 minutes", "in 1 day".
func Until(minutes int) string {
	if minutes <= 0 {
		return "now"
	}
	var zero time.Time
	d := time.Duration(minutes) * time.Minute
	return "in " + strings.TrimSpace(humanize.RelTime(zero, zero.Add(d), "", ""))
}

// Templates renders the embedded email templates. Each name has a .txt file
// defining "subject" and the text body, and optionally a .html body.
type Templates struct {
	text *texttemplate.Template
	html *htmltemplate.Template
}

func NewTemplates() (*Templates, error) {
	text, err := texttemplate.New("").Funcs(funcs).ParseFS(files, "templates/*.txt")
	if err != nil {
		return nil, fmt.Errorf("failed to parse text templates: %w", err)
	}
	html, err := htmltemplate.New("").Funcs(funcs).ParseFS(files, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse html templates: %w", err)
	}
	return &Templates{text: text, html: html}, nil
}

// Render fills the subject and bodies of a Mail from the named template.
func (t *Templates) Render(name string, data interface{}) (*Mail, error) {
	var subject, text, html bytes.Buffer

	if err := t.text.ExecuteTemplate(&subject, name+".subject", data); err != nil {
		return nil, fmt.Errorf("failed to render %s subject: %w", name, err)
	}
	if err := t.text.ExecuteTemplate(&text, name+".txt", data); err != nil {
		return nil, fmt.Errorf("failed to render %s text: %w", name, err)
	}
	if tpl := t.html.Lookup(name + ".html"); tpl != nil {
		if err := tpl.Execute(&html, data); err != nil {
			return nil, fmt.Errorf("failed to render %s html: %w", name, err)
		}
	}

	return &Mail{
		Subject: strings.TrimSpace(subject.String()),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
