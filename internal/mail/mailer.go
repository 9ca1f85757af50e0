// AngelaMos | 2026
// mailer.go

package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/samber/oops"
)

//go:embed templates/*.html
var templateFS embed.FS

type Template string

const (
	TemplateVerifyEmail   Template = "verify_email"
	TemplateResetPassword Template = "reset_password"
)

type Data struct {
	Username string
	Link     string
}

type Message struct {
	To       string
	Subject  string
	Template Template
	Data     Data
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type renderData struct {
	Data
	Product   string
	ExpiresIn string
}

// Renderer turns a Message into an HTML body using the embedded templates.
type Renderer struct {
	templates map[Template]*template.Template
	product   string
	expiresIn time.Duration
}

func NewRenderer(product string, expiresIn time.Duration) (*Renderer, error) {
	r := &Renderer{
		templates: make(map[Template]*template.Template),
		product:   product,
		expiresIn: expiresIn,
	}

	for _, name := range []Template{TemplateVerifyEmail, TemplateResetPassword} {
		tpl, err := template.ParseFS(
			templateFS,
			"templates/layout.html",
			"templates/"+string(name)+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("parse mail template %s: %w", name, err)
		}
		r.templates[name] = tpl
	}

	return r, nil
}

func (r *Renderer) Render(msg Message) (string, error) {
	tpl, ok := r.templates[msg.Template]
	if !ok {
		return "", oops.Code("MAIL_UNKNOWN_TEMPLATE").
			With("template", string(msg.Template)).
			Errorf("unknown mail template")
	}

	var buf bytes.Buffer
	err := tpl.ExecuteTemplate(&buf, "layout.html", renderData{
		Data:      msg.Data,
		Product:   r.product,
		ExpiresIn: humanDuration(r.expiresIn),
	})
	if err != nil {
		return "", oops.Code("MAIL_RENDER_FAILED").
			With("template", string(msg.Template)).
			Wrap(err)
	}

	return buf.String(), nil
}

func humanDuration(d time.Duration) string {
	if d >= time.Hour && d%time.Hour == 0 {
		return fmt.Sprintf("%d hours", int(d.Hours()))
	}
	return fmt.Sprintf("%d minutes", int(d.Minutes()))
}
