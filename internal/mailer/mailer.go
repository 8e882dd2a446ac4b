package mailer

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"

	"campus_echo/internal/config"
	"campus_echo/internal/models"

	"gopkg.in/gomail.v2"
)

//go:embed templates/*.html
var templatesFS embed.FS

var ErrUnknownPurpose = errors.New("unknown message purpose")

type letter struct {
	subject  string
	template string
}

var letters = map[string]letter{
	models.PurposeVerification:  {subject: "Email Verification - Campus Echo", template: "verification.html"},
	models.PurposePasswordReset: {subject: "Password Reset - Campus Echo", template: "password_reset.html"},
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type Mailer struct {
	dialer dialer
	from   string
	tmpl   *template.Template
}

func New(cfg config.Mail) (*Mailer, error) {
	const op = "mailer.New"

	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	from := cfg.From
	if from == "" {
		from = cfg.Username
	}

	return &Mailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   from,
		tmpl:   tmpl,
	}, nil
}

// * Render собирает тему и HTML тело письма по его назначению
func (m *Mailer) Render(msg models.Message) (subject, body string, err error) {
	l, ok := letters[msg.Purpose]
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnknownPurpose, msg.Purpose)
	}

	name := msg.Name
	if name == "" {
		name = msg.Email
	}

	var buf bytes.Buffer
	if err := m.tmpl.ExecuteTemplate(&buf, l.template, map[string]string{
		"Name": name,
		"Link": msg.Link,
	}); err != nil {
		return "", "", fmt.Errorf("failed to execute template %s: %w", l.template, err)
	}

	return l.subject, buf.String(), nil
}

func (m *Mailer) Send(msg models.Message) error {
	const op = "mailer.Send"

	subject, body, err := m.Render(msg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.Email)
	gm.SetHeader("Subject", subject)
	gm.SetBody("text/html", body)

	if err := m.dialer.DialAndSend(gm); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
