package service

import (
	"errors"
	"fmt"
	"html/template"
	"strings"

	"rendiconto/config"

	"gopkg.in/gomail.v2"
)

// ErrEmailDisabled returned when SMTP delivery is switched off in config
var ErrEmailDisabled = errors.New("servizio email non abilitato (email.enabled=false)")

// ResetMailer delivers password reset links
type ResetMailer interface {
	SendPasswordResetEmail(toEmail, fullName, resetLink string) error
}

// EmailService SMTP delivery through gomail
type EmailService struct {
	cfg *config.EmailConfig
}

// NewEmailService creates the SMTP mailer
func NewEmailService(cfg *config.EmailConfig) *EmailService {
	return &EmailService{cfg: cfg}
}

// ResetLink builds the frontend link carrying the token
func (s *EmailService) ResetLink(token string) string {
	base := s.cfg.ResetURL
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "token=" + token
}

// SendPasswordResetEmail sends the reset link to a user
func (s *EmailService) SendPasswordResetEmail(toEmail, fullName, resetLink string) error {
	if !s.cfg.Enabled {
		return ErrEmailDisabled
	}

	body, err := s.generateResetEmailBody(fullName, resetLink)
	if err != nil {
		return err
	}
	return s.sendEmail(toEmail, "[Rendiconto] Reimpostazione password", body)
}

var resetEmailTemplate = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; background: #f5f5f5; padding: 20px;">
    <div style="max-width: 600px; margin: 0 auto; background: #fff; border-radius: 8px; padding: 30px;">
        <h2 style="color: #1d4ed8;">Rendiconto</h2>
        <p>Gentile <strong>{{.Name}}</strong>,</p>
        <p>abbiamo ricevuto una richiesta di reimpostazione della password del tuo account.</p>
        <p style="text-align: center;">
            <a href="{{.Link}}" style="background: #1d4ed8; color: #fff; padding: 12px 32px; border-radius: 6px; text-decoration: none;">Reimposta password</a>
        </p>
        <p style="color: #856404;">Il link è valido per <strong>{{.Minutes}} minuti</strong>. Se non hai richiesto la reimpostazione ignora questa email.</p>
        <p style="font-size: 12px; word-break: break-all;">{{.Link}}</p>
    </div>
</body>
</html>
`))

func (s *EmailService) generateResetEmailBody(fullName, resetLink string) (string, error) {
	var b strings.Builder
	err := resetEmailTemplate.Execute(&b, struct {
		Name    string
		Link    string
		Minutes int
	}{fullName, resetLink, 30})
	if err != nil {
		return "", fmt.Errorf("composizione email fallita: %w", err)
	}
	return b.String(), nil
}

func (s *EmailService) sendEmail(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.cfg.From, "Rendiconto"))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("invio email fallito: %w", err)
	}
	return nil
}
