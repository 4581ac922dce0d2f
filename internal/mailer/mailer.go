// Package mailer sends transactional mail over SMTP. Every send is
// fire-and-forget: delivery failures are logged and must never fail the
// surrounding request.
package mailer

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/lexia-platform/auth-service/internal/config"
	gomail "gopkg.in/mail.v2"
)

type Mailer interface {
	SendVerificationEmail(to, nombre, token string)
	SendPasswordResetEmail(to, nombre, token string)
	SendTwoFactorEnabledEmail(to, nombre string)
}

type smtpMailer struct {
	dialer      *gomail.Dialer
	from        string
	frontendURL string
	enabled     bool
}

func New(cfg *config.Config) Mailer {
	m := &smtpMailer{
		from:        cfg.SMTPFrom,
		frontendURL: cfg.FrontendURL,
		enabled:     cfg.SMTPHost != "" && cfg.SMTPUser != "",
	}
	if m.enabled {
		m.dialer = gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
		m.dialer.Timeout = 10 * time.Second
	} else {
		slog.Warn("SMTP not configured, transactional emails disabled")
	}
	return m
}

func (m *smtpMailer) SendVerificationEmail(to, nombre, token string) {
	url := fmt.Sprintf("%s/verify-email?token=%s", m.frontendURL, token)
	body := fmt.Sprintf(`
		<h2>Hola %s,</h2>
		<p>Gracias por registrarte en LexIA. Verifica tu email haciendo clic en el siguiente enlace:</p>
		<p><a href="%s">Verificar mi email</a></p>
		<p>El enlace expira en 24 horas.</p>`, nombre, url)
	m.send(to, "Verifica tu email - LexIA", body)
}

func (m *smtpMailer) SendPasswordResetEmail(to, nombre, token string) {
	url := fmt.Sprintf("%s/reset-password?token=%s", m.frontendURL, token)
	body := fmt.Sprintf(`
		<h2>Hola %s,</h2>
		<p>Recibimos una solicitud para restablecer tu contraseña:</p>
		<p><a href="%s">Restablecer contraseña</a></p>
		<p>El enlace expira en 1 hora. Si no solicitaste este cambio, ignora este mensaje.</p>`, nombre, url)
	m.send(to, "Recupera tu contraseña - LexIA", body)
}

func (m *smtpMailer) SendTwoFactorEnabledEmail(to, nombre string) {
	body := fmt.Sprintf(`
		<h2>Hola %s,</h2>
		<p>La autenticación de dos factores fue habilitada en tu cuenta.</p>
		<p>Si no fuiste tú, contacta con soporte inmediatamente.</p>`, nombre)
	m.send(to, "2FA habilitado - LexIA", body)
}

func (m *smtpMailer) send(to, subject, htmlBody string) {
	if !m.enabled {
		return
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	go func() {
		if err := m.dialer.DialAndSend(msg); err != nil {
			slog.Error("failed to send email", "to", to, "subject", subject, "error", err)
		}
	}()
}
