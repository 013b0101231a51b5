package services

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/mailgun/mailgun-go/v4"
	"github.com/username/qualitax/backend/src/config"
	"github.com/username/qualitax/backend/src/logger"
)

// EmailService delivers the two account-lifecycle mails. The provider is
// chosen from configuration; an incomplete configuration falls back to the
// mock so a missing API key never takes the service down.
type EmailService interface {
	SendVerificationEmail(toEmail, username, token string) error
	SendPasswordResetEmail(toEmail, username, token string) error
}

func NewEmailService() EmailService {
	if config.Cfg == nil {
		logger.L.Error("Configuration not loaded; email service defaulting to mock")
		return &MockEmailService{}
	}

	provider := strings.ToLower(config.Cfg.EmailServiceProvider)
	logger.L.Info("Initializing email service", "provider", provider)

	switch provider {
	case "mailgun":
		if config.Cfg.MailgunDomain == "" || config.Cfg.MailgunPrivateAPIKey == "" || config.Cfg.SenderEmail == "" {
			logger.L.Warn("Mailgun configuration incomplete; falling back to MockEmailService")
			return &MockEmailService{}
		}
		return &MailgunEmailService{
			mg:          mailgun.NewMailgun(config.Cfg.MailgunDomain, config.Cfg.MailgunPrivateAPIKey),
			senderEmail: config.Cfg.SenderEmail,
			senderName:  config.Cfg.SenderName,
		}
	case "smtp":
		if config.Cfg.SMTPServer == "" || config.Cfg.SMTPUser == "" {
			logger.L.Warn("SMTP configuration incomplete; falling back to MockEmailService")
			return &MockEmailService{}
		}
		return &SMTPEmailService{
			server:      config.Cfg.SMTPServer,
			port:        config.Cfg.SMTPPort,
			user:        config.Cfg.SMTPUser,
			password:    config.Cfg.SMTPPassword,
			senderEmail: config.Cfg.SenderEmail,
		}
	default:
		return &MockEmailService{}
	}
}

func verificationBody(username, token string) (subject, body string) {
	link := fmt.Sprintf("%s?token=%s", config.Cfg.VerificationEmailBaseURL, token)
	subject = "Verifique su correo para Qualitax"
	body = fmt.Sprintf(`Hola %s,

Para activar su cuenta de Qualitax, verifique su dirección de correo en el siguiente enlace:
%s

Si usted no creó esta cuenta, ignore este mensaje.

Equipo Qualitax`, username, link)
	return subject, body
}

func passwordResetBody(username, token string) (subject, body string) {
	link := fmt.Sprintf("%s?token=%s", config.Cfg.PasswordResetBaseURL, token)
	subject = "Restablecimiento de contraseña Qualitax"
	body = fmt.Sprintf(`Hola %s,

Se solicitó un restablecimiento de contraseña para su cuenta Qualitax.
Puede definir una nueva contraseña en el siguiente enlace:
%s

Si usted no lo solicitó, ignore este mensaje. El enlace expira en %s.

Equipo Qualitax`, username, link, config.Cfg.PasswordResetTokenExpiry.String())
	return subject, body
}

type MailgunEmailService struct {
	mg          mailgun.Mailgun
	senderEmail string
	senderName  string
}

func (s *MailgunEmailService) send(toEmail, subject, body string) error {
	from := fmt.Sprintf("%s <%s>", s.senderName, s.senderEmail)
	message := s.mg.NewMessage(from, subject, body, toEmail)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	resp, id, err := s.mg.Send(ctx, message)
	if err != nil {
		logger.L.Error("Failed to send email via Mailgun", "error", err, "to", toEmail, "mailgunResp", resp)
		return fmt.Errorf("mailgun send failed: %w", err)
	}
	logger.L.Info("Email sent via Mailgun", "to", toEmail, "id", id)
	return nil
}

func (s *MailgunEmailService) SendVerificationEmail(toEmail, username, token string) error {
	subject, body := verificationBody(username, token)
	return s.send(toEmail, subject, body)
}

func (s *MailgunEmailService) SendPasswordResetEmail(toEmail, username, token string) error {
	subject, body := passwordResetBody(username, token)
	return s.send(toEmail, subject, body)
}

type SMTPEmailService struct {
	server      string
	port        int
	user        string
	password    string
	senderEmail string
}

func (s *SMTPEmailService) send(toEmail, subject, body string) error {
	headers := map[string]string{
		"From":         s.senderEmail,
		"To":           toEmail,
		"Subject":      subject,
		"MIME-version": "1.0",
		"Content-Type": `text/plain; charset="UTF-8"`,
	}
	var message strings.Builder
	for k, v := range headers {
		fmt.Fprintf(&message, "%s: %s\r\n", k, v)
	}
	message.WriteString("\r\n" + body)

	auth := smtp.PlainAuth("", s.user, s.password, s.server)
	addr := fmt.Sprintf("%s:%d", s.server, s.port)
	if err := smtp.SendMail(addr, auth, s.senderEmail, []string{toEmail}, []byte(message.String())); err != nil {
		logger.L.Error("Failed to send email via SMTP", "error", err, "to", toEmail)
		return fmt.Errorf("smtp send failed: %w", err)
	}
	logger.L.Info("Email sent via SMTP", "to", toEmail)
	return nil
}

func (s *SMTPEmailService) SendVerificationEmail(toEmail, username, token string) error {
	subject, body := verificationBody(username, token)
	return s.send(toEmail, subject, body)
}

func (s *SMTPEmailService) SendPasswordResetEmail(toEmail, username, token string) error {
	subject, body := passwordResetBody(username, token)
	return s.send(toEmail, subject, body)
}

// MockEmailService logs instead of sending. Used in development and as the
// fallback when provider configuration is incomplete.
type MockEmailService struct{}

func (s *MockEmailService) SendVerificationEmail(toEmail, username, token string) error {
	logger.L.Info("MOCK: verification email", "to", toEmail, "username", username, "token", token)
	return nil
}

func (s *MockEmailService) SendPasswordResetEmail(toEmail, username, token string) error {
	logger.L.Info("MOCK: password reset email", "to", toEmail, "username", username, "token", token)
	return nil
}
