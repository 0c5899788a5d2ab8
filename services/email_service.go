// services/email_service.go
package services

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

// Mailer is the outbound email capability. Callers treat delivery as
// best-effort: a failed send is logged and swallowed, it never fails the
// operation that requested it.
type Mailer interface {
	SendVerificationCodeEmail(email, name, username, code string) error
}

type emailService struct {
	dialer *gomail.Dialer
	from   string
}

func NewEmailService(smtpHost string, smtpPort int, smtpUser, smtpPassword, fromEmail string) Mailer {
	return &emailService{
		dialer: gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPassword),
		from:   fromEmail,
	}
}

func (s *emailService) SendVerificationCodeEmail(email, name, username, code string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", email)
	m.SetHeader("Subject", "Your Proofly verification code")

	body := fmt.Sprintf(`
		<h2>Hi %s,</h2>
		<p>Welcome to Proofly! Your username is <strong>@%s</strong>.</p>
		<p>Enter this code to verify your account:</p>
		<h1 style="letter-spacing: 4px;">%s</h1>
		<p>The code expires in 15 minutes. If you didn't sign up, you can ignore this email.</p>
		<p>— The Proofly Team</p>
	`, name, username, code)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}
	return nil
}
