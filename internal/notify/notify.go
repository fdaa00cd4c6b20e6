/*
Package notify delivers the generated calendar file by email.
*/
package notify

import (
	"fmt"
	"log"
	"time"

	gomail "gopkg.in/mail.v2"
)

// EmailConfig holds SMTP configuration for sending the calendar.
type EmailConfig struct {
	SMTPServer string
	SMTPPort   int
	SMTPUser   string
	SMTPPass   string
	FromEmail  string
	ToEmail    string
	Enabled    bool
}

// EmailSender delivers the generated ICS file via SMTP.
type EmailSender struct {
	cfg  EmailConfig
	send func(m *gomail.Message) error
}

// NewEmailSender creates a sender with the given SMTP configuration.
func NewEmailSender(cfg EmailConfig) *EmailSender {
	return &EmailSender{
		cfg: cfg,
		send: func(m *gomail.Message) error {
			dialer := gomail.NewDialer(cfg.SMTPServer, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
			dialer.Timeout = 10 * time.Second
			return dialer.DialAndSend(m)
		},
	}
}

// SendCalendar mails the ICS file at path as an attachment. A disabled
// configuration is a no-op.
func (s *EmailSender) SendCalendar(path string, eventCount int) error {
	if !s.cfg.Enabled {
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.FromEmail)
	m.SetHeader("To", s.cfg.ToEmail)
	m.SetHeader("Subject", fmt.Sprintf("JPX market calendar (%d events)", eventCount))
	m.SetBody("text/plain", fmt.Sprintf(
		"Attached is the JPX market calendar generated on %s with %d events.",
		time.Now().Format("2006-01-02"), eventCount))
	m.Attach(path)

	if err := s.send(m); err != nil {
		log.Printf("Email error: failed to send calendar to %s: %v", s.cfg.ToEmail, err)
		return err
	}

	log.Printf("Emailed calendar to %s.", s.cfg.ToEmail)
	return nil
}
