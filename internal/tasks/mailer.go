package tasks

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"
)

type Mailer interface {
	Send(to []string, subject, body string) error
}

type SMTPMailer struct {
	addr string
	from string
	auth smtp.Auth
}

func NewSMTPMailer(host, port, username, password, from string) *SMTPMailer {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPMailer{
		addr: host + ":" + port,
		from: from,
		auth: auth,
	}
}

func (m *SMTPMailer) Send(to []string, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		m.from, strings.Join(to, ", "), subject, body)
	return smtp.SendMail(m.addr, m.auth, m.from, to, []byte(msg))
}

// LogMailer stands in when SMTP is not configured; it just logs the mail.
type LogMailer struct{}

func (LogMailer) Send(to []string, subject, body string) error {
	log.Printf("Mail (not sent, SMTP unconfigured) to=%v subject=%q", to, subject)
	return nil
}
