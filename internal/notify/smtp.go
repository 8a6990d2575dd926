package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"time"
)

// SMTPSendFunc is the function signature for handing a message to an SMTP
// server. It exists so tests can capture the outgoing message.
type SMTPSendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// SMTPConfig holds SMTP server settings for the smtp mail backend.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPNotifier delivers email notices through a plain SMTP server.
type SMTPNotifier struct {
	config SMTPConfig
	send   SMTPSendFunc
}

// NewSMTPNotifier creates an SMTP-backed email notifier.
func NewSMTPNotifier(config SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{
		config: config,
		send:   smtp.SendMail,
	}
}

// Name returns the backend name.
func (n *SMTPNotifier) Name() string {
	return "smtp"
}

// Validate checks the notifier configuration.
func (n *SMTPNotifier) Validate(_ context.Context) error {
	if n.config.Host == "" {
		return fmt.Errorf("SMTP host is required")
	}
	if n.config.Port == 0 {
		return fmt.Errorf("SMTP port is required")
	}
	if n.config.From == "" {
		return fmt.Errorf("sender address is required")
	}
	return nil
}

// Send delivers the notice to the principal's mail address as a MIME
// multipart message with HTML and plain-text parts.
func (n *SMTPNotifier) Send(_ context.Context, notice Notice) error {
	return notice.exposeSecret(func(secret string) error {
		msg := n.buildMIMEMessage(notice, secret)

		addr := fmt.Sprintf("%s:%d", n.config.Host, n.config.Port)

		var auth smtp.Auth
		if n.config.Username != "" {
			auth = smtp.PlainAuth("", n.config.Username, n.config.Password, n.config.Host)
		}

		if err := n.send(addr, auth, n.config.From, []string{notice.Endpoint}, msg); err != nil {
			return fmt.Errorf("failed to send mail to %s: %w", notice.Endpoint, err)
		}
		return nil
	})
}

func (n *SMTPNotifier) buildMIMEMessage(notice Notice, secret string) []byte {
	boundary := fmt.Sprintf("----=_Part_%d", time.Now().UnixNano())

	var buf bytes.Buffer

	fmt.Fprintf(&buf, "From: %s\r\n", n.config.From)
	fmt.Fprintf(&buf, "To: %s\r\n", sanitizeHeader(notice.Endpoint))
	fmt.Fprintf(&buf, "Subject: %s\r\n", sanitizeHeader(subject(notice)))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	buf.WriteString("\r\n")

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	buf.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(textBody(notice, secret))
	buf.WriteString("\r\n")

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	buf.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(htmlBody(notice, secret))
	buf.WriteString("\r\n")

	fmt.Fprintf(&buf, "--%s--\r\n", boundary)

	return buf.Bytes()
}
