package sender

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SMTPConfig configures the SMTP transport.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

type SMTPSender struct {
	cfg    SMTPConfig
	dialer *net.Dialer
}

func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("EMAIL_HOST not set")
	}
	if cfg.Port == "" {
		return nil, fmt.Errorf("EMAIL_PORT not set")
	}
	if cfg.Username == "" {
		return nil, fmt.Errorf("EMAIL_USER not set")
	}
	if cfg.Password == "" {
		return nil, fmt.Errorf("EMAIL_PASS not set")
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}

	return &SMTPSender{cfg: cfg, dialer: &net.Dialer{Timeout: 10 * time.Second}}, nil
}

// BuildMessage renders a plain-text RFC 5322 message.
func BuildMessage(from, to, subject, messageID, body string) []byte {
	return []byte(
		"From: " + from + "\r\n" +
			"To: " + to + "\r\n" +
			"Subject: " + subject + "\r\n" +
			"Message-ID: <" + messageID + ">\r\n" +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/plain; charset=UTF-8\r\n" +
			"\r\n" +
			strings.ReplaceAll(body, "\n", "\r\n"),
	)
}

// SendEmail delivers one message, upgrading to STARTTLS when the server offers it.
// The context deadline bounds the whole SMTP conversation.
func (s *SMTPSender) SendEmail(ctx context.Context, to, subject, body string) (SendResult, error) {
	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)
	conn, err := s.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return SendResult{}, fmt.Errorf("smtp dial failed: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return SendResult{}, fmt.Errorf("smtp handshake failed: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return SendResult{}, fmt.Errorf("smtp starttls failed: %w", err)
		}
	}
	if ok, _ := c.Extension("AUTH"); ok {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := c.Auth(auth); err != nil {
			return SendResult{}, fmt.Errorf("smtp auth failed: %w", err)
		}
	}

	messageID := uuid.NewString() + "@" + s.cfg.Host
	if err := c.Mail(s.cfg.From); err != nil {
		return SendResult{}, fmt.Errorf("smtp send failed: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return SendResult{}, fmt.Errorf("smtp send failed: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return SendResult{}, fmt.Errorf("smtp send failed: %w", err)
	}
	if _, err := w.Write(BuildMessage(s.cfg.From, to, subject, messageID, body)); err != nil {
		return SendResult{}, fmt.Errorf("smtp send failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return SendResult{}, fmt.Errorf("smtp send failed: %w", err)
	}
	if err := c.Quit(); err != nil {
		return SendResult{}, fmt.Errorf("smtp quit failed: %w", err)
	}

	return SendResult{
		MessageID: messageID,
		SentAt:    time.Now(),
	}, nil
}
