package worker

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/Priya8975/alert-notifications/internal/config"
)

// ErrSMTPNotConfigured is returned for email deliveries when no SMTP server
// is configured.
var ErrSMTPNotConfigured = errors.New("smtp not configured")

// EmailSender delivers a message to a single receiver.
type EmailSender interface {
	Send(ctx context.Context, to, subject string, body []byte) error
}

const defaultSMTPTimeout = 30 * time.Second

// SMTPSender sends mail through the server in config.SMTPConfig. Every
// exchange is bounded by the configured timeout or the context deadline,
// whichever comes first.
type SMTPSender struct {
	cfg    config.SMTPConfig
	host   string
	auth   smtp.Auth
	dialer net.Dialer
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSMTPTimeout
	}
	host, _, err := net.SplitHostPort(cfg.Addr)
	if err != nil {
		host = cfg.Addr
	}
	s := &SMTPSender{cfg: cfg, host: host}
	if cfg.Username != "" {
		s.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, host)
	}
	return s
}

func (s *SMTPSender) Send(ctx context.Context, to, subject string, body []byte) error {
	if s.cfg.Addr == "" {
		return ErrSMTPNotConfigured
	}

	conn, err := s.dialer.DialContext(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("connecting to smtp server %s: %w", s.cfg.Addr, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(s.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("setting smtp deadline: %w", err)
	}
	// Cancellation without a deadline still unblocks the exchange.
	stop := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Now()) })
	defer stop()

	msg := buildMessage(s.cfg.From, to, subject, body)
	if err := s.exchange(conn, to, msg); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("sending mail to %s: %w", to, ctxErr)
		}
		return fmt.Errorf("sending mail to %s: %w", to, err)
	}
	return nil
}

func (s *SMTPSender) exchange(conn net.Conn, to string, msg []byte) error {
	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return fmt.Errorf("creating smtp client: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
			return fmt.Errorf("starting tls: %w", err)
		}
	}

	if s.auth != nil {
		if ok, _ := client.Extension("AUTH"); !ok {
			return errors.New("smtp server does not support AUTH")
		}
		if err := client.Auth(s.auth); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("setting sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("setting recipient %s: %w", to, err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("opening data writer: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finishing message: %w", err)
	}
	return client.Quit()
}

func buildMessage(from, to, subject string, body []byte) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", sanitizeHeader(subject))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.Write(body)
	return []byte(b.String())
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}
