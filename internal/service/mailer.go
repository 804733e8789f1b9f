package service

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/jordan-wright/email"
	"github.com/rs/zerolog/log"
)

// Attachment is a file carried by an outgoing email
type Attachment struct {
	Name        string
	Data        []byte
	ContentType string
}

// MailMessage is one HTML email
type MailMessage struct {
	To          string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// MailSender delivers email; the SMTP implementation is SMTPMailer
type MailSender interface {
	Send(ctx context.Context, msg MailMessage) error
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	// Bounds a send when the caller's context has no deadline
	Timeout time.Duration
}

// SMTPMailer composes multipart/mixed messages and hands them to an SMTP server
type SMTPMailer struct {
	cfg  SMTPConfig
	addr string
	auth smtp.Auth
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	m := &SMTPMailer{
		cfg:  cfg,
		addr: net.JoinHostPort(cfg.Host, cfg.Port),
	}
	if cfg.Username != "" {
		m.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return m
}

func (m *SMTPMailer) Enabled() bool {
	return m.cfg.Host != ""
}

func (m *SMTPMailer) Send(ctx context.Context, msg MailMessage) error {
	if !m.Enabled() {
		return fmt.Errorf("smtp host not configured")
	}

	e, err := m.compose(msg)
	if err != nil {
		return err
	}
	raw, err := e.Bytes()
	if err != nil {
		return fmt.Errorf("encoding email to %s: %w", msg.To, err)
	}
	from, err := mail.ParseAddress(e.From)
	if err != nil {
		return fmt.Errorf("invalid sender %q: %w", e.From, err)
	}

	if err := m.deliver(ctx, from.Address, msg.To, raw); err != nil {
		if ctxErr := expired(ctx); ctxErr != nil {
			return fmt.Errorf("sending email to %s: %w", msg.To, ctxErr)
		}
		return fmt.Errorf("failed to send email to %s: %w", msg.To, err)
	}

	log.Info().Str("to", msg.To).Str("subject", msg.Subject).Int("attachments", len(msg.Attachments)).Msg("Email sent")
	return nil
}

// deliver runs one SMTP session on a connection whose deadline follows ctx,
// so a stalled server fails the send instead of holding it open.
func (m *SMTPMailer) deliver(ctx context.Context, from, to string, raw []byte) error {
	dialer := net.Dialer{Timeout: m.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", m.addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(m.cfg.Timeout)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
			return err
		}
	}
	if m.auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(m.auth); err != nil {
				return err
			}
		}
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(raw); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// expired reports ctx as done once its deadline has passed, even if the
// connection deadline fired a moment before the context timer did
func expired(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
		return context.DeadlineExceeded
	}
	return nil
}

func (m *SMTPMailer) compose(msg MailMessage) (*email.Email, error) {
	e := email.NewEmail()
	e.From = m.cfg.From
	e.To = []string{msg.To}
	e.Subject = msg.Subject
	e.HTML = []byte(msg.HTML)

	for _, a := range msg.Attachments {
		ctype := a.ContentType
		if ctype == "" {
			ctype = mimetype.Detect(a.Data).String()
		}
		if _, err := e.Attach(bytes.NewReader(a.Data), a.Name, ctype); err != nil {
			return nil, fmt.Errorf("attaching %s: %w", a.Name, err)
		}
	}
	return e, nil
}
