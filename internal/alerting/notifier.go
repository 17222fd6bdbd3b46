package alerting

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Notifier delivers a single email. Implementations report failures to the
// caller and never retry on their own.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPOptions parameterise the outbound mail transport.
type SMTPOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPNotifier sends plain-text mail over SMTP.
type SMTPNotifier struct {
	opts   SMTPOptions
	logger zerolog.Logger
	// send is swappable for tests.
	send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPNotifier constructs an SMTP mail notifier.
func NewSMTPNotifier(opts SMTPOptions, logger zerolog.Logger) *SMTPNotifier {
	if opts.Port <= 0 {
		opts.Port = 587
	}
	return &SMTPNotifier{
		opts:   opts,
		logger: logger.With().Str("component", "smtp_notifier").Logger(),
		send:   smtp.SendMail,
	}
}

// Send delivers one message and returns once the server has accepted it.
func (n *SMTPNotifier) Send(ctx context.Context, to, subject, body string) error {
	if n.opts.Host == "" {
		return errors.New("smtp host not configured")
	}
	if n.opts.From == "" {
		return errors.New("smtp from address not configured")
	}
	if to == "" {
		return errors.New("recipient address required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if n.opts.Username != "" {
		auth = smtp.PlainAuth("", n.opts.Username, n.opts.Password, n.opts.Host)
	}

	addr := net.JoinHostPort(n.opts.Host, strconv.Itoa(n.opts.Port))
	msg := buildMessage(n.opts.From, to, subject, body)

	if err := n.send(addr, auth, n.opts.From, []string{to}, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}

	n.logger.Info().Str("to", to).Str("subject", subject).Msg("mail delivered")
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}

var _ Notifier = (*SMTPNotifier)(nil)
