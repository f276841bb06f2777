package notify

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/model"
)

type SMTPConfig struct {
	Host string
	Port string
	From string
}

// EmailChannel sends a plain-text mail over unauthenticated SMTP. A customer channel mails the
// address on the booking; an operator channel mails the configured operator inbox.
type EmailChannel struct {
	cfg      SMTPConfig
	audience Audience
	operator string
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailChannel(cfg SMTPConfig, audience Audience, operatorAddr string) *EmailChannel {
	cfg.Host = strings.TrimSpace(cfg.Host)
	cfg.Port = strings.TrimSpace(cfg.Port)
	cfg.From = strings.TrimSpace(cfg.From)
	if cfg.Port == "" {
		cfg.Port = "25"
	}
	if cfg.From == "" {
		cfg.From = "bookings@sevabook.local"
	}
	return &EmailChannel{
		cfg:      cfg,
		audience: audience,
		operator: strings.TrimSpace(operatorAddr),
		sendMail: smtp.SendMail,
	}
}

func (c *EmailChannel) Name() string       { return "email-" + string(c.audience) }
func (c *EmailChannel) Audience() Audience { return c.audience }

func (c *EmailChannel) Send(ctx context.Context, s model.Summary) error {
	if c.cfg.Host == "" {
		return fmt.Errorf("%w: smtp host", ErrNotConfigured)
	}
	to, subject, body := s.Email, customerSubject(s), customerText(s)
	if c.audience == AudienceOperator {
		to, subject, body = c.operator, operatorSubject(s), operatorText(s)
	}
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("%w: recipient", ErrNotConfigured)
	}

	// net/smtp has no context support; honour cancellation that already happened.
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := buildMessage(c.cfg.From, to, subject, body)
	return c.sendMail(c.cfg.Host+":"+c.cfg.Port, nil, c.cfg.From, []string{to}, []byte(msg))
}

func buildMessage(from, to, subject, body string) string {
	body = strings.ReplaceAll(body, "\n", "\r\n")
	return fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		from,
		to,
		mime.QEncoding.Encode("utf-8", subject),
		body,
	)
}
