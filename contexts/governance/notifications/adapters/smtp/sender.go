package smtp

import (
	"context"
	"fmt"

	"psephos/contexts/governance/notifications/domain/entities"

	mail "github.com/wneessen/go-mail"
)

// Config carries the SMTP settings from the platform config.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	NoTLS    bool
}

// Sender delivers snapshotted messages over SMTP. A fresh client per send
// keeps the worker free of connection state between batches.
type Sender struct {
	cfg Config
}

func NewSender(cfg Config) *Sender {
	return &Sender{cfg: cfg}
}

func (s *Sender) Send(ctx context.Context, message entities.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := mail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return fmt.Errorf("set mail sender: %w", err)
	}
	if err := msg.To(message.Recipient); err != nil {
		return fmt.Errorf("set mail recipient: %w", err)
	}
	msg.Subject(message.Subject)
	msg.SetCharset(mail.CharsetUTF8)
	if message.TextBody != "" {
		msg.SetBodyString(mail.TypeTextPlain, message.TextBody)
		if message.HTMLBody != "" {
			msg.AddAlternativeString(mail.TypeTextHTML, message.HTMLBody)
		}
	} else {
		msg.SetBodyString(mail.TypeTextHTML, message.HTMLBody)
	}

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithUsername(s.cfg.Username),
		mail.WithPassword(s.cfg.Password),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
	}
	if s.cfg.NoTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}
	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
