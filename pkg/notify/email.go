package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/noah-isme/stars-api/pkg/config"
)

type sendMailFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// EmailSender mails <username>@<domain> through an SMTP relay.
type EmailSender struct {
	addr     string
	auth     smtp.Auth
	from     string
	domain   string
	sendMail sendMailFunc
}

// NewEmailSender builds an SMTP sender. Credentials are optional.
func NewEmailSender(cfg config.SMTPConfig) (*EmailSender, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("smtp host is required for the email channel")
	}
	if strings.TrimSpace(cfg.MailDomain) == "" {
		return nil, fmt.Errorf("mail domain is required for the email channel")
	}
	sender := &EmailSender{
		addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		from:     cfg.From,
		domain:   strings.TrimPrefix(cfg.MailDomain, "@"),
		sendMail: smtp.SendMail,
	}
	if cfg.Username != "" {
		sender.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return sender, nil
}

// Name implements Sender.
func (s *EmailSender) Name() string { return ChannelEmail }

// Send implements Sender.
func (s *EmailSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to := s.Recipient(msg.Username)
	if err := s.sendMail(s.addr, s.auth, s.from, []string{to}, s.compose(to, msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

// Recipient maps a username to its mailbox.
func (s *EmailSender) Recipient(username string) string {
	return strings.ToLower(username) + "@" + s.domain
}

func (s *EmailSender) compose(to string, msg Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + s.from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString("Dear " + msg.Username + ",\r\n\r\n")
	b.WriteString(msg.Body + "\r\n")
	return []byte(b.String())
}
