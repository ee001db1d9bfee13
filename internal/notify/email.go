package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// EmailConfig configures SMTP delivery.
type EmailConfig struct {
	Enabled  bool   `json:"enabled" envconfig:"SMTP_ENABLED"`
	Host     string `json:"host" envconfig:"SMTP_HOST"`
	Port     int    `json:"port" envconfig:"SMTP_PORT"`
	From     string `json:"from" envconfig:"SMTP_FROM"`
	Username string `json:"username" envconfig:"SMTP_USERNAME"`
	Password string `json:"password" envconfig:"SMTP_PASSWORD"`
}

// EmailChannel sends via SMTP.
type EmailChannel struct {
	cfg EmailConfig
}

// NewEmailChannel creates an email channel.
func NewEmailChannel(cfg EmailConfig) *EmailChannel {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &EmailChannel{cfg: cfg}
}

// Name returns "email".
func (c *EmailChannel) Name() string { return "email" }

// Send delivers one message. The context deadline is not honored by
// net/smtp; the SMTP dial timeout bounds the call instead.
func (c *EmailChannel) Send(_ context.Context, address, subject, body string) error {
	if strings.TrimSpace(c.cfg.Host) == "" {
		return fmt.Errorf("smtp host not configured")
	}
	msg := strings.Join([]string{
		"From: " + c.cfg.From,
		"To: " + address,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)
	var auth smtp.Auth
	if c.cfg.Username != "" {
		auth = smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.Host)
	}
	if err := smtp.SendMail(addr, auth, c.cfg.From, []string{address}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", address, err)
	}
	return nil
}
