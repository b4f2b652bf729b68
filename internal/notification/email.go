package notification

import (
	"context"
	"fmt"
	"net/smtp"

	"altcoin-screener/config"
)

// EmailNotifier sends alerts over SMTP.
type EmailNotifier struct {
	cfg config.EmailConfig
}

func NewEmailNotifier(cfg config.EmailConfig) *EmailNotifier {
	return &EmailNotifier{cfg: cfg}
}

func (e *EmailNotifier) Name() string    { return "email" }
func (e *EmailNotifier) IsEnabled() bool { return e.cfg.Enabled && e.cfg.To != "" }

func (e *EmailNotifier) Send(ctx context.Context, subject, message string) error {
	from := e.cfg.From
	if e.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", e.cfg.FromName, e.cfg.From)
	}

	body := []byte(
		"From: " + from + "\r\n" +
			"To: " + e.cfg.To + "\r\n" +
			"Subject: " + subject + "\r\n" +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/plain; charset=UTF-8\r\n" +
			"\r\n" +
			message + "\r\n")

	addr := e.cfg.Host + ":" + e.cfg.Port
	auth := smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, e.cfg.From, []string{e.cfg.To}, body)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("error sending email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
