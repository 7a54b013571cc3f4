package email

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/Domenick1991/flightsaga/config"
	"github.com/Domenick1991/flightsaga/internal/kafka"
	"go.uber.org/zap"
)

type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Sender delivers notification events by SMTP. With no host configured it
// only logs them.
type Sender struct {
	cfg      config.SMTPConfig
	logger   *zap.Logger
	sendMail SendFunc
}

func NewSender(cfg config.SMTPConfig, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{cfg: cfg, logger: logger, sendMail: smtp.SendMail}
}

func (s *Sender) Send(ctx context.Context, event kafka.NotificationEvent) error {
	if event.Recipient == "" {
		return fmt.Errorf("notification has no recipient")
	}
	if s.cfg.Host == "" {
		s.logger.Info("email (log only)",
			zap.String("to", event.Recipient),
			zap.String("subject", event.Subject),
			zap.String("body", event.Body),
		)
		return nil
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	if err := s.sendMail(addr, auth, s.cfg.From, []string{event.Recipient}, buildMessage(s.cfg.From, event)); err != nil {
		return fmt.Errorf("send email to %s: %w", event.Recipient, err)
	}

	s.logger.Info("email sent", zap.String("to", event.Recipient), zap.String("subject", event.Subject))
	return nil
}

func buildMessage(from string, event kafka.NotificationEvent) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", event.Recipient)
	fmt.Fprintf(&b, "Subject: %s\r\n", event.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(event.Body)
	return []byte(b.String())
}
