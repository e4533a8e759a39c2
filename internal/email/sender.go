package email

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/crm-api/pkg/logger"
)

var ErrNoRecipients = errors.New("email has no recipients")

// Connection is an outbound SMTP account.
type Connection struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// Mail is a rendered email ready for delivery.
type Mail struct {
	From     string
	To       []string
	Cc       []string
	Subject  string
	Text     string
	HTML     string
	// Language is a BCP 47 tag sent as Content-Language when set.
	Language string
}

func (m *Mail) recipients() int {
	return len(m.To) + len(m.Cc)
}

// Sender delivers mail and reports how many recipients it was handed to.
type Sender interface {
	Send(ctx context.Context, conn *Connection, m *Mail) (int, error)
}

type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// DialerFunc opens a dialer for a connection.
type DialerFunc func(conn Connection) Dialer

func gomailDialer(conn Connection) Dialer {
	return gomail.NewDialer(conn.Host, conn.Port, conn.User, conn.Password)
}

type SMTPSender struct {
	fallback Connection
	dial     DialerFunc
	logger   *logger.Logger
}

// NewSMTPSender sends through fallback unless a call names its own connection.
func NewSMTPSender(fallback Connection, log *logger.Logger) *SMTPSender {
	return &SMTPSender{
		fallback: fallback,
		dial:     gomailDialer,
		logger:   log,
	}
}

// WithDialer replaces the gomail dialer, mainly for tests.
func (s *SMTPSender) WithDialer(dial DialerFunc) *SMTPSender {
	s.dial = dial
	return s
}

func (s *SMTPSender) Send(ctx context.Context, conn *Connection, m *Mail) (int, error) {
	if m.recipients() == 0 {
		return 0, ErrNoRecipients
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	c := s.fallback
	if conn != nil && conn.Host != "" {
		c = *conn
	}

	from := m.From
	if from == "" {
		from = c.From
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", m.To...)
	if len(m.Cc) > 0 {
		msg.SetHeader("Cc", m.Cc...)
	}
	msg.SetHeader("Subject", m.Subject)
	if m.Language != "" {
		msg.SetHeader("Content-Language", m.Language)
	}
	msg.SetBody("text/plain", m.Text)
	if m.HTML != "" {
		msg.AddAlternative("text/html", m.HTML)
	}

	if err := s.dial(c).DialAndSend(msg); err != nil {
		s.logger.Error(err, "failed to send email", "host", c.Host, "subject", m.Subject)
		return 0, fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Debug("email sent", "host", c.Host, "recipients", m.recipients())
	return m.recipients(), nil
}
