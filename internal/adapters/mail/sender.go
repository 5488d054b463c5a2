package mail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	gomail "github.com/wneessen/go-mail"

	"github.com/hackit-tw/recruit/pkg/logger"
	"github.com/hackit-tw/recruit/pkg/metrics"
)

// ErrUnavailable wraps SMTP failures and an open circuit.
var ErrUnavailable = errors.New("mail transport unavailable")

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// deliverer is the part of *gomail.Client the sender uses.
type deliverer interface {
	DialAndSendWithContext(ctx context.Context, messages ...*gomail.Msg) error
}

// SMTPConfig holds the SMTP settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// SMTPSender sends through go-mail behind a circuit breaker.
type SMTPSender struct {
	client  deliverer
	from    string
	breaker *gobreaker.CircuitBreaker
}

// NewSMTPSender dials lazily; nothing connects until the first Send.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, gomail.WithTimeout(cfg.Timeout))
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}
	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return newSMTPSender(client, cfg.From), nil
}

func newSMTPSender(client deliverer, from string) *SMTPSender {
	return &SMTPSender{
		client: client,
		from:   from,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "smtp",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, _, to gobreaker.State) {
				metrics.UpdateCircuitState(name, int(to))
				logger.Get().Warn(context.Background(), "circuit state changed",
					logger.String("upstream", name), logger.String("state", to.String()))
			},
		}),
	}
}

// Send implements Sender.
func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	msg := gomail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := msg.To(m.To); err != nil {
		return fmt.Errorf("mail to: %w", err)
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(gomail.TypeTextHTML, m.HTML)

	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.client.DialAndSendWithContext(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// LogSender logs mails instead of sending them. Used when no SMTP host is
// configured.
type LogSender struct {
	log logger.Logger
}

// NewLogSender returns a LogSender.
func NewLogSender() *LogSender {
	return &LogSender{log: logger.Get().Named("mail")}
}

// Send implements Sender.
func (s *LogSender) Send(ctx context.Context, m Message) error {
	s.log.Info(ctx, "mail not sent, no smtp host configured",
		logger.String("to", m.To), logger.String("subject", m.Subject))
	return nil
}
