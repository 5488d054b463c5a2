// Package notify sends applicant-facing mails exactly once per application
// and outcome.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/hackit-tw/recruit/internal/adapters/mail"
	"github.com/hackit-tw/recruit/internal/domain/dedupe"
	"github.com/hackit-tw/recruit/internal/domain/model"
	"github.com/hackit-tw/recruit/pkg/logger"
	"github.com/hackit-tw/recruit/pkg/metrics"
)

var (
	// ErrAlreadySent is returned when the mail for this outcome went out before.
	// Callers treat it as success.
	ErrAlreadySent = errors.New("notification already sent")

	// ErrUpstreamUnavailable wraps transport failures. The claim is released
	// so a retry can send.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrNoOutcome is returned for model.OutcomeNone.
	ErrNoOutcome = errors.New("no outcome to notify")
)

// outcomeReceived keys the receipt mail in the ledger alongside real outcomes.
const outcomeReceived model.Outcome = "received"

// TokenIssuer signs the next-steps form token.
type TokenIssuer interface {
	Issue(applicationID string) (string, error)
}

// Notifier renders and sends outcome mails.
type Notifier struct {
	ledger      dedupe.Ledger
	renderer    *mail.Renderer
	sender      mail.Sender
	tokens      TokenIssuer
	nextFormURL string
	log         logger.Logger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithNextFormURL sets the base of the link sent with a passed outcome.
func WithNextFormURL(u string) Option {
	return func(n *Notifier) { n.nextFormURL = u }
}

// WithLogger overrides the default logger.
func WithLogger(l logger.Logger) Option {
	return func(n *Notifier) {
		if l != nil {
			n.log = l
		}
	}
}

// New returns a Notifier.
func New(ledger dedupe.Ledger, renderer *mail.Renderer, sender mail.Sender, tokens TokenIssuer, opts ...Option) *Notifier {
	n := &Notifier{
		ledger:   ledger,
		renderer: renderer,
		sender:   sender,
		tokens:   tokens,
		log:      logger.Get().Named("notify"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NotifyOutcome sends the passed or failed mail for app.
func (n *Notifier) NotifyOutcome(ctx context.Context, app model.Application, outcome model.Outcome, reason string) error { //nolint:gocritic // hugeParam: read-only aggregate
	var (
		tmpl mail.Template
		data = mail.Data{Name: app.Applicant.Name, ApplicationID: app.ID, Email: app.Applicant.Email}
	)
	switch outcome {
	case model.OutcomePassed:
		link, err := n.nextStepsLink(app.ID)
		if err != nil {
			return err
		}
		tmpl, data.NextURL = mail.TemplatePass, link
	case model.OutcomeFailed:
		tmpl, data.Reason = mail.TemplateFail, reason
	default:
		return fmt.Errorf("%w: %q", ErrNoOutcome, outcome)
	}

	err := n.send(ctx, dedupe.Key(app.ID, outcome), tmpl, app.Applicant.Email, data)
	switch {
	case errors.Is(err, ErrAlreadySent):
		metrics.RecordOutcomeNotification(string(outcome), "duplicate")
	case err != nil:
		metrics.RecordOutcomeNotification(string(outcome), "failed")
	default:
		metrics.RecordOutcomeNotification(string(outcome), "sent")
	}
	return err
}

// NotifyReceived confirms a new application to the applicant.
func (n *Notifier) NotifyReceived(ctx context.Context, app model.Application) error { //nolint:gocritic // hugeParam: read-only aggregate
	data := mail.Data{Name: app.Applicant.Name, ApplicationID: app.ID, Email: app.Applicant.Email}
	return n.send(ctx, dedupe.Key(app.ID, outcomeReceived), mail.TemplateReceived, app.Applicant.Email, data)
}

func (n *Notifier) send(ctx context.Context, key string, tmpl mail.Template, to string, data mail.Data) error {
	// Render before claiming so a template error never burns the claim.
	msg, err := n.renderer.Render(tmpl, to, data)
	if err != nil {
		return fmt.Errorf("render %s: %w", tmpl, err)
	}

	seen, err := n.ledger.SeenAndRecord(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: ledger: %w", ErrUpstreamUnavailable, err)
	}
	if seen {
		n.log.Debug(ctx, "notification already sent", logger.String("key", key))
		return ErrAlreadySent
	}

	if err := n.sender.Send(ctx, msg); err != nil {
		if uerr := n.ledger.Unrecord(ctx, key); uerr != nil {
			n.log.Error(ctx, "failed to release notification claim",
				logger.String("key", key), logger.Error(uerr))
		}
		return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	n.log.Info(ctx, "notification sent",
		logger.String("key", key), logger.String("template", string(tmpl)))
	return nil
}

// nextStepsLink is <next_form_url>?secret=<token>.
func (n *Notifier) nextStepsLink(applicationID string) (string, error) {
	tok, err := n.tokens.Issue(applicationID)
	if err != nil {
		return "", fmt.Errorf("issue form token: %w", err)
	}
	if n.nextFormURL == "" {
		return "", nil
	}
	u, err := url.Parse(n.nextFormURL)
	if err != nil {
		return "", fmt.Errorf("next form url: %w", err)
	}
	q := u.Query()
	q.Set("secret", tok)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
