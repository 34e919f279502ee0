package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"golang.org/x/sync/errgroup"

	"github.com/sendwerk/outbox/pkg/htmltext"
	"github.com/sendwerk/outbox/pkg/template"
)

// Severity classifies a user-facing notification.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Notifier receives user-facing success and failure messages, one per
// recipient transmission.
type Notifier interface {
	Notify(ctx context.Context, message string, severity Severity)
}

// Archiver appends a sent message to an account's archive folder. It fails
// soft: false on any connection, auth, or protocol problem, and false
// without connecting when the account has no archive endpoint.
type Archiver interface {
	Archive(ctx context.Context, message []byte, account *Account) bool
}

// AttachmentLoader loads stored files referenced by an intent.
// Missing ids are reported as (nil, nil).
type AttachmentLoader interface {
	Attachment(ctx context.Context, id uuid.UUID) (*Attachment, error)
}

// IntentDeleter discards an intent's persisted representation after a send.
type IntentDeleter interface {
	DeleteIntent(ctx context.Context, id uuid.UUID) error
}

// SentLogger records successful transmissions for auditing.
type SentLogger interface {
	LogSent(ctx context.Context, intentID uuid.UUID, r *Recipient, subject string) error
}

// Pipeline renders and transmits one message per recipient of an intent.
type Pipeline struct {
	transports  TransportFactory
	accounts    AccountSource
	attachments AttachmentLoader
	archiver    Archiver
	notifier    Notifier
	deleter     IntentDeleter
	sentLog     SentLogger
	log         *slog.Logger
	md          goldmark.Markdown
	concurrency int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithAttachments supplies the loader for intent attachment references.
func WithAttachments(l AttachmentLoader) Option {
	return func(p *Pipeline) { p.attachments = l }
}

// WithArchiver enables post-send archival of sent messages.
func WithArchiver(a Archiver) Option {
	return func(p *Pipeline) { p.archiver = a }
}

// WithNotifier enables user-facing per-recipient notifications.
func WithNotifier(n Notifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

// WithIntentDeleter supplies the store cleanup for consumed intents.
func WithIntentDeleter(d IntentDeleter) Option {
	return func(p *Pipeline) { p.deleter = d }
}

// WithSentLog records every successful transmission.
func WithSentLog(l SentLogger) Option {
	return func(p *Pipeline) { p.sentLog = l }
}

// WithLogger sets the pipeline logger. Defaults to a discard logger.
func WithLogger(log *slog.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// WithConcurrency sends to up to n recipients in parallel, each over its
// own transport connection. Values below 2 keep the sequential mode with a
// single shared connection.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) { p.concurrency = n }
}

// NewPipeline creates a send pipeline. The transport factory and account
// source are required; everything else is optional.
func NewPipeline(transports TransportFactory, accounts AccountSource, opts ...Option) *Pipeline {
	p := &Pipeline{
		transports: transports,
		accounts:   accounts,
		log:        slog.New(slog.DiscardHandler),
		md:         goldmark.New(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Send renders and transmits the intent's message to every recipient in
// set order, aggregating per-recipient outcomes. Individual delivery
// failures never abort the batch; the returned error is non-nil only for
// fatal pre-transmission conditions: an unparseable template, a missing
// attachment, or no available account. On completion the intent's
// persisted representation is discarded regardless of outcome.
func (p *Pipeline) Send(ctx context.Context, in *Intent) (*SendResult, error) {
	result := &SendResult{}

	recipients := in.Recipients.All()
	if len(recipients) == 0 {
		p.discard(ctx, in)
		return result, nil
	}

	if p.transports == nil {
		return nil, ErrNoTransport
	}

	account, err := p.resolveAccount(ctx, in)
	if err != nil {
		return nil, err
	}

	subjectTpl, err := template.Parse(in.Subject)
	if err != nil {
		return nil, fmt.Errorf("subject: %w", err)
	}
	messageTpl, err := template.Parse(in.Message)
	if err != nil {
		return nil, fmt.Errorf("message: %w", err)
	}

	attachments, err := p.loadAttachments(ctx, in)
	if err != nil {
		return nil, err
	}

	if p.concurrency > 1 && len(recipients) > 1 {
		result.Outcomes = p.sendParallel(ctx, in, account, recipients, subjectTpl, messageTpl, attachments)
	} else {
		result.Outcomes, err = p.sendSequential(ctx, in, account, recipients, subjectTpl, messageTpl, attachments)
		if err != nil {
			return nil, err
		}
	}

	for _, o := range result.Outcomes {
		if o.Outcome == OutcomeSent {
			result.AnySucceeded = true
			break
		}
	}

	if result.AnySucceeded && in.OnSuccess != nil {
		in.OnSuccess(ctx, in.Model)
	}

	p.discard(ctx, in)

	return result, nil
}

func (p *Pipeline) resolveAccount(ctx context.Context, in *Intent) (*Account, error) {
	if p.accounts == nil {
		return nil, ErrNoAccount
	}

	if in.AccountID != uuid.Nil {
		account, err := p.accounts.AccountByID(ctx, in.AccountID)
		if err != nil {
			return nil, err
		}
		if account != nil {
			return account, nil
		}
		// An intent referencing a vanished account falls back to the
		// default rather than failing the send.
	}

	account, err := p.accounts.Default(ctx)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrNoAccount
	}
	return account, nil
}

func (p *Pipeline) loadAttachments(ctx context.Context, in *Intent) ([]Attachment, error) {
	if len(in.Attachments) == 0 {
		return nil, nil
	}
	if p.attachments == nil {
		return nil, fmt.Errorf("%w: no attachment loader configured", ErrAttachmentMissing)
	}

	out := make([]Attachment, 0, len(in.Attachments))
	for _, id := range in.Attachments {
		att, err := p.attachments.Attachment(ctx, id)
		if err != nil {
			return nil, errors.Join(ErrAttachmentMissing, err)
		}
		if att == nil {
			return nil, fmt.Errorf("%w: %s", ErrAttachmentMissing, id)
		}
		out = append(out, *att)
	}
	return out, nil
}

func (p *Pipeline) sendSequential(
	ctx context.Context,
	in *Intent,
	account *Account,
	recipients []*Recipient,
	subjectTpl, messageTpl *template.Template,
	attachments []Attachment,
) ([]RecipientOutcome, error) {
	tr, err := p.transports.Transport(account)
	if err != nil {
		return nil, err
	}
	defer tr.Close()

	// Reconnecting and re-authenticating per message is wasted work when
	// several messages go through the same account.
	if len(recipients) > 1 {
		tr.KeepAlive(true)
	}
	for _, att := range attachments {
		tr.Attach(att)
	}

	outcomes := make([]RecipientOutcome, 0, len(recipients))
	for _, r := range recipients {
		outcomes = append(outcomes, p.sendOne(ctx, tr, in, account, r, subjectTpl, messageTpl))
	}
	return outcomes, nil
}

func (p *Pipeline) sendParallel(
	ctx context.Context,
	in *Intent,
	account *Account,
	recipients []*Recipient,
	subjectTpl, messageTpl *template.Template,
	attachments []Attachment,
) []RecipientOutcome {
	outcomes := make([]RecipientOutcome, len(recipients))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, r := range recipients {
		g.Go(func() error {
			tr, err := p.transports.Transport(account)
			if err != nil {
				outcomes[i] = RecipientOutcome{Recipient: r, Outcome: OutcomeFailed, Err: err}
				p.notifyFailure(ctx, in.Subject, r, err)
				return nil
			}
			defer tr.Close()

			for _, att := range attachments {
				tr.Attach(att)
			}
			outcomes[i] = p.sendOne(ctx, tr, in, account, r, subjectTpl, messageTpl)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// sendOne renders and transmits the message for a single recipient. The
// templates are cloned so hook bindings stay private to this recipient.
func (p *Pipeline) sendOne(
	ctx context.Context,
	tr Transport,
	in *Intent,
	account *Account,
	r *Recipient,
	subjectTpl, messageTpl *template.Template,
) RecipientOutcome {
	st := subjectTpl.Clone()
	mt := messageTpl.Clone()

	for _, t := range []*template.Template{st, mt} {
		t.TryBind("recipient_firstname", r.FirstName)
		t.TryBind("recipient_lastname", r.LastName)
		t.TryBind("recipient_email", r.Email)
	}

	if in.SubjectHook != nil {
		in.SubjectHook(r, st)
	}
	if in.MessageHook != nil {
		in.MessageHook(r, mt)
	}

	subject := st.Render()
	message := mt.Render()
	if in.Markdown {
		var buf bytes.Buffer
		if err := p.md.Convert([]byte(message), &buf); err == nil {
			message = buf.String()
		} else {
			p.log.WarnContext(ctx, "markdown conversion failed, sending raw body",
				slog.String("error", err.Error()))
		}
	}
	body := in.Header + message + in.Footer

	tr.SetSubject(subject)
	tr.SetBody(body, htmltext.Convert(body))

	err := tr.AddAddress(r.Email, r.DisplayName())
	if err == nil {
		err = tr.Send(ctx)
	}
	// The transport accumulates addressees across calls; clear before the
	// next recipient.
	defer tr.ClearAddresses()

	if err != nil {
		p.notifyFailure(ctx, subject, r, err)
		return RecipientOutcome{Recipient: r, Outcome: OutcomeFailed, Err: err}
	}

	p.notify(ctx, fmt.Sprintf("The email %q was sent to %s.", subject, r.Email), SeveritySuccess)
	p.logSent(ctx, in.ID, r, subject)

	return RecipientOutcome{
		Recipient: r,
		Outcome:   OutcomeSent,
		Archived:  p.archive(ctx, tr, account, r),
	}
}

// archive appends the sent message to the account's archive folder.
// Failures are logged and swallowed; they never downgrade a sent outcome.
func (p *Pipeline) archive(ctx context.Context, tr Transport, account *Account, r *Recipient) bool {
	if p.archiver == nil {
		return false
	}

	raw, err := tr.SentMessage()
	if err != nil {
		if !errors.Is(err, ErrNoRawMessage) {
			p.log.WarnContext(ctx, "could not read sent message for archival",
				slog.String("recipient", r.Email),
				slog.String("error", err.Error()))
		}
		return false
	}

	archived := p.archiver.Archive(ctx, raw, account)
	if !archived && account.Archivable() {
		p.log.WarnContext(ctx, "archival failed",
			slog.String("recipient", r.Email),
			slog.String("account", account.Address))
	}
	return archived
}

func (p *Pipeline) notifyFailure(ctx context.Context, subject string, r *Recipient, err error) {
	p.log.WarnContext(ctx, "transmission failed",
		slog.String("recipient", r.Email),
		slog.String("error", err.Error()))
	p.notify(ctx, fmt.Sprintf("The email %q could not be sent to %s.", subject, r.Email), SeverityError)
}

func (p *Pipeline) notify(ctx context.Context, message string, severity Severity) {
	if p.notifier == nil {
		return
	}
	p.notifier.Notify(ctx, message, severity)
}

func (p *Pipeline) logSent(ctx context.Context, intentID uuid.UUID, r *Recipient, subject string) {
	if p.sentLog == nil {
		return
	}
	if err := p.sentLog.LogSent(ctx, intentID, r, subject); err != nil {
		p.log.WarnContext(ctx, "failed to record sent email",
			slog.String("recipient", r.Email),
			slog.String("error", err.Error()))
	}
}

// discard deletes the intent's persisted representation. Intents are
// transient; the archive and the sent log are the audit mechanisms.
func (p *Pipeline) discard(ctx context.Context, in *Intent) {
	if p.deleter == nil || in.ID == uuid.Nil {
		return
	}
	if err := p.deleter.DeleteIntent(ctx, in.ID); err != nil {
		p.log.WarnContext(ctx, "failed to delete consumed intent",
			slog.String("intent_id", in.ID.String()),
			slog.String("error", err.Error()))
	}
}
