package dispatch

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"github.com/sendwerk/outbox/pkg/template"
)

// Hook customizes a recipient's subject or message template before
// rendering. Hooks may bind additional variables; the template is a
// per-recipient clone, so changes never leak to other recipients.
type Hook func(r *Recipient, t *template.Template)

// Intent is an in-flight email send request: templates, recipients,
// attachments, and account selection. An intent is consumed exactly once
// by Pipeline.Send; the caller must not reuse it afterwards.
type Intent struct {
	ID uuid.UUID

	// Subject and Message are template sources in the pkg/template dialect.
	Subject string
	Message string

	// Header and Footer wrap the rendered message verbatim.
	Header string
	Footer string

	// Markdown marks the message template as markdown to be converted to
	// HTML after rendering, before the header/footer wrap.
	Markdown bool

	// Attachments references stored files by id, in order.
	Attachments []uuid.UUID

	// AccountID selects the transport account. Zero means the account
	// source's default.
	AccountID uuid.UUID

	// Recipients is the ordered, deduplicated recipient set.
	Recipients *RecipientSet

	// SubjectHook and MessageHook run once per recipient on the cloned
	// subject and message templates.
	SubjectHook Hook
	MessageHook Hook

	// OnSuccess runs after the batch when at least one transmission
	// succeeded, receiving Model.
	OnSuccess func(ctx context.Context, model any)

	// Model is the business-domain record this email is about, passed to
	// OnSuccess.
	Model any
}

// NewIntent creates an intent with the given subject and message template
// sources and an empty recipient set.
func NewIntent(subject, message string, setOpts ...SetOption) *Intent {
	return &Intent{
		ID:         uuid.New(),
		Subject:    subject,
		Message:    message,
		Recipients: NewRecipientSet(setOpts...),
	}
}

// AddRecipient resolves the specifier and attaches the recipient.
// See RecipientSet.Add.
func (in *Intent) AddRecipient(ctx context.Context, res *Resolver, spec Specifier) (bool, error) {
	return in.Recipients.Add(ctx, res, spec)
}

// RemoveRecipient detaches a recipient by id.
func (in *Intent) RemoveRecipient(id uuid.UUID) bool {
	return in.Recipients.Remove(id)
}

// AddAttachment appends a stored file reference.
func (in *Intent) AddAttachment(id uuid.UUID) {
	in.Attachments = append(in.Attachments, id)
}

// RemoveAttachment removes a stored file reference. It reports whether the
// reference was present.
func (in *Intent) RemoveAttachment(id uuid.UUID) bool {
	i := slices.Index(in.Attachments, id)
	if i < 0 {
		return false
	}
	in.Attachments = slices.Delete(in.Attachments, i, i+1)
	return true
}

// CombinedOption configures LoadCombined.
type CombinedOption func(*combinedOptions)

type combinedOptions struct {
	signature    string
	hasSignature bool
}

// WithSignature replaces the source's Signature region body with the given
// HTML. Sources without a Signature region are unaffected.
func WithSignature(html string) CombinedOption {
	return func(o *combinedOptions) {
		o.signature = html
		o.hasSignature = true
	}
}

// LoadCombined fills Subject and Message from a single combined template
// source: the Subject region becomes the subject source and is removed from
// the body. Variable placeholders survive the split and are bound later,
// per recipient, during Send.
func (in *Intent) LoadCombined(src string, opts ...CombinedOption) error {
	var o combinedOptions
	for _, opt := range opts {
		opt(&o)
	}

	t, err := template.Parse(src)
	if err != nil {
		return err
	}

	if t.HasRegion("Subject") {
		subject, err := t.CloneRegion("Subject")
		if err != nil {
			return err
		}
		t.DeleteRegion("Subject")
		in.Subject = subject.Render()
	}

	if o.hasSignature {
		t.ReplaceRegion("Signature", o.signature)
	}

	in.Message = t.Render()
	return nil
}
