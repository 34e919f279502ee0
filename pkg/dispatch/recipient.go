package dispatch

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Recipient is a resolved, named email address attached to an intent.
type Recipient struct {
	ID        uuid.UUID
	Email     string
	FirstName string
	LastName  string
}

// DisplayName returns "FirstName LastName" with absent parts dropped.
func (r *Recipient) DisplayName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

// RecipientSet is an ordered collection of recipients deduplicated by
// address. Insertion order is preserved and is the order messages are sent
// in. Addresses are compared with exact case-sensitive matching unless the
// set was built with CaseInsensitive.
type RecipientSet struct {
	recipients      []*Recipient
	caseInsensitive bool
}

// SetOption configures a RecipientSet.
type SetOption func(*RecipientSet)

// CaseInsensitive makes address deduplication fold case, so A@x.com and
// a@x.com count as the same recipient.
func CaseInsensitive() SetOption {
	return func(s *RecipientSet) { s.caseInsensitive = true }
}

// NewRecipientSet creates an empty recipient set.
func NewRecipientSet(opts ...SetOption) *RecipientSet {
	s := &RecipientSet{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add resolves the specifier and inserts the resulting recipient. It
// returns false without side effects when resolution yields nothing or the
// address is already present. The error is non-nil only for malformed
// specifiers or collaborator failures, never for "not found".
func (s *RecipientSet) Add(ctx context.Context, res *Resolver, spec Specifier) (bool, error) {
	r, err := res.Resolve(ctx, spec)
	if err != nil {
		return false, err
	}
	if r == nil {
		return false, nil
	}
	return s.insert(r), nil
}

func (s *RecipientSet) insert(r *Recipient) bool {
	if s.Contains(r.Email) {
		return false
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	s.recipients = append(s.recipients, r)
	return true
}

// Restore inserts an already resolved recipient, applying the same
// deduplication as Add. Intended for rehydrating persisted intents.
func (s *RecipientSet) Restore(r *Recipient) bool {
	return s.insert(r)
}

// Contains reports whether an entry with the given address exists.
func (s *RecipientSet) Contains(email string) bool {
	for _, existing := range s.recipients {
		if s.sameAddress(existing.Email, email) {
			return true
		}
	}
	return false
}

func (s *RecipientSet) sameAddress(a, b string) bool {
	if s.caseInsensitive {
		return strings.EqualFold(a, b)
	}
	return a == b
}

// Remove deletes the recipient with the given id. It reports whether an
// entry existed and was removed.
func (s *RecipientSet) Remove(id uuid.UUID) bool {
	for i, r := range s.recipients {
		if r.ID == id {
			s.recipients = append(s.recipients[:i], s.recipients[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of recipients.
func (s *RecipientSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.recipients)
}

// All returns the recipients in insertion order. The slice is a copy; the
// recipients are shared.
func (s *RecipientSet) All() []*Recipient {
	out := make([]*Recipient, len(s.recipients))
	copy(out, s.recipients)
	return out
}
