package dispatch

import (
	"context"
	"net/mail"
	"strings"
)

// Contact describes a loaded domain record an email can be addressed to.
// Implementations that maintain their own address records should also
// implement AddressLister.
type Contact interface {
	FirstName() string
	LastName() string
}

// AddressLister is optionally implemented by contacts that can enumerate
// their associated address records.
type AddressLister interface {
	// FirstAddress returns the contact's first associated address record,
	// or (nil, nil) when it has none.
	FirstAddress(ctx context.Context) (*AddressRecord, error)
}

// AddressRecord is a stored email address, optionally owned by a contact.
type AddressRecord struct {
	Owner Contact // nil for unowned records
	Value string
	ID    int64
}

// AddressBook loads stored address records. "Not found" is reported as
// (nil, nil), never as an error.
type AddressBook interface {
	// AddressByID loads an address record by id.
	AddressByID(ctx context.Context, id int64) (*AddressRecord, error)

	// ContactAddress loads an address record by id scoped to the given
	// contact. Records owned by a different contact do not resolve.
	ContactAddress(ctx context.Context, c Contact, id int64) (*AddressRecord, error)
}

// Resolver turns recipient specifiers into recipients. Resolution never
// fails for "not found" inputs; it reports no resolution by returning
// (nil, nil). ErrInvalidSpecifier is reserved for malformed specifiers.
type Resolver struct {
	book AddressBook
}

// NewResolver creates a resolver. The address book may be nil, in which
// case only contact-first-address and raw-string specifiers can resolve.
func NewResolver(book AddressBook) *Resolver {
	return &Resolver{book: book}
}

// Resolve produces zero or one recipient for the specifier.
func (r *Resolver) Resolve(ctx context.Context, spec Specifier) (*Recipient, error) {
	switch spec.kind {
	case specContact:
		if spec.contact == nil {
			return nil, ErrInvalidSpecifier
		}
		if spec.addressID == 0 {
			return r.resolveFirstAddress(ctx, spec.contact)
		}
		return r.resolveContactAddress(ctx, spec.contact, spec.addressID)

	case specAddressID:
		return r.resolveAddressID(ctx, spec.addressID)

	case specAddress:
		if !ValidAddress(spec.address) {
			return nil, nil
		}
		return &Recipient{Email: spec.address}, nil

	default:
		return nil, ErrInvalidSpecifier
	}
}

func (r *Resolver) resolveFirstAddress(ctx context.Context, c Contact) (*Recipient, error) {
	lister, ok := c.(AddressLister)
	if !ok {
		return nil, nil
	}
	rec, err := lister.FirstAddress(ctx)
	if err != nil {
		return nil, err
	}
	if rec == nil || !ValidAddress(rec.Value) {
		return nil, nil
	}
	return recipientFor(c, rec.Value), nil
}

func (r *Resolver) resolveContactAddress(ctx context.Context, c Contact, id int64) (*Recipient, error) {
	if r.book == nil {
		return nil, nil
	}
	rec, err := r.book.ContactAddress(ctx, c, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	return recipientFor(c, rec.Value), nil
}

// resolveAddressID loads a bare address record and resolves through its
// owning contact. The owner scope keeps the record's own address rather
// than redoing the first-address lookup.
func (r *Resolver) resolveAddressID(ctx context.Context, id int64) (*Recipient, error) {
	if r.book == nil {
		return nil, nil
	}
	rec, err := r.book.AddressByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.Owner == nil {
		return nil, nil
	}
	return r.resolveContactAddress(ctx, rec.Owner, rec.ID)
}

func recipientFor(c Contact, email string) *Recipient {
	return &Recipient{
		Email:     email,
		FirstName: c.FirstName(),
		LastName:  c.LastName(),
	}
}

// ValidAddress reports whether s is a single syntactically valid email
// address without a display-name part and with a dotted domain.
func ValidAddress(s string) bool {
	if s == "" {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	return at >= 0 && strings.Contains(s[at+1:], ".")
}
