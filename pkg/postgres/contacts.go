package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sendwerk/outbox/pkg/dispatch"
)

// Contact is a stored contact. It satisfies the contact and address-lister
// interfaces of the dispatch resolver, so a loaded Contact can be passed
// straight into a recipient specifier.
type Contact struct {
	id    int64
	first string
	last  string
	store *Store
}

func (c *Contact) ID() int64         { return c.id }
func (c *Contact) FirstName() string { return c.first }
func (c *Contact) LastName() string  { return c.last }

// FirstAddress implements dispatch.AddressLister.
func (c *Contact) FirstAddress(ctx context.Context) (*dispatch.AddressRecord, error) {
	row := c.store.pool.QueryRow(ctx,
		`SELECT id, email FROM email_address WHERE contact_id = $1 ORDER BY id LIMIT 1`, c.id)

	var rec dispatch.AddressRecord
	if err := row.Scan(&rec.ID, &rec.Value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: failed to load first address: %w", err)
	}
	rec.Owner = c
	return &rec, nil
}

// CreateContact stores a new contact.
func (s *Store) CreateContact(ctx context.Context, firstName, lastName string) (*Contact, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO email_contact (first_name, last_name) VALUES ($1, $2) RETURNING id`,
		firstName, lastName)

	c := &Contact{first: firstName, last: lastName, store: s}
	if err := row.Scan(&c.id); err != nil {
		return nil, fmt.Errorf("postgres: failed to create contact: %w", err)
	}
	return c, nil
}

// ContactByID loads a contact.
func (s *Store) ContactByID(ctx context.Context, id int64) (*Contact, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, first_name, last_name FROM email_contact WHERE id = $1`, id)

	c := &Contact{store: s}
	if err := row.Scan(&c.id, &c.first, &c.last); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContactNotFound
		}
		return nil, fmt.Errorf("postgres: failed to load contact: %w", err)
	}
	return c, nil
}

// AddAddress attaches an email address to a contact and returns the new
// address record id.
func (s *Store) AddAddress(ctx context.Context, c *Contact, email string) (int64, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO email_address (contact_id, email) VALUES ($1, $2) RETURNING id`,
		c.id, email)

	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("postgres: failed to add address: %w", err)
	}
	return id, nil
}

// AddressByID implements dispatch.AddressBook.
func (s *Store) AddressByID(ctx context.Context, id int64) (*dispatch.AddressRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT a.id, a.email, c.id, c.first_name, c.last_name
		FROM email_address a
		LEFT JOIN email_contact c ON c.id = a.contact_id
		WHERE a.id = $1`, id)

	var (
		rec         dispatch.AddressRecord
		contactID   *int64
		first, last *string
	)
	if err := row.Scan(&rec.ID, &rec.Value, &contactID, &first, &last); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: failed to load address: %w", err)
	}

	if contactID != nil {
		rec.Owner = &Contact{id: *contactID, first: *first, last: *last, store: s}
	}
	return &rec, nil
}

// ContactAddress implements dispatch.AddressBook. Only contacts loaded
// from this store carry the identity needed for ownership scoping; other
// contact implementations never match.
func (s *Store) ContactAddress(ctx context.Context, c dispatch.Contact, id int64) (*dispatch.AddressRecord, error) {
	owner, ok := c.(*Contact)
	if !ok {
		return nil, nil
	}

	row := s.pool.QueryRow(ctx,
		`SELECT id, email FROM email_address WHERE id = $1 AND contact_id = $2`, id, owner.id)

	var rec dispatch.AddressRecord
	if err := row.Scan(&rec.ID, &rec.Value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: failed to load contact address: %w", err)
	}
	rec.Owner = owner
	return &rec, nil
}

var (
	_ dispatch.AddressBook   = (*Store)(nil)
	_ dispatch.Contact       = (*Contact)(nil)
	_ dispatch.AddressLister = (*Contact)(nil)
)
