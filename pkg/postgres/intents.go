package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sendwerk/outbox/pkg/dispatch"
)

// SaveIntent persists an intent and its recipient set. Hooks, callbacks,
// and the model are runtime wiring and are not persisted; a rehydrated
// intent carries templates, recipients, attachments, and account selection
// only.
func (s *Store) SaveIntent(ctx context.Context, in *dispatch.Intent) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var accountID *uuid.UUID
	if in.AccountID != uuid.Nil {
		accountID = &in.AccountID
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO email_intent (id, subject, message, header, footer, markdown,
			account_id, attachments)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			subject = EXCLUDED.subject,
			message = EXCLUDED.message,
			header = EXCLUDED.header,
			footer = EXCLUDED.footer,
			markdown = EXCLUDED.markdown,
			account_id = EXCLUDED.account_id,
			attachments = EXCLUDED.attachments`,
		in.ID, in.Subject, in.Message, in.Header, in.Footer, in.Markdown,
		accountID, in.Attachments)
	if err != nil {
		return fmt.Errorf("postgres: failed to save intent: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM email_recipient WHERE intent_id = $1`, in.ID); err != nil {
		return fmt.Errorf("postgres: failed to replace recipients: %w", err)
	}
	for i, r := range in.Recipients.All() {
		_, err := tx.Exec(ctx, `
			INSERT INTO email_recipient (id, intent_id, email, first_name, last_name, position)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			r.ID, in.ID, r.Email, r.FirstName, r.LastName, i)
		if err != nil {
			return fmt.Errorf("postgres: failed to save recipient: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: failed to commit intent: %w", err)
	}
	return nil
}

// LoadIntent rehydrates a persisted intent, recipients in their stored
// order. Absent ids return (nil, nil).
func (s *Store) LoadIntent(ctx context.Context, id uuid.UUID) (*dispatch.Intent, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, subject, message, header, footer, markdown, account_id, attachments
		FROM email_intent WHERE id = $1`, id)

	in := &dispatch.Intent{Recipients: dispatch.NewRecipientSet()}
	var accountID *uuid.UUID
	err := row.Scan(&in.ID, &in.Subject, &in.Message, &in.Header, &in.Footer,
		&in.Markdown, &accountID, &in.Attachments)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: failed to load intent: %w", err)
	}
	if accountID != nil {
		in.AccountID = *accountID
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, email, first_name, last_name
		FROM email_recipient WHERE intent_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to load recipients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r dispatch.Recipient
		if err := rows.Scan(&r.ID, &r.Email, &r.FirstName, &r.LastName); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan recipient: %w", err)
		}
		in.Recipients.Restore(&r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to read recipients: %w", err)
	}

	return in, nil
}

// DeleteIntent implements dispatch.IntentDeleter. Recipients go with the
// intent via cascade.
func (s *Store) DeleteIntent(ctx context.Context, id uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM email_intent WHERE id = $1`, id); err != nil {
		return fmt.Errorf("postgres: failed to delete intent: %w", err)
	}
	return nil
}

// LogSent implements dispatch.SentLogger.
func (s *Store) LogSent(ctx context.Context, intentID uuid.UUID, r *dispatch.Recipient, subject string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sent_email (intent_id, recipient_email, subject)
		VALUES ($1, $2, $3)`,
		intentID, r.Email, subject)
	if err != nil {
		return fmt.Errorf("postgres: failed to log sent email: %w", err)
	}
	return nil
}

// PurgeSentBefore deletes audit rows older than the cutoff and reports how
// many were removed.
func (s *Store) PurgeSentBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sent_email WHERE sent_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to purge sent log: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PurgeIntentsBefore deletes intents created before the cutoff. Intents
// are normally deleted by the pipeline after a send; this catches the ones
// that were drafted and abandoned.
func (s *Store) PurgeIntentsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM email_intent WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to purge intents: %w", err)
	}
	return tag.RowsAffected(), nil
}

var (
	_ dispatch.IntentDeleter = (*Store)(nil)
	_ dispatch.SentLogger    = (*Store)(nil)
)
