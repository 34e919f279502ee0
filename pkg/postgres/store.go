package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sendwerk/outbox/pkg/dispatch"
	"github.com/sendwerk/outbox/pkg/secrets"
)

// Store is the PostgreSQL persistence layer. It implements the account
// source, address book, intent deleter, and sent logger consumed by the
// send pipeline.
type Store struct {
	pool *pgxpool.Pool
	enc  secrets.Encryptor
}

// NewStore creates a store. The encryptor seals account credentials at
// rest and is required.
func NewStore(pool *pgxpool.Pool, enc secrets.Encryptor) *Store {
	return &Store{pool: pool, enc: enc}
}

// sealedCredentials is the JSON form of everything secret or
// infrastructure-shaped about an account, sealed into one column.
type sealedCredentials struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	SMTPHost        string `json:"smtp_host"`
	SMTPPort        int    `json:"smtp_port"`
	IMAPHost        string `json:"imap_host,omitempty"`
	IMAPPort        int    `json:"imap_port,omitempty"`
	IMAPFolder      string `json:"imap_folder,omitempty"`
	AllowSelfSigned bool   `json:"allow_self_signed,omitempty"`
}

func (s *Store) sealAccount(a *dispatch.Account) (string, error) {
	blob, err := json.Marshal(sealedCredentials{
		Username:        a.Username,
		Password:        a.Password,
		SMTPHost:        a.SMTPHost,
		SMTPPort:        a.SMTPPort,
		IMAPHost:        a.IMAPHost,
		IMAPPort:        a.IMAPPort,
		IMAPFolder:      a.IMAPFolder,
		AllowSelfSigned: a.AllowSelfSigned,
	})
	if err != nil {
		return "", fmt.Errorf("postgres: failed to encode credentials: %w", err)
	}
	sealed, err := s.enc.Encrypt(blob)
	if err != nil {
		return "", fmt.Errorf("postgres: failed to seal credentials: %w", err)
	}
	return string(sealed), nil
}

func (s *Store) unsealAccount(a *dispatch.Account, sealed string) error {
	blob, err := s.enc.Decrypt([]byte(sealed))
	if err != nil {
		return fmt.Errorf("postgres: failed to unseal credentials: %w", err)
	}
	var c sealedCredentials
	if err := json.Unmarshal(blob, &c); err != nil {
		return fmt.Errorf("postgres: failed to decode credentials: %w", err)
	}
	a.Username = c.Username
	a.Password = c.Password
	a.SMTPHost = c.SMTPHost
	a.SMTPPort = c.SMTPPort
	a.IMAPHost = c.IMAPHost
	a.IMAPPort = c.IMAPPort
	a.IMAPFolder = c.IMAPFolder
	a.AllowSelfSigned = c.AllowSelfSigned
	return nil
}

// SaveAccount inserts or updates an account. Position controls default
// selection; the lowest position is the default account.
func (s *Store) SaveAccount(ctx context.Context, a *dispatch.Account, position int) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	sealed, err := s.sealAccount(a)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO email_account (id, address, sender_name, credentials_sealed, position)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			address = EXCLUDED.address,
			sender_name = EXCLUDED.sender_name,
			credentials_sealed = EXCLUDED.credentials_sealed,
			position = EXCLUDED.position`,
		a.ID, a.Address, a.SenderName, sealed, position)
	if err != nil {
		return fmt.Errorf("postgres: failed to save account: %w", err)
	}
	return nil
}

// DeleteAccount removes an account.
func (s *Store) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM email_account WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: failed to delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// AccountByID implements dispatch.AccountSource.
func (s *Store) AccountByID(ctx context.Context, id uuid.UUID) (*dispatch.Account, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, address, sender_name, credentials_sealed
		FROM email_account WHERE id = $1`, id)
	return s.scanAccount(row)
}

// Default implements dispatch.AccountSource. The account with the lowest
// position is the default.
func (s *Store) Default(ctx context.Context) (*dispatch.Account, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, address, sender_name, credentials_sealed
		FROM email_account ORDER BY position, created_at LIMIT 1`)
	return s.scanAccount(row)
}

func (s *Store) scanAccount(row pgx.Row) (*dispatch.Account, error) {
	var (
		a      dispatch.Account
		sealed string
	)
	if err := row.Scan(&a.ID, &a.Address, &a.SenderName, &sealed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: failed to load account: %w", err)
	}
	if err := s.unsealAccount(&a, sealed); err != nil {
		return nil, err
	}
	return &a, nil
}

var _ dispatch.AccountSource = (*Store)(nil)
