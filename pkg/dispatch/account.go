package dispatch

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Account holds the outbound endpoint and credentials messages are sent
// from. The IMAP fields are optional; their absence disables archival for
// sends through this account.
type Account struct {
	ID         uuid.UUID `yaml:"id"`
	Address    string    `yaml:"address"`
	SenderName string    `yaml:"sender_name"`

	SMTPHost string `yaml:"smtp_host"`
	SMTPPort int    `yaml:"smtp_port"`

	IMAPHost   string `yaml:"imap_host"`
	IMAPPort   int    `yaml:"imap_port"`
	IMAPFolder string `yaml:"imap_folder"`

	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// AllowSelfSigned tolerates self-signed server certificates on both
	// the SMTP and IMAP connections.
	AllowSelfSigned bool `yaml:"allow_self_signed"`
}

// Archivable reports whether the account carries an archive endpoint.
func (a *Account) Archivable() bool {
	return a.IMAPHost != "" && a.IMAPPort != 0
}

// Sender returns the RFC 5322 sender, "Name <address>" when a sender name
// is set.
func (a *Account) Sender() string {
	if a.SenderName == "" {
		return a.Address
	}
	return fmt.Sprintf("%s <%s>", a.SenderName, a.Address)
}

// AccountSource resolves transport accounts. Absence is reported as
// (nil, nil); it becomes fatal only when the Send Pipeline consumes it.
type AccountSource interface {
	// AccountByID loads an account by id.
	AccountByID(ctx context.Context, id uuid.UUID) (*Account, error)

	// Default returns the first account in the source's stable order.
	Default(ctx context.Context) (*Account, error)
}

// StaticAccounts is an in-memory AccountSource. The first account is the
// default.
type StaticAccounts struct {
	accounts []*Account
}

// NewStaticAccounts creates a source from an ordered list of accounts.
// Accounts without an id get one assigned.
func NewStaticAccounts(accounts ...*Account) *StaticAccounts {
	for _, a := range accounts {
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
	}
	return &StaticAccounts{accounts: accounts}
}

// AccountByID implements AccountSource.
func (s *StaticAccounts) AccountByID(_ context.Context, id uuid.UUID) (*Account, error) {
	for _, a := range s.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, nil
}

// Default implements AccountSource.
func (s *StaticAccounts) Default(_ context.Context) (*Account, error) {
	if len(s.accounts) == 0 {
		return nil, nil
	}
	return s.accounts[0], nil
}

// AccountsFromYAML reads an ordered list of accounts from YAML. Document
// order defines the default account.
//
//	- address: team@example.com
//	  sender_name: Team
//	  smtp_host: mail.example.com
//	  smtp_port: 587
//	  username: team
//	  password: secret
func AccountsFromYAML(r io.Reader) (*StaticAccounts, error) {
	var accounts []*Account
	if err := yaml.NewDecoder(r).Decode(&accounts); err != nil {
		return nil, fmt.Errorf("dispatch: failed to decode accounts: %w", err)
	}
	return NewStaticAccounts(accounts...), nil
}
