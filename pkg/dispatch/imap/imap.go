// Package imap provides a dispatch.Archiver that appends sent messages to
// an account's IMAP folder, so outbound mail shows up in the account's Sent
// mailbox next to messages sent from a regular client.
//
// Archival is best effort. Any failure, from dialing to the final append,
// yields false; the send outcome is decided before archival runs and is
// never affected by it.
package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"sync"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/sendwerk/outbox/pkg/dispatch"
)

const defaultFolder = "Sent"

// Diagnostic captures a failed append for inspection: the error and, when
// the session got far enough, the server's mailbox listing. The listing is
// what usually explains a failure, a misnamed or missing sent folder.
type Diagnostic struct {
	Account   string
	Error     string
	Mailboxes []string
}

// Archiver appends raw messages to the archive folder of the account they
// were sent from. A fresh connection is made per append; sends are batched
// per account upstream, so the extra dials only occur between batches.
type Archiver struct {
	log     *slog.Logger
	collect bool

	mu    sync.Mutex
	diags []Diagnostic
}

// Option configures an Archiver.
type Option func(*Archiver)

// WithLogger enables diagnostics logging for failed appends. Defaults to a
// discard logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *Archiver) { a.log = log }
}

// WithDiagnostics records failed appends for retrieval via Diagnostics,
// including the server's mailbox listing when the session got past login.
func WithDiagnostics() Option {
	return func(a *Archiver) { a.collect = true }
}

// New creates an archiver.
func New(opts ...Option) *Archiver {
	a := &Archiver{log: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Diagnostics returns the failures recorded since the last call and clears
// the record. Empty unless WithDiagnostics was set.
func (a *Archiver) Diagnostics() []Diagnostic {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.diags
	a.diags = nil
	return out
}

// Archive implements dispatch.Archiver. Accounts without an IMAP endpoint
// return false without connecting.
func (a *Archiver) Archive(ctx context.Context, message []byte, account *dispatch.Account) bool {
	if !account.Archivable() {
		return false
	}

	mailboxes, err := a.append(ctx, message, account)
	if err == nil {
		return true
	}

	a.log.WarnContext(ctx, "imap append failed",
		slog.String("account", account.Address),
		slog.String("host", account.IMAPHost),
		slog.String("error", err.Error()))

	if a.collect {
		a.mu.Lock()
		a.diags = append(a.diags, Diagnostic{
			Account:   account.Address,
			Error:     err.Error(),
			Mailboxes: mailboxes,
		})
		a.mu.Unlock()
	}
	return false
}

// append connects, logs in, and appends the message. On append-stage
// failures it also returns the server's mailbox listing for diagnostics.
func (a *Archiver) append(ctx context.Context, message []byte, account *dispatch.Account) ([]string, error) {
	addr := fmt.Sprintf("%s:%d", account.IMAPHost, account.IMAPPort)

	var options imapclient.Options
	if account.AllowSelfSigned {
		options.TLSConfig = &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // operator opted in for this account
			MinVersion:         tls.VersionTLS12,
		}
	}

	// Port 993 is implicit TLS; everything else negotiates STARTTLS.
	var (
		client *imapclient.Client
		err    error
	)
	if account.IMAPPort == 993 {
		client, err = imapclient.DialTLS(addr, &options)
	} else {
		client, err = imapclient.DialStartTLS(addr, &options)
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer client.Close()

	if err := client.Login(account.Username, account.Password).Wait(); err != nil {
		return nil, fmt.Errorf("login %s: %w", account.Username, err)
	}

	folder := account.IMAPFolder
	if folder == "" {
		folder = defaultFolder
	}

	if err := a.appendTo(client, folder, message); err != nil {
		return a.listMailboxes(client), fmt.Errorf("append to %q: %w", folder, err)
	}

	if err := client.Logout().Wait(); err != nil {
		a.log.Debug("imap logout failed", slog.String("error", err.Error()))
	}
	return nil, nil
}

func (a *Archiver) appendTo(client *imapclient.Client, folder string, message []byte) error {
	cmd := client.Append(folder, int64(len(message)), &imap.AppendOptions{
		Flags: []imap.Flag{imap.FlagSeen},
	})
	if _, err := cmd.Write(message); err != nil {
		return err
	}
	if err := cmd.Close(); err != nil {
		return err
	}
	_, err := cmd.Wait()
	return err
}

func (a *Archiver) listMailboxes(client *imapclient.Client) []string {
	if !a.collect {
		return nil
	}
	boxes, err := client.List("", "*", nil).Collect()
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(boxes))
	for _, b := range boxes {
		names = append(names, b.Mailbox)
	}
	return names
}
