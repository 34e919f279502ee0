// Package smtp provides a dispatch.Transport that delivers messages over
// SMTP using go-mail. TLS mode follows the account's port: implicit TLS on
// 465, mandatory STARTTLS on 587, opportunistic STARTTLS otherwise.
//
// With keep-alive enabled the transport dials once and reuses the session
// for every subsequent Send, which avoids repeated connection and auth
// round trips when a batch goes out through the same account.
package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/sendwerk/outbox/pkg/dispatch"
)

const defaultTimeout = 30 * time.Second

// Option configures the factory.
type Option func(*factory)

// WithTimeout sets the connection timeout for every transport the factory
// creates.
func WithTimeout(d time.Duration) Option {
	return func(f *factory) { f.timeout = d }
}

type factory struct {
	timeout time.Duration
}

// Factory returns a transport factory building SMTP transports from an
// account's host, port, and credentials.
func Factory(opts ...Option) dispatch.TransportFactory {
	f := &factory{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(f)
	}
	return dispatch.TransportFactoryFunc(func(account *dispatch.Account) (dispatch.Transport, error) {
		client, err := f.client(account)
		if err != nil {
			return nil, err
		}
		return &transport{client: client, from: account.Sender()}, nil
	})
}

func (f *factory) client(account *dispatch.Account) (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(account.SMTPPort),
		mail.WithTimeout(f.timeout),
	}

	switch account.SMTPPort {
	case 465:
		opts = append(opts, mail.WithSSL())
	case 587:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	if account.AllowSelfSigned {
		opts = append(opts, mail.WithTLSConfig(&tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // operator opted in for this account
			MinVersion:         tls.VersionTLS12,
		}))
	}

	if account.Username != "" && account.Password != "" {
		opts = append(opts,
			mail.WithUsername(account.Username),
			mail.WithPassword(account.Password),
			mail.WithSMTPAuth(mail.SMTPAuthAutoDiscover),
		)
	}

	client, err := mail.NewClient(account.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp: failed to create client: %w", err)
	}
	return client, nil
}

type addressee struct {
	address string
	name    string
}

type transport struct {
	client *mail.Client
	from   string

	addressees  []addressee
	subject     string
	html        string
	text        string
	attachments []dispatch.Attachment

	keepAlive bool
	dialed    bool
	last      *mail.Msg
}

func (t *transport) AddAddress(address, displayName string) error {
	// Validate eagerly so a bad address fails its own recipient, not the
	// whole batch at Send time.
	probe := mail.NewMsg()
	if err := probe.AddTo(address); err != nil {
		return fmt.Errorf("smtp: invalid address %q: %w", address, err)
	}
	t.addressees = append(t.addressees, addressee{address: address, name: displayName})
	return nil
}

func (t *transport) SetSubject(subject string) { t.subject = subject }

func (t *transport) SetBody(html, text string) { t.html, t.text = html, text }

func (t *transport) Attach(att dispatch.Attachment) {
	t.attachments = append(t.attachments, att)
}

func (t *transport) ClearAddresses() { t.addressees = nil }

func (t *transport) KeepAlive(enabled bool) { t.keepAlive = enabled }

func (t *transport) Send(ctx context.Context) error {
	msg, err := t.build()
	if err != nil {
		return err
	}

	if t.keepAlive {
		if !t.dialed {
			if err := t.client.DialWithContext(ctx); err != nil {
				return fmt.Errorf("smtp: dial failed: %w", err)
			}
			t.dialed = true
		}
		err = t.client.Send(msg)
	} else {
		err = t.client.DialAndSendWithContext(ctx, msg)
	}
	if err != nil {
		return fmt.Errorf("smtp: send failed: %w", err)
	}

	t.last = msg
	return nil
}

func (t *transport) build() (*mail.Msg, error) {
	msg := mail.NewMsg()

	if err := msg.From(t.from); err != nil {
		return nil, fmt.Errorf("smtp: invalid sender %q: %w", t.from, err)
	}
	for _, a := range t.addressees {
		var err error
		if a.name != "" {
			err = msg.AddToFormat(a.name, a.address)
		} else {
			err = msg.AddTo(a.address)
		}
		if err != nil {
			return nil, fmt.Errorf("smtp: invalid address %q: %w", a.address, err)
		}
	}

	msg.Subject(t.subject)
	if t.text != "" {
		msg.SetBodyString(mail.TypeTextPlain, t.text)
		msg.AddAlternativeString(mail.TypeTextHTML, t.html)
	} else {
		msg.SetBodyString(mail.TypeTextHTML, t.html)
	}

	for _, att := range t.attachments {
		if err := msg.AttachReader(att.Filename, bytes.NewReader(att.Content),
			mail.WithFileContentType(mail.ContentType(att.ContentType))); err != nil {
			return nil, fmt.Errorf("smtp: failed to attach %s: %w", att.Filename, err)
		}
	}

	return msg, nil
}

// SentMessage serializes the last sent message to its wire form.
func (t *transport) SentMessage() ([]byte, error) {
	if t.last == nil {
		return nil, dispatch.ErrNoRawMessage
	}
	var buf bytes.Buffer
	if _, err := t.last.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("smtp: failed to serialize message: %w", err)
	}
	return buf.Bytes(), nil
}

func (t *transport) Close() error {
	if !t.dialed {
		return nil
	}
	t.dialed = false
	return t.client.Close()
}
