// Package resend provides a dispatch.Transport that delivers messages
// through the Resend API. The API gives no access to the raw MIME form of
// a sent message, so archival is skipped for this transport.
package resend

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v3"

	"github.com/sendwerk/outbox/pkg/dispatch"
)

// Config holds Resend provider configuration.
// Embed this in your app config for env parsing with caarlos0/env.
type Config struct {
	APIKey string `env:"RESEND_API_KEY"`
}

// Factory returns a transport factory building Resend transports. The
// account contributes only the sender identity; connection and auth go
// through the Resend API key.
func Factory(cfg Config) dispatch.TransportFactory {
	client := resend.NewClient(cfg.APIKey)
	return dispatch.TransportFactoryFunc(func(account *dispatch.Account) (dispatch.Transport, error) {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("resend: missing API key")
		}
		return &transport{client: client, from: account.Sender()}, nil
	})
}

type transport struct {
	client *resend.Client
	from   string

	to          []string
	subject     string
	html        string
	text        string
	attachments []*resend.Attachment
}

func (t *transport) AddAddress(address, displayName string) error {
	if !dispatch.ValidAddress(address) {
		return fmt.Errorf("resend: invalid address %q", address)
	}
	if displayName != "" {
		t.to = append(t.to, fmt.Sprintf("%s <%s>", displayName, address))
		return nil
	}
	t.to = append(t.to, address)
	return nil
}

func (t *transport) SetSubject(subject string) { t.subject = subject }

func (t *transport) SetBody(html, text string) { t.html, t.text = html, text }

func (t *transport) Attach(att dispatch.Attachment) {
	t.attachments = append(t.attachments, &resend.Attachment{
		Filename:    att.Filename,
		Content:     att.Content,
		ContentType: att.ContentType,
	})
}

func (t *transport) ClearAddresses() { t.to = nil }

// KeepAlive is a no-op; the API client holds no connection.
func (t *transport) KeepAlive(bool) {}

func (t *transport) Send(ctx context.Context) error {
	req := &resend.SendEmailRequest{
		From:        t.from,
		To:          t.to,
		Subject:     t.subject,
		Html:        t.html,
		Text:        t.text,
		Attachments: t.attachments,
	}
	if _, err := t.client.Emails.SendWithContext(ctx, req); err != nil {
		return fmt.Errorf("resend: failed to send email: %w", err)
	}
	return nil
}

func (t *transport) SentMessage() ([]byte, error) {
	return nil, dispatch.ErrNoRawMessage
}

func (t *transport) Close() error { return nil }
