package dispatch

import "context"

// Attachment is a file attached to an outgoing message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Transport is the boundary to an outbound message channel. A transport
// accumulates state between calls the way an SMTP session does: addressees
// collect across AddAddress calls until ClearAddresses, attachments persist
// for the transport's lifetime, and subject/body are overwritten per
// message. A transport instance is owned exclusively by one send invocation.
type Transport interface {
	// AddAddress adds an addressee for the next Send.
	AddAddress(address, displayName string) error

	// SetSubject sets the subject of the next Send.
	SetSubject(subject string)

	// SetBody sets the HTML body and its plain-text alternative.
	SetBody(html, text string)

	// Attach adds an attachment carried by every subsequent Send.
	Attach(att Attachment)

	// ClearAddresses drops all accumulated addressees.
	ClearAddresses()

	// KeepAlive hints that the underlying connection should stay open
	// across consecutive sends. Transports may ignore it; results must
	// stay correct, only slower.
	KeepAlive(enabled bool)

	// Send transmits one message to the accumulated addressees.
	Send(ctx context.Context) error

	// SentMessage returns the raw MIME form of the last sent message for
	// archival, or ErrNoRawMessage when the transport cannot reproduce it.
	SentMessage() ([]byte, error)

	// Close releases the connection, if any.
	Close() error
}

// TransportFactory builds transports bound to an account's connection and
// auth parameters.
type TransportFactory interface {
	Transport(account *Account) (Transport, error)
}

// TransportFactoryFunc adapts a function to the TransportFactory interface.
type TransportFactoryFunc func(account *Account) (Transport, error)

func (f TransportFactoryFunc) Transport(account *Account) (Transport, error) {
	return f(account)
}
