package dispatch

import "errors"

var (
	// ErrInvalidSpecifier indicates a malformed recipient specifier, such as
	// the zero value or a contact variant without a contact.
	ErrInvalidSpecifier = errors.New("dispatch: invalid recipient specifier")

	// ErrNoAccount indicates no transport account could be resolved for the
	// send. Raised at send time only, never at intent construction.
	ErrNoAccount = errors.New("dispatch: no transport account available")

	// ErrAttachmentMissing indicates an attachment reference could not be
	// loaded. This aborts the whole send before any transmission.
	ErrAttachmentMissing = errors.New("dispatch: attachment missing")

	// ErrNoTransport indicates the pipeline was built without a transport
	// factory.
	ErrNoTransport = errors.New("dispatch: no transport factory configured")

	// ErrNoRawMessage is returned by SentMessage on transports that cannot
	// reproduce the raw MIME form of the last sent message. Archival is
	// skipped for such transports.
	ErrNoRawMessage = errors.New("dispatch: transport does not expose the sent message")
)
