package dispatch

// Outcome classifies the delivery attempt for a single recipient.
type Outcome int

const (
	// OutcomeFailed means the transport rejected or failed the transmission.
	OutcomeFailed Outcome = iota

	// OutcomeSent means the transport accepted the message.
	OutcomeSent
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSent:
		return "sent"
	default:
		return "failed"
	}
}

// RecipientOutcome records the result of one recipient's transmission.
type RecipientOutcome struct {
	Recipient *Recipient
	Outcome   Outcome

	// Archived reports whether the sent message was appended to the
	// account's archive folder. Always false for failed sends, for
	// transports without raw message access, and for accounts without an
	// archive endpoint.
	Archived bool

	// Err holds the transmission error for failed outcomes.
	Err error
}

// SendResult aggregates per-recipient outcomes of a send. Delivery failures
// for individual recipients never abort the batch, so a result can mix sent
// and failed entries.
type SendResult struct {
	AnySucceeded bool
	Outcomes     []RecipientOutcome
}

// SentCount returns the number of successful transmissions.
func (r *SendResult) SentCount() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Outcome == OutcomeSent {
			n++
		}
	}
	return n
}

// FailedCount returns the number of failed transmissions.
func (r *SendResult) FailedCount() int {
	return len(r.Outcomes) - r.SentCount()
}
