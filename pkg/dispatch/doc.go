// Package dispatch implements an outbound email engine: recipient
// resolution, per-recipient template rendering, and a send pipeline with
// partial-failure aggregation and optional archival of sent messages.
//
// An Intent collects the subject and message template sources, a
// deduplicated recipient set, attachment references, and the account to
// send from. Pipeline.Send consumes the intent: it renders the templates
// once per recipient (binding recipient_firstname, recipient_lastname, and
// recipient_email), wraps the message with the intent's header and footer,
// derives a plain-text alternative, and transmits through a Transport.
// One recipient's failure never stops the batch; the SendResult carries a
// per-recipient outcome list.
//
// Transports are pluggable. pkg/dispatch/smtp sends through an SMTP
// session with connection reuse across a batch; pkg/dispatch/resend sends
// through the Resend API. pkg/dispatch/imap archives sent messages to the
// account's IMAP folder when the transport can reproduce the raw MIME
// form.
//
// Minimal usage:
//
//	accounts := dispatch.NewStaticAccounts(&dispatch.Account{
//		Address:  "team@example.com",
//		SMTPHost: "mail.example.com",
//		SMTPPort: 587,
//		Username: "team",
//		Password: "secret",
//	})
//	p := dispatch.NewPipeline(smtp.Factory(), accounts)
//
//	in := dispatch.NewIntent("Welcome, {$recipient_firstname}", "<p>Hello {$recipient_firstname}!</p>")
//	in.AddRecipient(ctx, dispatch.NewResolver(nil), dispatch.FromAddress("ann@example.com"))
//
//	result, err := p.Send(ctx, in)
package dispatch
