package dispatch

import (
	"context"
	"fmt"
	"html"
)

// ReportError emails an error description to operator addresses through the
// regular pipeline. Invalid addresses are skipped; the send proceeds with
// whatever resolves. It returns an error when no recipient resolves or the
// send itself fails fatally.
func ReportError(ctx context.Context, p *Pipeline, recipients []string, subject string, cause error) error {
	in := NewIntent(subject, fmt.Sprintf("<pre>%s</pre>", html.EscapeString(cause.Error())))

	res := NewResolver(nil)
	for _, addr := range recipients {
		if _, err := in.AddRecipient(ctx, res, FromAddress(addr)); err != nil {
			return err
		}
	}
	if in.Recipients.Len() == 0 {
		return fmt.Errorf("dispatch: no valid report recipient among %d addresses", len(recipients))
	}

	_, err := p.Send(ctx, in)
	return err
}
