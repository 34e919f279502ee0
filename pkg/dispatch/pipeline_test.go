package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sendwerk/outbox/pkg/dispatch"
	"github.com/sendwerk/outbox/pkg/template"
)

type sentMessage struct {
	addresses   []string
	names       []string
	subject     string
	html        string
	text        string
	attachments int
}

// fakeTransport accumulates addressee state like an SMTP session does and
// snapshots every Send.
type fakeTransport struct {
	mu          sync.Mutex
	addresses   []string
	names       []string
	subject     string
	html        string
	text        string
	attachments []dispatch.Attachment
	sent        []sentMessage
	keepAlive   bool
	closed      bool

	raw     []byte // nil means SentMessage returns ErrNoRawMessage
	failFor map[string]error
}

func (f *fakeTransport) AddAddress(address, displayName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addresses = append(f.addresses, address)
	f.names = append(f.names, displayName)
	return nil
}

func (f *fakeTransport) SetSubject(subject string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subject = subject
}

func (f *fakeTransport) SetBody(html, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.html, f.text = html, text
}

func (f *fakeTransport) Attach(att dispatch.Attachment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attachments = append(f.attachments, att)
}

func (f *fakeTransport) ClearAddresses() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addresses = nil
	f.names = nil
}

func (f *fakeTransport) KeepAlive(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keepAlive = enabled
}

func (f *fakeTransport) Send(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, addr := range f.addresses {
		if err, ok := f.failFor[addr]; ok {
			return err
		}
	}
	f.sent = append(f.sent, sentMessage{
		addresses:   append([]string(nil), f.addresses...),
		names:       append([]string(nil), f.names...),
		subject:     f.subject,
		html:        f.html,
		text:        f.text,
		attachments: len(f.attachments),
	})
	return nil
}

func (f *fakeTransport) SentMessage() ([]byte, error) {
	if f.raw == nil {
		return nil, dispatch.ErrNoRawMessage
	}
	return f.raw, nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// fakeFactory hands out transports configured by the prototype fields and
// remembers every transport it created.
type fakeFactory struct {
	mu      sync.Mutex
	created []*fakeTransport
	raw     []byte
	failFor map[string]error
	err     error
}

func (f *fakeFactory) Transport(_ *dispatch.Account) (dispatch.Transport, error) {
	if f.err != nil {
		return nil, f.err
	}
	tr := &fakeTransport{raw: f.raw, failFor: f.failFor}
	f.mu.Lock()
	f.created = append(f.created, tr)
	f.mu.Unlock()
	return tr, nil
}

func (f *fakeFactory) last(t *testing.T) *fakeTransport {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.created)
	return f.created[len(f.created)-1]
}

type notification struct {
	message  string
	severity dispatch.Severity
}

type fakeNotifier struct {
	mu   sync.Mutex
	seen []notification
}

func (f *fakeNotifier) Notify(_ context.Context, message string, severity dispatch.Severity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, notification{message, severity})
}

type fakeArchiver struct {
	mu       sync.Mutex
	ok       bool
	messages [][]byte
}

func (f *fakeArchiver) Archive(_ context.Context, message []byte, _ *dispatch.Account) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
	return f.ok
}

type fakeAttachments struct {
	files map[uuid.UUID]*dispatch.Attachment
}

func (f *fakeAttachments) Attachment(_ context.Context, id uuid.UUID) (*dispatch.Attachment, error) {
	return f.files[id], nil
}

type fakeDeleter struct {
	mu      sync.Mutex
	deleted []uuid.UUID
	err     error
}

func (f *fakeDeleter) DeleteIntent(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return f.err
}

type loggedSend struct {
	intentID uuid.UUID
	email    string
	subject  string
}

type fakeSentLog struct {
	mu      sync.Mutex
	entries []loggedSend
}

func (f *fakeSentLog) LogSent(_ context.Context, intentID uuid.UUID, r *dispatch.Recipient, subject string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, loggedSend{intentID, r.Email, subject})
	return nil
}

func testAccounts() *dispatch.StaticAccounts {
	return dispatch.NewStaticAccounts(&dispatch.Account{
		Address:  "team@example.com",
		SMTPHost: "mail.example.com",
		SMTPPort: 587,
	})
}

func intentWith(t *testing.T, subject, message string, addresses ...string) *dispatch.Intent {
	t.Helper()
	in := dispatch.NewIntent(subject, message)
	res := dispatch.NewResolver(nil)
	for _, addr := range addresses {
		added, err := in.AddRecipient(context.Background(), res, dispatch.FromAddress(addr))
		require.NoError(t, err)
		require.True(t, added)
	}
	return in
}

func TestPipeline_SendRendersPerRecipient(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{}
	p := dispatch.NewPipeline(factory, testAccounts())

	in := intentWith(t, "Hi {$recipient_firstname}", "<p>Mail for {$recipient_email}</p>",
		"ann@example.com", "bob@example.com")
	in.Recipients.All()[0].FirstName = "Ann"
	in.Header = "<header/>"
	in.Footer = "<footer/>"

	result, err := p.Send(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, result.AnySucceeded)
	assert.Equal(t, 2, result.SentCount())

	tr := factory.last(t)
	require.Len(t, tr.sent, 2)

	first := tr.sent[0]
	assert.Equal(t, []string{"ann@example.com"}, first.addresses)
	assert.Equal(t, "Hi Ann", first.subject)
	assert.Equal(t, "<header/><p>Mail for ann@example.com</p><footer/>", first.html)
	assert.Contains(t, first.text, "Mail for ann@example.com")

	second := tr.sent[1]
	assert.Equal(t, []string{"bob@example.com"}, second.addresses)
	assert.Equal(t, "Hi ", second.subject, "recipients without a name bind the empty string")

	assert.True(t, tr.keepAlive)
	assert.True(t, tr.closed)
	assert.Empty(t, tr.addresses)
}

func TestPipeline_SendSingleRecipientNoKeepAlive(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{}
	p := dispatch.NewPipeline(factory, testAccounts())

	in := intentWith(t, "s", "m", "ann@example.com")
	_, err := p.Send(context.Background(), in)
	require.NoError(t, err)

	assert.False(t, factory.last(t).keepAlive)
}

func TestPipeline_SendPartialFailure(t *testing.T) {
	t.Parallel()

	sendErr := errors.New("mailbox full")
	factory := &fakeFactory{failFor: map[string]error{"bob@example.com": sendErr}}
	notifier := &fakeNotifier{}
	p := dispatch.NewPipeline(factory, testAccounts(), dispatch.WithNotifier(notifier))

	in := intentWith(t, "s", "m", "ann@example.com", "bob@example.com", "cay@example.com")
	result, err := p.Send(context.Background(), in)
	require.NoError(t, err)

	assert.True(t, result.AnySucceeded)
	assert.Equal(t, 2, result.SentCount())
	assert.Equal(t, 1, result.FailedCount())

	require.Len(t, result.Outcomes, 3)
	assert.Equal(t, "ann@example.com", result.Outcomes[0].Recipient.Email)
	assert.Equal(t, dispatch.OutcomeSent, result.Outcomes[0].Outcome)
	assert.Equal(t, dispatch.OutcomeFailed, result.Outcomes[1].Outcome)
	assert.ErrorIs(t, result.Outcomes[1].Err, sendErr)
	assert.Equal(t, dispatch.OutcomeSent, result.Outcomes[2].Outcome)

	require.Len(t, notifier.seen, 3)
	assert.Equal(t, dispatch.SeveritySuccess, notifier.seen[0].severity)
	assert.Equal(t, dispatch.SeverityError, notifier.seen[1].severity)
	assert.Contains(t, notifier.seen[1].message, "bob@example.com")
}

func TestPipeline_SendAllFailed(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{failFor: map[string]error{"ann@example.com": errors.New("rejected")}}
	called := false
	p := dispatch.NewPipeline(factory, testAccounts())

	in := intentWith(t, "s", "m", "ann@example.com")
	in.OnSuccess = func(context.Context, any) { called = true }

	result, err := p.Send(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, result.AnySucceeded)
	assert.False(t, called, "OnSuccess must not run when nothing was sent")
}

func TestPipeline_SendOnSuccessReceivesModel(t *testing.T) {
	t.Parallel()

	p := dispatch.NewPipeline(&fakeFactory{}, testAccounts())

	in := intentWith(t, "s", "m", "ann@example.com")
	in.Model = "order-42"
	var got any
	in.OnSuccess = func(_ context.Context, model any) { got = model }

	_, err := p.Send(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "order-42", got)
}

func TestPipeline_SendNoRecipients(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{}
	deleter := &fakeDeleter{}
	p := dispatch.NewPipeline(factory, testAccounts(), dispatch.WithIntentDeleter(deleter))

	in := dispatch.NewIntent("s", "m")
	result, err := p.Send(context.Background(), in)
	require.NoError(t, err)

	assert.False(t, result.AnySucceeded)
	assert.Empty(t, result.Outcomes)
	assert.Empty(t, factory.created, "no transport should be opened for an empty batch")
	assert.Equal(t, []uuid.UUID{in.ID}, deleter.deleted)
}

func TestPipeline_SendNoAccount(t *testing.T) {
	t.Parallel()

	p := dispatch.NewPipeline(&fakeFactory{}, dispatch.NewStaticAccounts())

	in := intentWith(t, "s", "m", "ann@example.com")
	_, err := p.Send(context.Background(), in)
	require.ErrorIs(t, err, dispatch.ErrNoAccount)
}

func TestPipeline_SendAccountFallback(t *testing.T) {
	t.Parallel()

	p := dispatch.NewPipeline(&fakeFactory{}, testAccounts())

	in := intentWith(t, "s", "m", "ann@example.com")
	in.AccountID = uuid.New() // vanished account falls back to default

	result, err := p.Send(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, result.AnySucceeded)
}

func TestPipeline_SendMalformedTemplate(t *testing.T) {
	t.Parallel()

	p := dispatch.NewPipeline(&fakeFactory{}, testAccounts())

	in := intentWith(t, "{Subject}unclosed", "m", "ann@example.com")
	_, err := p.Send(context.Background(), in)
	require.Error(t, err)
}

func TestPipeline_SendAttachments(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	loader := &fakeAttachments{files: map[uuid.UUID]*dispatch.Attachment{
		id: {Filename: "report.pdf", ContentType: "application/pdf", Content: []byte("%PDF")},
	}}
	factory := &fakeFactory{}
	p := dispatch.NewPipeline(factory, testAccounts(), dispatch.WithAttachments(loader))

	in := intentWith(t, "s", "m", "ann@example.com")
	in.AddAttachment(id)

	_, err := p.Send(context.Background(), in)
	require.NoError(t, err)

	tr := factory.last(t)
	require.Len(t, tr.attachments, 1)
	assert.Equal(t, "report.pdf", tr.attachments[0].Filename)
	assert.Equal(t, 1, tr.sent[0].attachments)
}

func TestPipeline_SendAttachmentMissing(t *testing.T) {
	t.Parallel()

	loader := &fakeAttachments{files: map[uuid.UUID]*dispatch.Attachment{}}
	factory := &fakeFactory{}
	p := dispatch.NewPipeline(factory, testAccounts(), dispatch.WithAttachments(loader))

	in := intentWith(t, "s", "m", "ann@example.com")
	in.AddAttachment(uuid.New())

	_, err := p.Send(context.Background(), in)
	require.ErrorIs(t, err, dispatch.ErrAttachmentMissing)
	assert.Empty(t, factory.created, "missing attachment must abort before any transmission")
}

func TestPipeline_SendMarkdown(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{}
	p := dispatch.NewPipeline(factory, testAccounts())

	in := intentWith(t, "s", "Hello **{$recipient_firstname}**", "ann@example.com")
	in.Recipients.All()[0].FirstName = "Ann"
	in.Markdown = true

	_, err := p.Send(context.Background(), in)
	require.NoError(t, err)

	assert.Contains(t, factory.last(t).sent[0].html, "<strong>Ann</strong>")
}

func TestPipeline_SendArchives(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{raw: []byte("raw mime")}
	archiver := &fakeArchiver{ok: true}
	p := dispatch.NewPipeline(factory, testAccounts(), dispatch.WithArchiver(archiver))

	in := intentWith(t, "s", "m", "ann@example.com")
	result, err := p.Send(context.Background(), in)
	require.NoError(t, err)

	assert.True(t, result.Outcomes[0].Archived)
	require.Len(t, archiver.messages, 1)
	assert.Equal(t, []byte("raw mime"), archiver.messages[0])
}

func TestPipeline_SendArchiveSkippedWithoutRawMessage(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{} // SentMessage yields ErrNoRawMessage
	archiver := &fakeArchiver{ok: true}
	p := dispatch.NewPipeline(factory, testAccounts(), dispatch.WithArchiver(archiver))

	in := intentWith(t, "s", "m", "ann@example.com")
	result, err := p.Send(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, dispatch.OutcomeSent, result.Outcomes[0].Outcome)
	assert.False(t, result.Outcomes[0].Archived)
	assert.Empty(t, archiver.messages)
}

func TestPipeline_SendArchiveFailureKeepsSentOutcome(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{raw: []byte("raw mime")}
	archiver := &fakeArchiver{ok: false}
	p := dispatch.NewPipeline(factory, testAccounts(), dispatch.WithArchiver(archiver))

	in := intentWith(t, "s", "m", "ann@example.com")
	result, err := p.Send(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, dispatch.OutcomeSent, result.Outcomes[0].Outcome)
	assert.False(t, result.Outcomes[0].Archived)
}

func TestPipeline_SendRecordsSentLogAndDeletesIntent(t *testing.T) {
	t.Parallel()

	sentLog := &fakeSentLog{}
	deleter := &fakeDeleter{}
	p := dispatch.NewPipeline(&fakeFactory{}, testAccounts(),
		dispatch.WithSentLog(sentLog),
		dispatch.WithIntentDeleter(deleter),
	)

	in := intentWith(t, "Welcome", "m", "ann@example.com")
	_, err := p.Send(context.Background(), in)
	require.NoError(t, err)

	require.Len(t, sentLog.entries, 1)
	assert.Equal(t, in.ID, sentLog.entries[0].intentID)
	assert.Equal(t, "ann@example.com", sentLog.entries[0].email)
	assert.Equal(t, "Welcome", sentLog.entries[0].subject)

	assert.Equal(t, []uuid.UUID{in.ID}, deleter.deleted)
}

func TestPipeline_SendParallel(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{failFor: map[string]error{"bob@example.com": errors.New("rejected")}}
	p := dispatch.NewPipeline(factory, testAccounts(), dispatch.WithConcurrency(3))

	in := intentWith(t, "Hi {$recipient_email}", "m",
		"ann@example.com", "bob@example.com", "cay@example.com")
	result, err := p.Send(context.Background(), in)
	require.NoError(t, err)

	assert.Len(t, factory.created, 3, "parallel mode opens one transport per recipient")
	for _, tr := range factory.created {
		assert.True(t, tr.closed)
	}

	require.Len(t, result.Outcomes, 3)
	assert.Equal(t, "ann@example.com", result.Outcomes[0].Recipient.Email)
	assert.Equal(t, dispatch.OutcomeSent, result.Outcomes[0].Outcome)
	assert.Equal(t, "bob@example.com", result.Outcomes[1].Recipient.Email)
	assert.Equal(t, dispatch.OutcomeFailed, result.Outcomes[1].Outcome)
	assert.Equal(t, "cay@example.com", result.Outcomes[2].Recipient.Email)
	assert.Equal(t, dispatch.OutcomeSent, result.Outcomes[2].Outcome)
}

func TestPipeline_SendHooksRunPerRecipient(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{}
	p := dispatch.NewPipeline(factory, testAccounts())

	in := intentWith(t, "s", "Dear {$salutation}", "ann@example.com", "bob@example.com")
	in.MessageHook = func(r *dispatch.Recipient, tpl *template.Template) {
		tpl.TryBind("salutation", fmt.Sprintf("customer %s", r.Email))
	}

	_, err := p.Send(context.Background(), in)
	require.NoError(t, err)

	tr := factory.last(t)
	require.Len(t, tr.sent, 2)
	assert.Contains(t, tr.sent[0].html, "customer ann@example.com")
	assert.Contains(t, tr.sent[1].html, "customer bob@example.com")
}

func TestReportError(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{}
	p := dispatch.NewPipeline(factory, testAccounts())

	cause := errors.New("worker crashed: <nil> pointer")
	err := dispatch.ReportError(context.Background(), p, []string{"not-an-address", "ops@example.com"}, "Nightly job failed", cause)
	require.NoError(t, err)

	tr := factory.last(t)
	require.Len(t, tr.sent, 1)
	assert.Equal(t, []string{"ops@example.com"}, tr.sent[0].addresses)
	assert.Equal(t, "Nightly job failed", tr.sent[0].subject)
	assert.Contains(t, tr.sent[0].html, "worker crashed")
	assert.Contains(t, tr.sent[0].html, "&lt;nil&gt;")
}

func TestReportError_NoValidRecipient(t *testing.T) {
	t.Parallel()

	p := dispatch.NewPipeline(&fakeFactory{}, testAccounts())

	err := dispatch.ReportError(context.Background(), p, []string{"nope"}, "s", errors.New("x"))
	require.Error(t, err)
}
