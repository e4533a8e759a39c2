package message

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/crm-api/internal/email"
	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/service/permission"
	"github.com/jwalitptl/crm-api/internal/service/tenant"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
	"github.com/jwalitptl/crm-api/pkg/logger"
	"github.com/jwalitptl/crm-api/pkg/metrics"
)

const baseURL = "https://crm.test"

type fixture struct {
	svc      *Service
	messages *fakeMessages
	links    *fakeLinks
	mailer   *fakeMailer
	notifier *fakeNotifier
	company  *model.Company
	author   *model.User
	tc       *tenant.Context
}

func newFixture(perms ...string) *fixture {
	company := &model.Company{Name: "Acme", IsActive: true, Language: "en"}
	company.ID = uuid.New()
	author := &model.User{Email: "author@acme.test"}
	author.ID = uuid.New()

	f := &fixture{
		messages: &fakeMessages{rows: map[uuid.UUID]*model.Message{}},
		links:    &fakeLinks{},
		mailer:   &fakeMailer{},
		notifier: &fakeNotifier{},
		company:  company,
		author:   author,
		tc:       &tenant.Context{User: author, Company: company, Perms: permission.NewSet(perms...)},
	}
	f.svc = NewService(
		f.messages,
		f.links,
		&fakeCompanies{rows: map[uuid.UUID]*model.Company{company.ID: company}},
		&fakeUsers{rows: map[uuid.UUID]*model.User{author.ID: author}},
		f.mailer,
		f.notifier,
		Config{BaseURL: baseURL},
		logger.Nop(),
		metrics.NewNop(),
	)
	return f
}

func (f *fixture) message(t *testing.T, content string) *model.Message {
	t.Helper()
	uid := f.author.ID
	m := &model.Message{
		CompanyID: f.company.ID,
		UserID:    &uid,
		To:        []string{"lead@example.com"},
		Cc:        []string{"boss@acme.test"},
		Subject:   "Offer",
		Content:   content,
	}
	require.NoError(t, f.svc.CreateMessage(context.Background(), m))
	require.NotEmpty(t, m.Token)
	return m
}

func TestSetLinksRewritesAnchorAndReusesLink(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	m := f.message(t, `<a href="https://example.com/x">text</a>`)
	out, err := f.svc.SetLinks(ctx, m)
	require.NoError(t, err)

	require.Len(t, f.links.rows, 1)
	link := f.links.rows[0]
	assert.Equal(t, "https://example.com/x", link.Destination)
	assert.Equal(t, f.company.ID, link.CompanyID)
	assert.NotContains(t, out, `href="https://example.com/x"`)
	assert.Contains(t, out, baseURL+"/l/"+link.ID.String())

	again := f.message(t, `<p>Again: <a href="https://example.com/x">text</a></p>`)
	_, err = f.svc.SetLinks(ctx, again)
	require.NoError(t, err)
	assert.Len(t, f.links.rows, 1, "same destination reuses the link")
	assert.Contains(t, again.Content, link.ID.String())

	// Already tracked content is left alone.
	before := again.Content
	_, err = f.svc.SetLinks(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, before, again.Content)
	assert.Len(t, f.links.rows, 1)
}

func TestSetLinksSiteRootAlongsideOtherLinks(t *testing.T) {
	f := newFixture()
	m := f.message(t, `<a href="`+baseURL+`">home</a> <a href="https://shop.test/x">shop</a>`)
	out, err := f.svc.SetLinks(context.Background(), m)
	require.NoError(t, err)

	require.Len(t, f.links.rows, 2)
	want := map[string]string{}
	for _, l := range f.links.rows {
		want[l.Destination] = f.svc.LinkURL(l.ID)
	}
	assert.Contains(t, out, `href="`+want[baseURL]+`"`)
	assert.Contains(t, out, `href="`+want["https://shop.test/x"]+`"`)
	assert.NotContains(t, out, "/l/"+f.links.rows[0].ID.String()+"/l/")
	assert.NotContains(t, out, "/l/"+f.links.rows[1].ID.String()+"/l/")
}

func TestSetLinksPlainText(t *testing.T) {
	f := newFixture()
	m := f.message(t, "Docs: https://example.com/a, pricing: https://example.com/a/b.")

	out, err := f.svc.SetLinks(context.Background(), m)
	require.NoError(t, err)
	require.Len(t, f.links.rows, 2)
	assert.NotContains(t, out, "https://example.com")
	assert.True(t, strings.HasSuffix(out, "."))
}

func TestSendDeliversOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	m := f.message(t, `<p>See <a href="https://example.com/x">this</a></p>`)

	res, err := f.svc.Send(ctx, m)
	require.NoError(t, err)
	assert.True(t, res.OK(), res.Message)
	require.NotNil(t, m.DateSend)

	require.Len(t, f.mailer.delivered, 1)
	mail := f.mailer.delivered[0]
	assert.Contains(t, mail.HTML, `<img src="`+baseURL+`/m/p/`+m.Token+`"`)
	assert.NotContains(t, mail.HTML, "https://example.com/x")
	assert.Equal(t, "See this", mail.Text)
	assert.Equal(t, "en", mail.Language)

	stored := f.messages.rows[m.ID]
	sentAt := *stored.DateSend

	res, err = f.svc.Send(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, model.LevelError, res.Level)
	assert.Equal(t, "Message already sent.", res.Message)
	assert.Len(t, f.mailer.delivered, 1)
	assert.Equal(t, sentAt, *f.messages.rows[m.ID].DateSend)
}

func TestSendFailureAllowsRetry(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	m := f.message(t, "Read https://example.com/x")

	f.mailer.err = errors.New("connection refused")
	res, err := f.svc.Send(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, model.LevelError, res.Level)
	assert.Contains(t, res.Message, "connection refused")
	assert.Nil(t, f.messages.rows[m.ID].DateSend)
	assert.Contains(t, f.messages.rows[m.ID].Content, baseURL+"/l/")

	f.mailer.err = nil
	retry, err := f.svc.GetByID(ctx, m.ID)
	require.NoError(t, err)
	res, err = f.svc.Send(ctx, retry)
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Len(t, f.links.rows, 1, "retry does not track links twice")
	assert.NotContains(t, f.mailer.delivered[0].Text, "<img", "plain messages get no pixel")
}

func TestSendWithoutAcceptedRecipientsFails(t *testing.T) {
	f := newFixture()
	f.mailer.accepted = -1
	m := f.message(t, "hello")

	res, err := f.svc.Send(context.Background(), m)
	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.Nil(t, f.messages.rows[m.ID].DateSend)
}

func TestSendUsesCompanyLocale(t *testing.T) {
	f := newFixture()
	f.company.Language = "es-MX"
	m := f.message(t, "hola")

	_, err := f.svc.Send(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, "es", f.mailer.delivered[0].Language)
}

func TestReportBounce(t *testing.T) {
	f := newFixture()
	m := f.message(t, "hello")

	res, err := f.svc.ReportBounce(context.Background(), m, "mailbox full")
	require.NoError(t, err)
	assert.Equal(t, model.LevelWarning, res.Level)
	assert.NotNil(t, f.messages.rows[m.ID].DateFailed)

	require.Len(t, f.mailer.templated, 1)
	assert.Equal(t, email.Bounce, f.mailer.templated[0].name)
	assert.Equal(t, []string{"author@acme.test"}, f.mailer.templated[0].to)

	assert.Equal(t, m.Ref(), res.Source)
	assert.Empty(t, f.notifier.results, "the caller routes the warning")
}

func TestOpenMarksReadOnce(t *testing.T) {
	f := newFixture()
	m := f.message(t, "hello")

	require.NoError(t, f.svc.Open(context.Background(), m.Token))
	first := *f.messages.rows[m.ID].DateRead
	require.NoError(t, f.svc.Open(context.Background(), m.Token))
	assert.Equal(t, first, *f.messages.rows[m.ID].DateRead)

	err := f.svc.Open(context.Background(), "unknown")
	assert.ErrorIs(t, err, apperrors.NotFoundError)
}

func TestVisitRecordsHit(t *testing.T) {
	f := newFixture(model.LinkEntity.Perm(model.ActionAdd))
	link, err := f.svc.CreateLink(context.Background(), f.tc, &model.LinkRequest{Destination: "https://example.com"})
	require.NoError(t, err)

	got, err := f.svc.Visit(context.Background(), link.ID, "203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", got.Destination)
	require.Len(t, f.links.visits, 1)
	assert.Equal(t, f.company.ID, f.links.visits[0].CompanyID)
	assert.Equal(t, "203.0.113.9", f.links.visits[0].IPAddress)
}

func TestCreateAndUpdateAreGuarded(t *testing.T) {
	f := newFixture()
	req := &model.MessageRequest{To: []string{"a@b.com"}, Subject: "s", Content: "c"}

	_, err := f.svc.Create(context.Background(), f.tc, req)
	assert.ErrorIs(t, err, apperrors.PermissionDeniedError)

	f = newFixture(model.MessageEntity.Perm(model.ActionAdd), model.MessageEntity.Perm(model.ActionChange))
	m, err := f.svc.Create(context.Background(), f.tc, req)
	require.NoError(t, err)
	assert.Equal(t, f.author.ID, *m.UserID)

	_, err = f.svc.Send(context.Background(), m)
	require.NoError(t, err)

	_, err = f.svc.Update(context.Background(), f.tc, m.ID, req)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Fields, "content")
}
