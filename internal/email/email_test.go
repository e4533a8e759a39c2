package email

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/pkg/logger"
	"github.com/jwalitptl/crm-api/pkg/security"
)

type recordingDialer struct {
	conn Connection
	sent []*gomail.Message
	err  error
}

func (d *recordingDialer) DialAndSend(m ...*gomail.Message) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, m...)
	return nil
}

func newSender(d *recordingDialer) *SMTPSender {
	fallback := Connection{Host: "smtp.shared", Port: 587, From: "noreply@crm.test"}
	return NewSMTPSender(fallback, logger.Nop()).WithDialer(func(c Connection) Dialer {
		d.conn = c
		return d
	})
}

func TestSendUsesFallbackConnection(t *testing.T) {
	d := &recordingDialer{}
	s := newSender(d)

	n, err := s.Send(context.Background(), nil, &Mail{To: []string{"a@b.com"}, Cc: []string{"c@d.com"}, Subject: "hi", Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "smtp.shared", d.conn.Host)
	require.Len(t, d.sent, 1)
	assert.Equal(t, []string{"noreply@crm.test"}, d.sent[0].GetHeader("From"))
	assert.Equal(t, []string{"c@d.com"}, d.sent[0].GetHeader("Cc"))
}

func TestSendUsesCompanyConnection(t *testing.T) {
	d := &recordingDialer{}
	s := newSender(d)

	conn := &Connection{Host: "smtp.acme", Port: 465, User: "u", Password: "p", From: "sales@acme.test"}
	_, err := s.Send(context.Background(), conn, &Mail{To: []string{"a@b.com"}, Subject: "hi", Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "smtp.acme", d.conn.Host)
	assert.Equal(t, []string{"sales@acme.test"}, d.sent[0].GetHeader("From"))
}

func TestSendReportsFailure(t *testing.T) {
	d := &recordingDialer{err: errors.New("535 auth failed")}
	s := newSender(d)

	n, err := s.Send(context.Background(), nil, &Mail{To: []string{"a@b.com"}, Subject: "hi"})
	assert.Error(t, err)
	assert.Zero(t, n)

	_, err = s.Send(context.Background(), nil, &Mail{Subject: "nobody"})
	assert.ErrorIs(t, err, ErrNoRecipients)
}

func TestRenderTemplates(t *testing.T) {
	tpl, err := NewTemplates()
	require.NoError(t, err)

	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	m, err := tpl.Render(Activation, KeyData{
		Site: "CRM", Name: "Ada", URL: "https://crm.test/activate/k", Expires: now.Add(48 * time.Hour), Now: now,
	})
	require.NoError(t, err)
	assert.Equal(t, "Activate your CRM account", m.Subject)
	assert.Contains(t, m.Text, "https://crm.test/activate/k")
	assert.Contains(t, m.Text, "from now")
	assert.Contains(t, m.HTML, `href="https://crm.test/activate/k"`)

	m, err = tpl.Render(Reminder, ReminderData{Title: "Demo", Start: now, Minutes: 30, URL: "https://crm.test/e/demo"})
	require.NoError(t, err)
	assert.Equal(t, "Reminder: Demo starts in 30 minutes", m.Subject)

	m, err = tpl.Render(OpsReport, OpsData{Site: "CRM", Action: "send", Error: "boom"})
	require.NoError(t, err)
	assert.Empty(t, m.HTML)
	assert.Contains(t, m.Text, "boom")
}

func TestUntil(t *testing.T) {
	assert.Equal(t, "now", Until(0))
	assert.Equal(t, "in 1 minute", Until(1))
	assert.Equal(t, "in 30 minutes", Until(30))
	assert.Equal(t, "in 1 hour", Until(60))
}

func TestMailerUsesCompanyCredentials(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	enc, err := security.NewAESEncryptor(key)
	require.NoError(t, err)
	box := security.NewSecretBox(enc)
	sealed, err := box.Seal("s3cret")
	require.NoError(t, err)

	tpl, err := NewTemplates()
	require.NoError(t, err)

	d := &recordingDialer{}
	mailer := NewMailer(newSender(d), tpl, box)

	company := &model.Company{MailHost: "smtp.acme", MailPort: 25, MailUser: "acme", MailPassword: sealed, MailFrom: "hi@acme.test"}
	n, err := mailer.SendTemplate(context.Background(), company, Bounce, BounceData{Subject: "Offer", To: []string{"x@y.com"}, Reason: "mailbox full"}, "owner@acme.test")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "s3cret", d.conn.Password)
	assert.Equal(t, "smtp.acme", d.conn.Host)

	_, err = mailer.Deliver(context.Background(), &model.Company{}, &Mail{To: []string{"a@b.com"}, Subject: "x"})
	require.NoError(t, err)
	assert.Equal(t, "smtp.shared", d.conn.Host)
}
