package email

import (
	"context"
	"fmt"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/pkg/security"
)

// Mailer renders templates and delivers as a company, through its own SMTP
// account when it has one and the shared connection otherwise.
type Mailer struct {
	sender    Sender
	templates *Templates
	secrets   *security.SecretBox
}

func NewMailer(sender Sender, templates *Templates, secrets *security.SecretBox) *Mailer {
	return &Mailer{
		sender:    sender,
		templates: templates,
		secrets:   secrets,
	}
}

func (m *Mailer) Render(name string, data interface{}) (*Mail, error) {
	return m.templates.Render(name, data)
}

// ConnectionFor returns nil for companies without credentials.
func (m *Mailer) ConnectionFor(company *model.Company) (*Connection, error) {
	if company == nil || !company.HasMailCredentials() {
		return nil, nil
	}
	password, err := m.secrets.Open(company.MailPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to open mail password: %w", err)
	}
	return &Connection{
		Host:     company.MailHost,
		Port:     company.MailPort,
		User:     company.MailUser,
		Password: password,
		From:     company.MailFrom,
	}, nil
}

// Deliver sends mail as company; a nil company uses the shared connection.
func (m *Mailer) Deliver(ctx context.Context, company *model.Company, mail *Mail) (int, error) {
	conn, err := m.ConnectionFor(company)
	if err != nil {
		return 0, err
	}
	return m.sender.Send(ctx, conn, mail)
}

// SendTemplate renders name with data and delivers it to the recipients.
func (m *Mailer) SendTemplate(ctx context.Context, company *model.Company, name string, data interface{}, to ...string) (int, error) {
	mail, err := m.Render(name, data)
	if err != nil {
		return 0, err
	}
	mail.To = to
	return m.Deliver(ctx, company, mail)
}
