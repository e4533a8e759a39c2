package message

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/email"
	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
)

type fakeMessages struct {
	repository.MessageRepository
	rows map[uuid.UUID]*model.Message
}

func (f *fakeMessages) Create(_ context.Context, m *model.Message) error {
	m.ID = uuid.New()
	c := *m
	f.rows[m.ID] = &c
	return nil
}

func (f *fakeMessages) Get(_ context.Context, scope model.Scope, id uuid.UUID) (*model.Message, error) {
	row, ok := f.rows[id]
	if !ok || row.CompanyID != scope.CompanyID || (scope.OwnerID != nil && (row.UserID == nil || *row.UserID != *scope.OwnerID)) {
		return nil, apperrors.NotFound("message", nil)
	}
	c := *row
	return &c, nil
}

func (f *fakeMessages) GetByID(_ context.Context, id uuid.UUID) (*model.Message, error) {
	row, ok := f.rows[id]
	if !ok {
		return nil, apperrors.NotFound("message", nil)
	}
	c := *row
	return &c, nil
}

func (f *fakeMessages) GetByToken(_ context.Context, token string) (*model.Message, error) {
	for _, row := range f.rows {
		if row.Token == token {
			c := *row
			return &c, nil
		}
	}
	return nil, apperrors.NotFound("message", nil)
}

func (f *fakeMessages) Update(_ context.Context, scope model.Scope, m *model.Message) error {
	row, ok := f.rows[m.ID]
	if !ok || row.CompanyID != scope.CompanyID || row.DateSend != nil {
		return apperrors.NotFound("message", nil)
	}
	c := *m
	f.rows[m.ID] = &c
	return nil
}

func (f *fakeMessages) MarkSent(_ context.Context, id uuid.UUID, content string, at time.Time) (bool, error) {
	row := f.rows[id]
	if row.DateSend != nil {
		return false, nil
	}
	row.Content = content
	row.DateSend = &at
	return true, nil
}

func (f *fakeMessages) MarkRead(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	row := f.rows[id]
	if row.DateRead != nil {
		return false, nil
	}
	row.DateRead = &at
	return true, nil
}

func (f *fakeMessages) MarkFailed(_ context.Context, id uuid.UUID, at time.Time) error {
	f.rows[id].DateFailed = &at
	return nil
}

type fakeLinks struct {
	repository.LinkRepository
	rows   []*model.Link
	visits []*model.Visit
}

func (f *fakeLinks) Create(_ context.Context, l *model.Link) error {
	l.ID = uuid.New()
	l.CreatedAt = time.Now().Add(time.Duration(len(f.rows)) * time.Second)
	f.rows = append(f.rows, l)
	return nil
}

func (f *fakeLinks) FindByDestination(_ context.Context, companyID uuid.UUID, dest string) (*model.Link, error) {
	var matches []*model.Link
	for _, l := range f.rows {
		if l.CompanyID == companyID && l.Destination == dest {
			matches = append(matches, l)
		}
	}
	if len(matches) == 0 {
		return nil, apperrors.NotFound("link", nil)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.Before(matches[j].CreatedAt) })
	return matches[0], nil
}

func (f *fakeLinks) GetByID(_ context.Context, id uuid.UUID) (*model.Link, error) {
	for _, l := range f.rows {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, apperrors.NotFound("link", nil)
}

func (f *fakeLinks) RecordVisit(_ context.Context, v *model.Visit) error {
	v.ID = uuid.New()
	f.visits = append(f.visits, v)
	return nil
}

type fakeCompanies struct {
	repository.CompanyRepository
	rows map[uuid.UUID]*model.Company
}

func (f *fakeCompanies) Get(_ context.Context, id uuid.UUID) (*model.Company, error) {
	if c, ok := f.rows[id]; ok {
		return c, nil
	}
	return nil, apperrors.NotFound("company", nil)
}

type fakeUsers struct {
	repository.UserRepository
	rows map[uuid.UUID]*model.User
}

func (f *fakeUsers) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	if u, ok := f.rows[id]; ok {
		return u, nil
	}
	return nil, apperrors.NotFound("user", nil)
}

type templated struct {
	name string
	data interface{}
	to   []string
}

type fakeMailer struct {
	delivered []*email.Mail
	templated []templated
	err       error
	accepted  int
}

func (f *fakeMailer) Render(name string, _ interface{}) (*email.Mail, error) {
	return &email.Mail{Subject: name, HTML: "<p>" + name + "</p>"}, nil
}

func (f *fakeMailer) Deliver(_ context.Context, _ *model.Company, m *email.Mail) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.delivered = append(f.delivered, m)
	if f.accepted >= 0 {
		return len(m.To) + len(m.Cc), nil
	}
	return 0, nil
}

func (f *fakeMailer) SendTemplate(_ context.Context, _ *model.Company, name string, data interface{}, to ...string) (int, error) {
	f.templated = append(f.templated, templated{name: name, data: data, to: to})
	return len(to), nil
}

type fakeNotifier struct {
	results []model.Result
	users   []uuid.UUID
}

func (f *fakeNotifier) Notify(_ context.Context, _, userID uuid.UUID, res model.Result) (*model.Notification, error) {
	f.results = append(f.results, res)
	f.users = append(f.users, userID)
	return &model.Notification{}, nil
}
