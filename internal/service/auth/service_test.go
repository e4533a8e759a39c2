package auth

import (
	"context"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/crm-api/internal/email"
	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/ops"
	"github.com/jwalitptl/crm-api/internal/repository"
	"github.com/jwalitptl/crm-api/internal/task"
	jwtauth "github.com/jwalitptl/crm-api/pkg/auth"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
	"github.com/jwalitptl/crm-api/pkg/logger"
	"github.com/jwalitptl/crm-api/pkg/metrics"
	"github.com/jwalitptl/crm-api/pkg/security"
)

type fakeUsers struct {
	repository.UserRepository
	rows map[uuid.UUID]*model.User
}

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	u.ID = uuid.New()
	f.rows[u.ID] = u
	return nil
}

func (f *fakeUsers) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	if u, ok := f.rows[id]; ok {
		return u, nil
	}
	return nil, apperrors.NotFound("user", nil)
}

func (f *fakeUsers) match(pred func(*model.User) bool) (*model.User, error) {
	for _, u := range f.rows {
		if pred(u) {
			return u, nil
		}
	}
	return nil, apperrors.NotFound("user", nil)
}

func (f *fakeUsers) GetByEmail(_ context.Context, address string) (*model.User, error) {
	return f.match(func(u *model.User) bool { return u.Email == address })
}

func (f *fakeUsers) GetByActivationKey(_ context.Context, key string) (*model.User, error) {
	return f.match(func(u *model.User) bool { return u.ActivationKey != nil && *u.ActivationKey == key })
}

func (f *fakeUsers) GetByResetKey(_ context.Context, key string) (*model.User, error) {
	return f.match(func(u *model.User) bool { return u.ResetKey != nil && *u.ResetKey == key })
}

func (f *fakeUsers) Update(_ context.Context, u *model.User) error {
	f.rows[u.ID] = u
	return nil
}

type fakeCompanies struct {
	names map[string]bool
}

func (f *fakeCompanies) NameTaken(_ context.Context, name string) (bool, error) {
	return f.names[name], nil
}

func (f *fakeCompanies) Create(_ context.Context, owner *model.User, req *model.CreateCompanyRequest) (*model.Company, error) {
	f.names[req.Name] = true
	c := &model.Company{Name: req.Name, OwnerID: owner.ID, IsActive: true}
	c.ID = uuid.New()
	owner.CurrentCompanyID = &c.ID
	return c, nil
}

type mail struct {
	template string
	data     email.KeyData
	to       []string
}

type fakeMailer struct {
	sent []mail
}

func (f *fakeMailer) SendTemplate(_ context.Context, _ *model.Company, name string, data interface{}, to ...string) (int, error) {
	f.sent = append(f.sent, mail{name, data.(email.KeyData), to})
	return len(to), nil
}

type nopReporter struct{}

func (nopReporter) Report(context.Context, ops.Incident) {}

type fixture struct {
	svc       *Service
	users     *fakeUsers
	companies *fakeCompanies
	mailer    *fakeMailer
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	tokens, err := jwtauth.NewJWTService("test-secret", time.Hour)
	require.NoError(t, err)

	f := &fixture{
		users:     &fakeUsers{rows: map[uuid.UUID]*model.User{}},
		companies: &fakeCompanies{names: map[string]bool{}},
		mailer:    &fakeMailer{},
		now:       time.Now(),
	}
	registry := task.NewRegistry()
	dispatcher := task.NewDispatcher(task.Config{Mode: task.ModeSync}, nil, registry, nil, nil, nil,
		nopReporter{}, logger.Nop(), metrics.NewNop())
	f.svc = NewService(f.users, f.companies, security.NewBcryptHasher(4), tokens, f.mailer, dispatcher,
		Config{Site: "CRM", BaseURL: "https://crm.test"}, logger.Nop())
	f.svc.now = func() time.Time { return f.now }
	f.svc.Register(registry)
	return f
}

func (f *fixture) signup(t *testing.T) *model.User {
	user, err := f.svc.Signup(context.Background(), &model.SignupRequest{
		Email: "Ana@Acme.test", Name: "Ana", Password: "secret123", PasswordConfirm: "secret123", CompanyName: "Acme",
	})
	require.NoError(t, err)
	return user
}

func TestSignupCreatesInactiveOwner(t *testing.T) {
	f := newFixture(t)
	user := f.signup(t)

	assert.Equal(t, "ana@acme.test", user.Email)
	assert.False(t, user.IsActive)
	require.NotNil(t, user.ActivationKey)
	assert.Equal(t, f.now.Add(48*time.Hour), *user.KeyExpires)
	assert.NotNil(t, user.CurrentCompanyID)
	assert.True(t, f.companies.names["Acme"])

	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, email.Activation, f.mailer.sent[0].template)
	assert.Equal(t, "https://crm.test/activate/"+*user.ActivationKey, f.mailer.sent[0].data.URL)
	assert.Equal(t, []string{"ana@acme.test"}, f.mailer.sent[0].to)
}

func TestSignupValidation(t *testing.T) {
	f := newFixture(t)
	f.signup(t)

	cases := map[string]*model.SignupRequest{
		"password_confirm": {Email: "b@acme.test", Password: "secret123", PasswordConfirm: "secret124", CompanyName: "B"},
		"email":            {Email: "ana@acme.test", Password: "secret123", PasswordConfirm: "secret123", CompanyName: "B"},
		"company_name":     {Email: "b@acme.test", Password: "secret123", PasswordConfirm: "secret123", CompanyName: "Acme"},
		"password":         {Email: "b@acme.test", Password: "short", PasswordConfirm: "short", CompanyName: "B"},
	}
	for field, req := range cases {
		t.Run(field, func(t *testing.T) {
			_, err := f.svc.Signup(context.Background(), req)
			appErr, ok := apperrors.As(err)
			require.True(t, ok, "%v", err)
			assert.Contains(t, appErr.Fields, field)
		})
	}
}

func TestActivateAndLogin(t *testing.T) {
	f := newFixture(t)
	user := f.signup(t)
	login := &model.LoginRequest{Email: "ana@acme.test", Password: "secret123"}

	_, err := f.svc.Login(context.Background(), login)
	assert.ErrorIs(t, err, apperrors.UnauthorizedError)

	activated, err := f.svc.Activate(context.Background(), *user.ActivationKey)
	require.NoError(t, err)
	assert.True(t, activated.IsActive)
	assert.Nil(t, activated.ActivationKey)

	tok, err := f.svc.Login(context.Background(), login)
	require.NoError(t, err)
	assert.NotEmpty(t, tok.AccessToken)
	assert.NotNil(t, user.LastLoginAt)

	authed, err := f.svc.Authenticate(context.Background(), tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, authed.ID)

	_, err = f.svc.Login(context.Background(), &model.LoginRequest{Email: "ana@acme.test", Password: "wrong-pass"})
	assert.ErrorIs(t, err, apperrors.UnauthorizedError)
	_, err = f.svc.Authenticate(context.Background(), "garbage")
	assert.ErrorIs(t, err, apperrors.UnauthorizedError)
}

func TestActivateExpiredKey(t *testing.T) {
	f := newFixture(t)
	user := f.signup(t)
	f.now = f.now.Add(49 * time.Hour)

	_, err := f.svc.Activate(context.Background(), *user.ActivationKey)
	assert.ErrorIs(t, err, apperrors.Validation(nil))
	assert.False(t, user.IsActive)

	_, err = f.svc.Activate(context.Background(), "unknown")
	assert.ErrorIs(t, err, apperrors.NotFoundError)
}

func TestPasswordReset(t *testing.T) {
	f := newFixture(t)
	user := f.signup(t)

	require.NoError(t, f.svc.RequestReset(context.Background(), "nobody@acme.test"))
	assert.Len(t, f.mailer.sent, 1)

	require.NoError(t, f.svc.RequestReset(context.Background(), "ana@acme.test"))
	require.Len(t, f.mailer.sent, 2)
	require.NotNil(t, user.ResetKey)
	key := *user.ResetKey
	assert.Equal(t, email.Reset, f.mailer.sent[1].template)
	assert.Equal(t, "https://crm.test/password/reset?key="+key, f.mailer.sent[1].data.URL)

	err := f.svc.ConfirmReset(context.Background(), &model.PasswordResetConfirm{Key: key, Password: "newsecret1", PasswordConfirm: "newsecret2"})
	assert.ErrorIs(t, err, apperrors.Validation(nil))

	require.NoError(t, f.svc.ConfirmReset(context.Background(), &model.PasswordResetConfirm{Key: key, Password: "newsecret1", PasswordConfirm: "newsecret1"}))
	assert.Nil(t, user.ResetKey)
	assert.NoError(t, security.NewBcryptHasher(4).Compare(user.PasswordHash, "newsecret1"))
}

func TestResetKeyExpires(t *testing.T) {
	f := newFixture(t)
	user := f.signup(t)
	require.NoError(t, f.svc.RequestReset(context.Background(), "ana@acme.test"))
	f.now = f.now.Add(61 * time.Minute)

	err := f.svc.ConfirmReset(context.Background(), &model.PasswordResetConfirm{Key: *user.ResetKey, Password: "newsecret1", PasswordConfirm: "newsecret1"})
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Fields, "key")
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	user := f.signup(t)

	err := f.svc.ChangePassword(context.Background(), user, &model.PasswordChangeRequest{OldPassword: "wrong", Password: "newsecret1", PasswordConfirm: "newsecret1"})
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Fields, "old_password")

	require.NoError(t, f.svc.ChangePassword(context.Background(), user, &model.PasswordChangeRequest{OldPassword: "secret123", Password: "newsecret1", PasswordConfirm: "newsecret1"}))
	assert.NoError(t, security.NewBcryptHasher(4).Compare(user.PasswordHash, "newsecret1"))
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	user := f.signup(t)

	bad := "Mars/Olympus"
	_, err := f.svc.UpdateProfile(context.Background(), user, &model.UpdateProfileRequest{Timezone: &bad})
	assert.ErrorIs(t, err, apperrors.Validation(nil))

	tz, name := "Europe/Madrid", " Ana B "
	updated, err := f.svc.UpdateProfile(context.Background(), user, &model.UpdateProfileRequest{Timezone: &tz, Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Europe/Madrid", updated.Timezone)
	assert.Equal(t, "Ana B", updated.Name)
}
