package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/email"
	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
	"github.com/jwalitptl/crm-api/internal/task"
	jwtauth "github.com/jwalitptl/crm-api/pkg/auth"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
	"github.com/jwalitptl/crm-api/pkg/logger"
	"github.com/jwalitptl/crm-api/pkg/security"
)

const (
	activationTTL = 48 * time.Hour
	resetTTL      = time.Hour

	ActivationAction = "send_activation"
	ResetAction      = "send_reset"
)

var errInvalidCredentials = errors.New("invalid email or password")

type Mailer interface {
	SendTemplate(ctx context.Context, company *model.Company, name string, data interface{}, to ...string) (int, error)
}

type Dispatcher interface {
	Run(ctx context.Context, req task.Request) ([]model.Result, error)
}

type CompanyCreator interface {
	NameTaken(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, owner *model.User, req *model.CreateCompanyRequest) (*model.Company, error)
}

type Config struct {
	Site    string
	BaseURL string
}

type AuthServicer interface {
	Signup(ctx context.Context, req *model.SignupRequest) (*model.User, error)
	Activate(ctx context.Context, key string) (*model.User, error)
	Login(ctx context.Context, req *model.LoginRequest) (*model.TokenResponse, error)
	Authenticate(ctx context.Context, token string) (*model.User, error)
	RequestReset(ctx context.Context, address string) error
	ConfirmReset(ctx context.Context, req *model.PasswordResetConfirm) error
	ChangePassword(ctx context.Context, user *model.User, req *model.PasswordChangeRequest) error
	UpdateProfile(ctx context.Context, user *model.User, req *model.UpdateProfileRequest) (*model.User, error)
}

type Service struct {
	users      repository.UserRepository
	companies  CompanyCreator
	hasher     security.PasswordHasher
	tokens     jwtauth.JWTService
	mailer     Mailer
	dispatcher Dispatcher
	cfg        Config
	logger     *logger.Logger
	now        func() time.Time
}

func NewService(
	users repository.UserRepository,
	companies CompanyCreator,
	hasher security.PasswordHasher,
	tokens jwtauth.JWTService,
	mailer Mailer,
	dispatcher Dispatcher,
	cfg Config,
	log *logger.Logger,
) *Service {
	return &Service{
		users:      users,
		companies:  companies,
		hasher:     hasher,
		tokens:     tokens,
		mailer:     mailer,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     log,
		now:        time.Now,
	}
}

func passwordsMatch(password, confirm string) error {
	if password != confirm {
		return apperrors.FieldError("password_confirm", "The two password fields didn't match.")
	}
	return nil
}

// Signup registers an inactive user owning a new company and mails the activation link.
func (s *Service) Signup(ctx context.Context, req *model.SignupRequest) (*model.User, error) {
	if err := passwordsMatch(req.Password, req.PasswordConfirm); err != nil {
		return nil, err
	}
	address := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.users.GetByEmail(ctx, address); err == nil {
		return nil, apperrors.FieldError("email", "A user with this email already exists.")
	} else if !errors.Is(err, apperrors.NotFoundError) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	taken, err := s.companies.NameTaken(ctx, req.CompanyName)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperrors.FieldError("company_name", "A company with this name already exists.")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) {
			return nil, apperrors.FieldError("password", "Use at least 8 characters.")
		}
		return nil, err
	}
	key, err := security.GenerateKey()
	if err != nil {
		return nil, err
	}
	expires := s.now().Add(activationTTL)
	user := &model.User{
		Email:         address,
		Name:          strings.TrimSpace(req.Name),
		PasswordHash:  hash,
		ActivationKey: &key,
		KeyExpires:    &expires,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if _, err := s.companies.Create(ctx, user, &model.CreateCompanyRequest{Name: req.CompanyName}); err != nil {
		return nil, err
	}

	if _, err := s.dispatcher.Run(ctx, task.Request{Model: "user", Action: ActivationAction, TargetID: &user.ID}); err != nil {
		s.logger.Error(err, "failed to dispatch activation email", "user_id", user.ID)
	}
	return user, nil
}

// SendActivation mails the activation link of a user still waiting to activate.
func (s *Service) SendActivation(ctx context.Context, userID uuid.UUID) (model.Result, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return model.Result{}, err
	}
	if user.IsActive || user.ActivationKey == nil {
		return model.Info("Account already active.").About(user.Ref()), nil
	}
	return s.sendKey(ctx, user, email.Activation, s.url("/activate/"+*user.ActivationKey), user.KeyExpires)
}

// SendReset mails the password reset link.
func (s *Service) SendReset(ctx context.Context, userID uuid.UUID) (model.Result, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return model.Result{}, err
	}
	if user.ResetKey == nil {
		return model.Info("No password reset pending.").About(user.Ref()), nil
	}
	return s.sendKey(ctx, user, email.Reset, s.url("/password/reset?key="+*user.ResetKey), user.ResetExpires)
}

func (s *Service) sendKey(ctx context.Context, user *model.User, template, link string, expires *time.Time) (model.Result, error) {
	data := email.KeyData{Site: s.cfg.Site, Name: user.Name, URL: link, Now: s.now()}
	if expires != nil {
		data.Expires = *expires
	}
	n, err := s.mailer.SendTemplate(ctx, nil, template, data, user.Email)
	if err != nil {
		// Returned so the queue retries the delivery.
		return model.Result{}, fmt.Errorf("failed to send %s email: %w", template, err)
	}
	if n == 0 {
		return model.Failure(fmt.Sprintf("Email to %s was not accepted.", user.Email)).About(user.Ref()), nil
	}
	return model.Success(fmt.Sprintf("Email sent to %s.", user.Email)).About(user.Ref()), nil
}

func (s *Service) url(path string) string {
	return strings.TrimRight(s.cfg.BaseURL, "/") + path
}

// Activate enables the account holding key unless the key expired.
func (s *Service) Activate(ctx context.Context, key string) (*model.User, error) {
	user, err := s.users.GetByActivationKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if user.KeyExpires != nil && s.now().After(*user.KeyExpires) {
		return nil, apperrors.FieldError("key", "This activation link has expired.")
	}

	user.IsActive = true
	user.ActivationKey = nil
	user.KeyExpires = nil
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to activate user: %w", err)
	}
	s.logger.Info("user activated", "user_id", user.ID)
	return user, nil
}

func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.TokenResponse, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, apperrors.NotFoundError) {
			return nil, apperrors.Unauthorized(errInvalidCredentials)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return nil, apperrors.Unauthorized(errInvalidCredentials)
	}
	if !user.IsActive {
		return nil, apperrors.Unauthorized(errors.New("account is not active"))
	}

	token, expires, err := s.tokens.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	now := s.now()
	user.LastLoginAt = &now
	if err := s.users.Update(ctx, user); err != nil {
		s.logger.Error(err, "failed to record login", "user_id", user.ID)
	}
	return &model.TokenResponse{AccessToken: token, ExpiresAt: expires}, nil
}

// Authenticate maps a bearer token onto an active user.
func (s *Service) Authenticate(ctx context.Context, token string) (*model.User, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, apperrors.Unauthorized(err)
	}
	id, err := claims.UserID()
	if err != nil {
		return nil, apperrors.Unauthorized(err)
	}
	user, err := s.users.Get(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.NotFoundError) {
			return nil, apperrors.Unauthorized(err)
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, apperrors.Unauthorized(errors.New("account is not active"))
	}
	return user, nil
}

// RequestReset always succeeds from the caller's view so addresses cannot be enumerated.
func (s *Service) RequestReset(ctx context.Context, address string) error {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(address)))
	if err != nil {
		if errors.Is(err, apperrors.NotFoundError) {
			return nil
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	key, err := security.GenerateKey()
	if err != nil {
		return err
	}
	expires := s.now().Add(resetTTL)
	user.ResetKey = &key
	user.ResetExpires = &expires
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to store reset key: %w", err)
	}

	if _, err := s.dispatcher.Run(ctx, task.Request{Model: "user", Action: ResetAction, TargetID: &user.ID}); err != nil {
		s.logger.Error(err, "failed to dispatch reset email", "user_id", user.ID)
	}
	return nil
}

func (s *Service) ConfirmReset(ctx context.Context, req *model.PasswordResetConfirm) error {
	if err := passwordsMatch(req.Password, req.PasswordConfirm); err != nil {
		return err
	}
	user, err := s.users.GetByResetKey(ctx, req.Key)
	if err != nil {
		return err
	}
	if user.ResetExpires == nil || s.now().After(*user.ResetExpires) {
		return apperrors.FieldError("key", "This reset link has expired.")
	}
	if err := s.setPassword(user, req.Password); err != nil {
		return err
	}
	user.ResetKey = nil
	user.ResetExpires = nil
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}
	return nil
}

func (s *Service) ChangePassword(ctx context.Context, user *model.User, req *model.PasswordChangeRequest) error {
	if err := s.hasher.Compare(user.PasswordHash, req.OldPassword); err != nil {
		return apperrors.FieldError("old_password", "Your old password was entered incorrectly.")
	}
	if err := passwordsMatch(req.Password, req.PasswordConfirm); err != nil {
		return err
	}
	if err := s.setPassword(user, req.Password); err != nil {
		return err
	}
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to change password: %w", err)
	}
	return nil
}

func (s *Service) setPassword(user *model.User, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) {
			return apperrors.FieldError("password", "Use at least 8 characters.")
		}
		return err
	}
	user.PasswordHash = hash
	return nil
}

func (s *Service) UpdateProfile(ctx context.Context, user *model.User, req *model.UpdateProfileRequest) (*model.User, error) {
	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Timezone != nil {
		if _, err := time.LoadLocation(*req.Timezone); err != nil {
			return nil, apperrors.FieldError("timezone", "Unknown time zone.")
		}
		user.Timezone = *req.Timezone
	}
	if req.Language != nil {
		user.Language = *req.Language
	}
	if req.Photo != nil {
		user.Photo = *req.Photo
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return user, nil
}

// Register installs the account mail actions. They carry no tenant.
func (s *Service) Register(r *task.Registry) {
	r.Register("user", ActivationAction, func(ctx context.Context, call *task.Call) (interface{}, error) {
		id, err := call.Target()
		if err != nil {
			return nil, err
		}
		return s.SendActivation(ctx, id)
	})
	r.Register("user", ResetAction, func(ctx context.Context, call *task.Call) (interface{}, error) {
		id, err := call.Target()
		if err != nil {
			return nil, err
		}
		return s.SendReset(ctx, id)
	})
}
