package invite

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
	"github.com/jwalitptl/crm-api/internal/service/permission"
	"github.com/jwalitptl/crm-api/internal/service/tenant"
	"github.com/jwalitptl/crm-api/internal/task"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
	"github.com/jwalitptl/crm-api/pkg/logger"
	"github.com/jwalitptl/crm-api/pkg/security"
)

// SendAction is the dispatcher action delivering an invite email.
const SendAction = "send"

type Mailer interface {
	SendTemplate(ctx context.Context, company *model.Company, name string, data interface{}, to ...string) (int, error)
}

type Dispatcher interface {
	Run(ctx context.Context, req task.Request) ([]model.Result, error)
}

type Config struct {
	Site    string
	BaseURL string
}

type Service struct {
	invites      repository.InviteRepository
	users        repository.UserRepository
	colaborators repository.ColaboratorRepository
	roles        repository.RoleRepository
	mailer       Mailer
	dispatcher   Dispatcher
	hasher       security.PasswordHasher
	cfg          Config
	logger       *logger.Logger
	now          func() time.Time
}

func NewService(
	invites repository.InviteRepository,
	users repository.UserRepository,
	colaborators repository.ColaboratorRepository,
	roles repository.RoleRepository,
	mailer Mailer,
	dispatcher Dispatcher,
	hasher security.PasswordHasher,
	cfg Config,
	log *logger.Logger,
) *Service {
	return &Service{
		invites:      invites,
		users:        users,
		colaborators: colaborators,
		roles:        roles,
		mailer:       mailer,
		dispatcher:   dispatcher,
		hasher:       hasher,
		cfg:          cfg,
		logger:       log,
		now:          time.Now,
	}
}

// Send invites email into the current company and hands delivery to the dispatcher.
// A pending invite for the same address, or an existing member, is a validation error.
func (s *Service) Send(ctx context.Context, tc *tenant.Context, req *model.InviteRequest) (*model.Invite, []model.Result, error) {
	if err := tc.Require(model.InviteEntity.Perm(model.ActionAdd), permission.SendInvite); err != nil {
		return nil, nil, err
	}
	address := strings.ToLower(strings.TrimSpace(req.Email))

	if _, err := s.invites.FindPending(ctx, tc.CompanyID(), address); err == nil {
		return nil, nil, apperrors.FieldError("email", "An invite for this email is already pending.")
	} else if !errors.Is(err, apperrors.NotFoundError) {
		return nil, nil, fmt.Errorf("failed to check pending invites: %w", err)
	}
	member, err := s.colaborators.ExistsByEmail(ctx, tc.CompanyID(), address)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check colaborators: %w", err)
	}
	if member {
		return nil, nil, apperrors.FieldError("email", "This user is already a member of the company.")
	}

	scope := tc.Scope(model.RoleEntity)
	for _, id := range req.RoleIDs {
		if _, err := s.roles.Get(ctx, scope, id); err != nil {
			if errors.Is(err, apperrors.NotFoundError) {
				return nil, nil, apperrors.FieldError("role_ids", fmt.Sprintf("Role %s does not exist.", id))
			}
			return nil, nil, err
		}
	}

	key, err := security.GenerateKey()
	if err != nil {
		return nil, nil, err
	}
	inv := &model.Invite{
		CompanyID:     tc.CompanyID(),
		Email:         address,
		RoleIDs:       req.RoleIDs,
		ActivationKey: key,
		IsActive:      true,
	}
	if err := s.invites.Create(ctx, inv); err != nil {
		return nil, nil, fmt.Errorf("failed to create invite: %w", err)
	}

	results, err := s.dispatcher.Run(ctx, task.Request{
		Model:    "invite",
		Action:   SendAction,
		Tenant:   tc,
		TargetID: &inv.ID,
	})
	if err != nil {
		return inv, nil, err
	}
	return inv, results, nil
}

// Deliver emails a pending invite and records when it went out.
func (s *Service) Deliver(ctx context.Context, tc *tenant.Context, id uuid.UUID) (model.Result, error) {
	inv, err := s.invites.Get(ctx, tc.Scope(model.InviteEntity), id)
	if err != nil {
		return model.Result{}, err
	}
	if !inv.Pending() {
		return model.Info(fmt.Sprintf("The invite for %s was already accepted.", inv.Email)).About(inv.Ref()), nil
	}

	inviter := tc.User.Name
	if inviter == "" {
		inviter = tc.User.Email
	}
	n, err := s.mailer.SendTemplate(ctx, nil, email.Invite, email.InviteData{
		Site:    s.cfg.Site,
		Company: tc.Company.Name,
		Inviter: inviter,
		URL:     s.AcceptURL(inv.ActivationKey),
	}, inv.Email)
	if err != nil || n == 0 {
		reason := "no recipients accepted"
		if err != nil {
			reason = err.Error()
			s.logger.Error(err, "failed to send invite", "invite_id", inv.ID)
		}
		return model.Failure(fmt.Sprintf("Invite to %s could not be sent: %s.", inv.Email, reason)).About(inv.Ref()), nil
	}

	now := s.now()
	if err := s.invites.MarkSent(ctx, inv.ID, now); err != nil {
		return model.Result{}, fmt.Errorf("failed to mark invite sent: %w", err)
	}
	inv.SentAt = &now
	return model.Success(fmt.Sprintf("Invite sent to %s.", inv.Email)).About(inv.Ref()), nil
}

func (s *Service) AcceptURL(key string) string {
	return strings.TrimRight(s.cfg.BaseURL, "/") + "/invites/accept?key=" + key
}

// Accept consumes a pending invite. Unknown addresses get a new, already active user;
// the membership carries exactly the invite's roles.
func (s *Service) Accept(ctx context.Context, req *model.AcceptInviteRequest) (*model.User, error) {
	inv, err := s.invites.GetPendingByKey(ctx, req.Key)
	if err != nil {
		return nil, err
	}
	if !inv.Pending() {
		return nil, apperrors.NotFound("invite", nil)
	}

	var newUser *model.User
	user, err := s.users.GetByEmail(ctx, inv.Email)
	switch {
	case errors.Is(err, apperrors.NotFoundError):
		newUser, err = s.newUser(inv.Email, req)
		if err != nil {
			return nil, err
		}
		user = newUser
	case err != nil:
		return nil, fmt.Errorf("failed to get user: %w", err)
	default:
		if _, err := s.colaborators.Find(ctx, user.ID, inv.CompanyID); err == nil {
			return nil, apperrors.FieldError("key", "You are already a member of this company.")
		} else if !errors.Is(err, apperrors.NotFoundError) {
			return nil, fmt.Errorf("failed to get colaborator: %w", err)
		}
	}

	colaborator := &model.Colaborator{
		UserID:    user.ID,
		CompanyID: inv.CompanyID,
		IsActive:  true,
		RoleIDs:   inv.RoleIDs,
	}
	if err := s.invites.Consume(ctx, inv, newUser, colaborator); err != nil {
		return nil, fmt.Errorf("failed to accept invite: %w", err)
	}
	if user.CurrentCompanyID == nil {
		cid := inv.CompanyID
		user.CurrentCompanyID = &cid
	}

	s.logger.Info("invite accepted", "invite_id", inv.ID, "user_id", user.ID, "company_id", inv.CompanyID)
	return user, nil
}

func (s *Service) newUser(address string, req *model.AcceptInviteRequest) (*model.User, error) {
	fields := map[string]string{}
	if strings.TrimSpace(req.Name) == "" {
		fields["name"] = "This field is required."
	}
	if len(req.Password) < 8 {
		fields["password"] = "Use at least 8 characters."
	} else if req.Password != req.PasswordConfirm {
		fields["password_confirm"] = "The two password fields didn't match."
	}
	if len(fields) > 0 {
		return nil, apperrors.Validation(fields)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		Email:        address,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
		IsActive:     true,
	}
	user.ID = uuid.New()
	return user, nil
}

func (s *Service) Get(ctx context.Context, tc *tenant.Context, id uuid.UUID) (*model.Invite, error) {
	scope, err := tc.Guard(model.InviteEntity, model.ActionView)
	if err != nil {
		return nil, err
	}
	return s.invites.Get(ctx, scope, id)
}

func (s *Service) List(ctx context.Context, tc *tenant.Context, q model.ListQuery) ([]*model.Invite, error) {
	scope, err := tc.Guard(model.InviteEntity, model.ActionView)
	if err != nil {
		return nil, err
	}
	return s.invites.List(ctx, scope, q)
}

func (s *Service) Delete(ctx context.Context, tc *tenant.Context, id uuid.UUID) error {
	scope, err := tc.Guard(model.InviteEntity, model.ActionDelete)
	if err != nil {
		return err
	}
	return s.invites.Delete(ctx, scope, id)
}

// Register installs the invite actions on the dispatcher registry.
func (s *Service) Register(r *task.Registry) {
	r.Register("invite", SendAction, func(ctx context.Context, call *task.Call) (interface{}, error) {
		if call.Tenant == nil {
			return nil, apperrors.NoCurrentTenant()
		}
		id, err := call.Target()
		if err != nil {
			return nil, err
		}
		return s.Deliver(ctx, call.Tenant, id)
	})
}
