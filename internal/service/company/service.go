package company

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
	"github.com/jwalitptl/crm-api/internal/service/permission"
	"github.com/jwalitptl/crm-api/internal/service/tenant"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
	"github.com/jwalitptl/crm-api/pkg/logger"
	"github.com/jwalitptl/crm-api/pkg/security"
)

// PermissionCache is the part of the resolver that must hear about membership changes.
type PermissionCache interface {
	Invalidate(userID, companyID uuid.UUID)
	Flush()
}

type CompanyServicer interface {
	Create(ctx context.Context, owner *model.User, req *model.CreateCompanyRequest) (*model.Company, error)
	ListForUser(ctx context.Context, user *model.User) ([]*model.Company, error)
	Update(ctx context.Context, tc *tenant.Context, req *model.UpdateCompanyRequest) (*model.Company, error)
	SetActive(ctx context.Context, actor *model.User, companyID uuid.UUID, active bool) (model.Result, error)
	Switch(ctx context.Context, user *model.User, companyID uuid.UUID) error
	Leave(ctx context.Context, user *model.User, companyID uuid.UUID) (model.Result, error)
}

type Service struct {
	companies    repository.CompanyRepository
	colaborators repository.ColaboratorRepository
	roles        repository.RoleRepository
	users        repository.UserRepository
	cache        PermissionCache
	secrets      *security.SecretBox
	logger       *logger.Logger
}

func NewService(
	companies repository.CompanyRepository,
	colaborators repository.ColaboratorRepository,
	roles repository.RoleRepository,
	users repository.UserRepository,
	cache PermissionCache,
	secrets *security.SecretBox,
	log *logger.Logger,
) *Service {
	return &Service{
		companies:    companies,
		colaborators: colaborators,
		roles:        roles,
		users:        users,
		cache:        cache,
		secrets:      secrets,
		logger:       log,
	}
}

// Create inserts an active company and its owner's membership in one step. The owner's
// current company is pointed at it when unset.
func (s *Service) Create(ctx context.Context, owner *model.User, req *model.CreateCompanyRequest) (*model.Company, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperrors.FieldError("name", "This field is required.")
	}
	taken, err := s.NameTaken(ctx, name)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperrors.FieldError("name", "A company with this name already exists.")
	}

	company := &model.Company{
		Name:     name,
		OwnerID:  owner.ID,
		IsActive: true,
		Language: req.Language,
	}
	if company.Language == "" {
		company.Language = owner.Language
	}
	colaborator := &model.Colaborator{
		UserID:   owner.ID,
		IsActive: true,
	}
	if err := s.companies.CreateWithOwner(ctx, company, colaborator); err != nil {
		return nil, fmt.Errorf("failed to create company: %w", err)
	}
	if owner.CurrentCompanyID == nil {
		id := company.ID
		owner.CurrentCompanyID = &id
	}

	s.logger.Info("company created", "company_id", company.ID, "owner_id", owner.ID)
	return company, nil
}

func (s *Service) NameTaken(ctx context.Context, name string) (bool, error) {
	_, err := s.companies.GetByName(ctx, strings.TrimSpace(name))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, apperrors.NotFoundError):
		return false, nil
	default:
		return false, fmt.Errorf("failed to check company name: %w", err)
	}
}

func (s *Service) ListForUser(ctx context.Context, user *model.User) ([]*model.Company, error) {
	return s.companies.ListForUser(ctx, user.ID)
}

// Update changes company settings. A new mail password is sealed before it is stored;
// an empty one keeps the current secret.
func (s *Service) Update(ctx context.Context, tc *tenant.Context, req *model.UpdateCompanyRequest) (*model.Company, error) {
	if err := tc.Require(permission.ChangeCompany); err != nil {
		return nil, err
	}

	company := *tc.Company
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperrors.FieldError("name", "This field is required.")
		}
		company.Name = name
	}
	if req.Language != nil {
		company.Language = *req.Language
	}
	if req.MailHost != nil {
		company.MailHost = *req.MailHost
	}
	if req.MailPort != nil {
		company.MailPort = *req.MailPort
	}
	if req.MailUser != nil {
		company.MailUser = *req.MailUser
	}
	if req.MailFrom != nil {
		company.MailFrom = *req.MailFrom
	}
	if req.MailPassword != nil && *req.MailPassword != "" {
		sealed, err := s.secrets.Seal(*req.MailPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to seal mail password: %w", err)
		}
		company.MailPassword = sealed
	}
	if company.MailHost != "" && company.MailPort == 0 {
		return nil, apperrors.FieldError("mail_port", "A port is required with a mail host.")
	}

	if err := s.companies.Update(ctx, &company); err != nil {
		return nil, fmt.Errorf("failed to update company: %w", err)
	}
	*tc.Company = company
	return &company, nil
}

// SetActive is the administrative switch; billing reactivates companies on its own.
func (s *Service) SetActive(ctx context.Context, actor *model.User, companyID uuid.UUID, active bool) (model.Result, error) {
	if !actor.BypassesTenancy() {
		return model.Result{}, apperrors.PermissionDenied("account:activate_company")
	}
	company, err := s.companies.Get(ctx, companyID)
	if err != nil {
		return model.Result{}, err
	}

	state := "inactive"
	if active {
		state = "active"
	}
	if company.IsActive == active {
		return model.Info(fmt.Sprintf("%s is already %s.", company.Name, state)).About(company.Ref()), nil
	}
	if err := s.companies.SetActive(ctx, company.ID, active); err != nil {
		return model.Result{}, fmt.Errorf("failed to set company state: %w", err)
	}
	s.cache.Flush()

	s.logger.Info("company state changed", "company_id", company.ID, "active", active, "actor_id", actor.ID)
	return model.Success(fmt.Sprintf("%s is now %s.", company.Name, state)).About(company.Ref()), nil
}

// Switch moves the user's current company. Only active members, the owner, and
// superusers or staff may switch into a company.
func (s *Service) Switch(ctx context.Context, user *model.User, companyID uuid.UUID) error {
	company, err := s.companies.Get(ctx, companyID)
	if err != nil {
		return err
	}
	if !user.BypassesTenancy() && !company.IsOwner(user.ID) {
		if _, err := s.colaborators.GetActive(ctx, user.ID, company.ID); err != nil {
			if errors.Is(err, apperrors.NotFoundError) {
				return apperrors.PermissionDenied(permission.ChangeCompany)
			}
			return fmt.Errorf("failed to get colaborator: %w", err)
		}
	}

	if err := s.users.SetCurrentCompany(ctx, user.ID, &company.ID); err != nil {
		return fmt.Errorf("failed to switch company: %w", err)
	}
	id := company.ID
	user.CurrentCompanyID = &id
	return nil
}

// Leave removes the user's membership. Owners cannot leave their own company.
func (s *Service) Leave(ctx context.Context, user *model.User, companyID uuid.UUID) (model.Result, error) {
	company, err := s.companies.Get(ctx, companyID)
	if err != nil {
		return model.Result{}, err
	}
	if company.IsOwner(user.ID) {
		return model.Result{}, apperrors.FieldError("company", "Owners cannot leave their own company.")
	}
	if _, err := s.colaborators.Find(ctx, user.ID, company.ID); err != nil {
		return model.Result{}, err
	}
	if err := s.colaborators.Delete(ctx, user.ID, company.ID); err != nil {
		return model.Result{}, fmt.Errorf("failed to leave company: %w", err)
	}
	s.cache.Invalidate(user.ID, company.ID)

	if user.CurrentCompanyID != nil && *user.CurrentCompanyID == company.ID {
		if err := s.users.SetCurrentCompany(ctx, user.ID, nil); err != nil {
			return model.Result{}, fmt.Errorf("failed to clear current company: %w", err)
		}
		user.CurrentCompanyID = nil
	}
	return model.Success(fmt.Sprintf("You left %s.", company.Name)), nil
}
