package message

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/service/tenant"
)

// CreateLink adds a tracked link outside of any message.
func (s *Service) CreateLink(ctx context.Context, tc *tenant.Context, req *model.LinkRequest) (*model.Link, error) {
	if err := tc.Require(model.LinkEntity.Perm(model.ActionAdd)); err != nil {
		return nil, err
	}
	link := &model.Link{CompanyID: tc.CompanyID(), Destination: req.Destination}
	if err := s.links.Create(ctx, link); err != nil {
		return nil, fmt.Errorf("failed to create link: %w", err)
	}
	return link, nil
}

func (s *Service) GetLink(ctx context.Context, tc *tenant.Context, id uuid.UUID) (*model.Link, error) {
	scope, err := tc.Guard(model.LinkEntity, model.ActionView)
	if err != nil {
		return nil, err
	}
	return s.links.Get(ctx, scope, id)
}

func (s *Service) ListLinks(ctx context.Context, tc *tenant.Context, q model.ListQuery) ([]*model.Link, error) {
	scope, err := tc.Guard(model.LinkEntity, model.ActionView)
	if err != nil {
		return nil, err
	}
	return s.links.List(ctx, scope, q)
}

func (s *Service) DeleteLink(ctx context.Context, tc *tenant.Context, id uuid.UUID) error {
	scope, err := tc.Guard(model.LinkEntity, model.ActionDelete)
	if err != nil {
		return err
	}
	return s.links.Delete(ctx, scope, id)
}

func (s *Service) ListVisits(ctx context.Context, tc *tenant.Context, q model.ListQuery) ([]*model.Visit, error) {
	scope, err := tc.Guard(model.VisitEntity, model.ActionView)
	if err != nil {
		return nil, err
	}
	return s.links.ListVisits(ctx, scope, q)
}

// Visit records a hit on the link and returns it so the caller can redirect.
func (s *Service) Visit(ctx context.Context, id uuid.UUID, ip string) (*model.Link, error) {
	link, err := s.links.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	visit := &model.Visit{LinkID: link.ID, CompanyID: link.CompanyID, IPAddress: ip}
	if err := s.links.RecordVisit(ctx, visit); err != nil {
		return nil, fmt.Errorf("failed to record visit: %w", err)
	}
	link.TotalVisits++
	s.metrics.LinkVisits.Inc()
	return link, nil
}
