package message

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/service/permission"
	"github.com/jwalitptl/crm-api/internal/service/tenant"
	"github.com/jwalitptl/crm-api/internal/task"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
)

const (
	SendAction   = "send"
	BounceAction = "bounce"
)

// SendAs sends one of the tenant's messages on behalf of the acting user.
func (s *Service) SendAs(ctx context.Context, tc *tenant.Context, id uuid.UUID) (model.Result, error) {
	if err := tc.Require(permission.SendMessage); err != nil {
		return model.Result{}, err
	}
	m, err := s.Get(ctx, tc, id)
	if err != nil {
		return model.Result{}, err
	}
	return s.Send(ctx, m)
}

// Register installs the message actions. Bounces usually arrive without an acting user.
func (s *Service) Register(r *task.Registry) {
	r.Register("message", SendAction, func(ctx context.Context, call *task.Call) (interface{}, error) {
		if call.Tenant == nil {
			return nil, apperrors.NoCurrentTenant()
		}
		id, err := call.Target()
		if err != nil {
			return nil, err
		}
		return s.SendAs(ctx, call.Tenant, id)
	})
	r.Register("message", BounceAction, func(ctx context.Context, call *task.Call) (interface{}, error) {
		id, err := call.Target()
		if err != nil {
			return nil, err
		}
		m, err := s.bounceTarget(ctx, call, id)
		if err != nil {
			return nil, err
		}
		res, err := s.ReportBounce(ctx, m, call.Kwargs.String("reason"))
		if err != nil {
			return nil, err
		}
		if err := s.notifyAuthor(ctx, m, res, call.User); err != nil {
			return nil, err
		}
		return res, nil
	}, task.OnInactive())
}

// bounceTarget loads the bounced message. A user needs change rights and sees only
// their own messages without view-all; system jobs are confined to the named company.
func (s *Service) bounceTarget(ctx context.Context, call *task.Call, id uuid.UUID) (*model.Message, error) {
	if call.Tenant != nil {
		scope, err := call.Tenant.Guard(model.MessageEntity, model.ActionChange)
		if err != nil {
			return nil, err
		}
		return s.messages.Get(ctx, scope, id)
	}
	m, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if call.CompanyID == nil || m.CompanyID != *call.CompanyID {
		return nil, apperrors.NotFound("message", nil)
	}
	return m, nil
}
