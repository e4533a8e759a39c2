package event

import (
	"context"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/task"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
)

const RemindAction = "remind"

// Register installs the reminder action. A user asking for it needs change rights on
// the event and gets the result from the dispatcher; system jobs name the company
// instead. The owner hears about a sent reminder either way, once.
func (s *Service) Register(r *task.Registry) {
	r.Register("event", RemindAction, func(ctx context.Context, call *task.Call) (interface{}, error) {
		id, err := call.Target()
		if err != nil {
			return nil, err
		}
		if call.Tenant != nil {
			scope, err := call.Tenant.Guard(model.EventEntity, model.ActionChange)
			if err != nil {
				return nil, err
			}
			e, err := s.events.Get(ctx, scope, id)
			if err != nil {
				return nil, err
			}
			return s.remindAs(ctx, e, call.User)
		}
		if call.CompanyID == nil {
			return nil, apperrors.NoCurrentTenant()
		}
		return s.RemindByID(ctx, *call.CompanyID, id)
	})
}
