package task

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/service/tenant"
)

// ErrNotInvocable is returned for actions nobody registered.
var ErrNotInvocable = errors.New("action is not invocable")

// Call is what an action runs with. Tenant is nil when the job carried no acting user.
type Call struct {
	CompanyID *uuid.UUID
	User      *model.User
	Tenant    *tenant.Context
	TargetID  *uuid.UUID
	Kwargs    Kwargs
}

// Target returns the target id or fails when the job had none.
func (c *Call) Target() (uuid.UUID, error) {
	if c.TargetID == nil {
		return uuid.Nil, errors.New("action needs a target")
	}
	return *c.TargetID, nil
}

// Func runs an action. It may return a model.Result, a []model.Result or nothing
// worth notifying.
type Func func(ctx context.Context, call *Call) (interface{}, error)

type action struct {
	fn            Func
	allowInactive bool
}

type RegisterOption func(*action)

// OnInactive lets the action run for a suspended company.
func OnInactive() RegisterOption {
	return func(a *action) { a.allowInactive = true }
}

// Registry maps "<model>.<action>" names onto functions.
type Registry struct {
	actions map[string]action
}

func NewRegistry() *Registry {
	return &Registry{actions: map[string]action{}}
}

func Name(model, action string) string {
	return model + "." + action
}

func (r *Registry) Register(model, name string, fn Func, opts ...RegisterOption) {
	a := action{fn: fn}
	for _, opt := range opts {
		opt(&a)
	}
	r.actions[Name(model, name)] = a
}

func (r *Registry) lookup(model, name string) (action, error) {
	a, ok := r.actions[Name(model, name)]
	if !ok || a.fn == nil {
		return action{}, fmt.Errorf("%s: %w", Name(model, name), ErrNotInvocable)
	}
	return a, nil
}

// Names lists the registered actions.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.actions))
	for name := range r.actions {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
