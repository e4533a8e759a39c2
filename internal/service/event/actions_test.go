package event

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/ops"
	"github.com/jwalitptl/crm-api/internal/service/permission"
	"github.com/jwalitptl/crm-api/internal/service/tenant"
	"github.com/jwalitptl/crm-api/internal/task"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
	"github.com/jwalitptl/crm-api/pkg/logger"
	"github.com/jwalitptl/crm-api/pkg/metrics"
)

type nopReporter struct{}

func (nopReporter) Report(context.Context, ops.Incident) {}

func (f *fixture) dispatcher() *task.Dispatcher {
	registry := task.NewRegistry()
	f.svc.Register(registry)
	return task.NewDispatcher(task.Config{Mode: task.ModeSync}, nil, registry, nil, nil,
		f.notifier, nopReporter{}, logger.Nop(), metrics.NewNop())
}

func TestRemindActionByOwnerNotifiesOnce(t *testing.T) {
	f := newFixture()
	e := f.event(f.now.Add(10*time.Minute), "15")

	results, err := f.dispatcher().Run(context.Background(), task.Request{
		Model:    "event",
		Action:   RemindAction,
		Tenant:   f.tenant(model.EventEntity.Perm(model.ActionChange)),
		TargetID: &e.ID,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].OK(), results[0].Message)

	require.Len(t, f.notifier.results, 1)
	assert.Equal(t, []uuid.UUID{f.owner.ID}, f.notifier.users)
	assert.Equal(t, e.Ref(), f.notifier.results[0].Source)
}

func TestRemindActionByColleagueNotifiesBoth(t *testing.T) {
	f := newFixture()
	e := f.event(f.now.Add(10*time.Minute), "15")
	tc := &tenant.Context{
		User:    f.guest,
		Company: f.company,
		Perms:   permission.NewSet(model.EventEntity.Perm(model.ActionChange), model.EventEntity.ViewAllPerm()),
	}

	_, err := f.dispatcher().Run(context.Background(), task.Request{
		Model: "event", Action: RemindAction, Tenant: tc, TargetID: &e.ID,
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{f.guest.ID, f.owner.ID}, f.notifier.users)
}

func TestRemindActionAsSystemNotifiesOwner(t *testing.T) {
	f := newFixture()
	e := f.event(f.now.Add(10*time.Minute), "15")

	results, err := f.dispatcher().Run(context.Background(), task.Request{
		Model: "event", Action: RemindAction, CompanyID: &f.company.ID, TargetID: &e.ID,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []uuid.UUID{f.owner.ID}, f.notifier.users)
	assert.Equal(t, "15", f.events.rows[e.ID].Notified)
}

func TestRemindActionNothingDueNotifiesActorOnly(t *testing.T) {
	f := newFixture()
	e := f.event(f.now.Add(2*time.Hour), "15")

	results, err := f.dispatcher().Run(context.Background(), task.Request{
		Model:    "event",
		Action:   RemindAction,
		Tenant:   f.tenant(model.EventEntity.Perm(model.ActionChange)),
		TargetID: &e.ID,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.LevelInfo, results[0].Level)
	assert.Len(t, f.notifier.results, 1)
	assert.Empty(t, f.messages.sent)
}

func TestRemindActionNeedsChangePermission(t *testing.T) {
	f := newFixture()
	e := f.event(f.now.Add(10*time.Minute), "15")

	_, err := f.dispatcher().Run(context.Background(), task.Request{
		Model:    "event",
		Action:   RemindAction,
		Tenant:   f.tenant(model.EventEntity.Perm(model.ActionView)),
		TargetID: &e.ID,
	})
	assert.ErrorIs(t, err, apperrors.PermissionDeniedError)
	assert.Empty(t, f.messages.sent)
	assert.Empty(t, f.notifier.results)
}
