package message

import (
	"context"
	"testing"

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

func TestSendActionNotifiesActingUser(t *testing.T) {
	f := newFixture(model.MessageEntity.Perm(model.ActionView), permission.SendMessage)
	m := f.message(t, "Hello https://example.com")

	results, err := f.dispatcher().Run(context.Background(), task.Request{
		Model: "message", Action: SendAction, Tenant: f.tc, TargetID: &m.ID,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].OK(), results[0].Message)

	require.Len(t, f.notifier.results, 1)
	assert.Equal(t, f.author.ID, f.notifier.users[0])
	assert.Len(t, f.mailer.delivered, 1)
}

func TestSendActionNeedsSendPermission(t *testing.T) {
	f := newFixture(model.MessageEntity.Perm(model.ActionView))
	m := f.message(t, "Hello")

	_, err := f.dispatcher().Run(context.Background(), task.Request{
		Model: "message", Action: SendAction, Tenant: f.tc, TargetID: &m.ID,
	})
	assert.ErrorIs(t, err, apperrors.PermissionDeniedError)
	assert.Empty(t, f.mailer.delivered)
}

func TestBounceActionStaysInCompany(t *testing.T) {
	f := newFixture()
	m := f.message(t, "Hello")
	d := f.dispatcher()

	other := f.company.ID
	other[0] ^= 0xff
	_, err := d.Run(context.Background(), task.Request{
		Model: "message", Action: BounceAction, CompanyID: &other, TargetID: &m.ID,
		Kwargs: map[string]interface{}{"reason": "mailbox full"},
	})
	assert.ErrorIs(t, err, apperrors.NotFoundError)

	results, err := d.Run(context.Background(), task.Request{
		Model: "message", Action: BounceAction, CompanyID: &f.company.ID, TargetID: &m.ID,
		Kwargs: map[string]interface{}{"reason": "mailbox full"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.LevelWarning, results[0].Level)
	assert.Contains(t, results[0].Message, "mailbox full")
	require.Len(t, f.notifier.results, 1, "only the author is notified")
	assert.Equal(t, f.author.ID, f.notifier.users[0])
}

func TestBounceActionByAuthorNotifiesOnce(t *testing.T) {
	f := newFixture(model.MessageEntity.Perm(model.ActionChange))
	m := f.message(t, "Hello")

	results, err := f.dispatcher().Run(context.Background(), task.Request{
		Model: "message", Action: BounceAction, Tenant: f.tc, TargetID: &m.ID,
		Kwargs: map[string]interface{}{"reason": "mailbox full"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.LevelWarning, results[0].Level)

	require.Len(t, f.notifier.results, 1)
	assert.Equal(t, f.author.ID, f.notifier.users[0])
	assert.Equal(t, m.Ref(), f.notifier.results[0].Source)
}

func TestBounceActionRespectsOwnerScope(t *testing.T) {
	f := newFixture()
	m := f.message(t, "Hello")

	colleague := &model.User{Email: "colleague@acme.test"}
	colleague.ID = uuid.New()
	tc := &tenant.Context{
		User:    colleague,
		Company: f.company,
		Perms:   permission.NewSet(model.MessageEntity.Perm(model.ActionChange)),
	}

	_, err := f.dispatcher().Run(context.Background(), task.Request{
		Model: "message", Action: BounceAction, Tenant: tc, TargetID: &m.ID,
		Kwargs: map[string]interface{}{"reason": "mailbox full"},
	})
	assert.ErrorIs(t, err, apperrors.NotFoundError)
	assert.Nil(t, f.messages.rows[m.ID].DateFailed)
	assert.Empty(t, f.mailer.templated)
	assert.Empty(t, f.notifier.results)
}

func TestBounceActionWithViewAllNotifiesAuthorAndActor(t *testing.T) {
	f := newFixture()
	m := f.message(t, "Hello")

	manager := &model.User{Email: "manager@acme.test"}
	manager.ID = uuid.New()
	tc := &tenant.Context{
		User:    manager,
		Company: f.company,
		Perms:   permission.NewSet(model.MessageEntity.Perm(model.ActionChange), model.MessageEntity.ViewAllPerm()),
	}

	_, err := f.dispatcher().Run(context.Background(), task.Request{
		Model: "message", Action: BounceAction, Tenant: tc, TargetID: &m.ID,
		Kwargs: map[string]interface{}{"reason": "mailbox full"},
	})
	require.NoError(t, err)
	assert.NotNil(t, f.messages.rows[m.ID].DateFailed)
	assert.ElementsMatch(t, []uuid.UUID{f.author.ID, manager.ID}, f.notifier.users)
}

func TestBounceActionNeedsChangePermission(t *testing.T) {
	f := newFixture(model.MessageEntity.Perm(model.ActionView))
	m := f.message(t, "Hello")

	_, err := f.dispatcher().Run(context.Background(), task.Request{
		Model: "message", Action: BounceAction, Tenant: f.tc, TargetID: &m.ID,
	})
	assert.ErrorIs(t, err, apperrors.PermissionDeniedError)
	assert.Nil(t, f.messages.rows[m.ID].DateFailed)
}
