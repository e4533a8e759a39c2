package postgres

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/crm-api/internal/model"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
)

func TestSelectListAppliesTenantBeforeFilters(t *testing.T) {
	company, owner := uuid.New(), uuid.New()
	scope := model.Scope{CompanyField: "company_id", CompanyID: company, OwnerField: "user_id", OwnerID: &owner}

	// A caller filter on company_id cannot replace the tenant clause; it is not even allowed.
	query, args, err := selectList("events", "id", scope, model.ListQuery{
		Filters:    model.Filters{"is_public": "true", "related_kind": "invoice"},
		Pagination: model.Pagination{Page: 2, PageSize: 10},
	}, eventFilters, "start_at DESC")
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT id FROM events WHERE company_id = $1 AND user_id = $2 AND is_public = $3 AND related_kind = $4 ORDER BY start_at DESC LIMIT $5 OFFSET $6",
		query)
	assert.Equal(t, []interface{}{company, owner, "true", "invoice", 10, 10}, args)
}

func TestSelectListRejectsUnknownFilter(t *testing.T) {
	scope := model.Scope{CompanyField: "company_id", CompanyID: uuid.New()}
	_, _, err := selectList("events", "id", scope, model.ListQuery{
		Filters: model.Filters{"company_id": uuid.NewString()},
	}, eventFilters, "")

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrValidation, appErr.Code)
	assert.Contains(t, appErr.Fields, "company_id")
}

func TestQueriesRequireScope(t *testing.T) {
	_, _, err := selectOne("events", "id", model.Scope{}, uuid.New())
	assert.ErrorIs(t, err, errInvalidScope)

	_, _, err = deleteOne("events", model.Scope{CompanyField: "company_id"}, uuid.New())
	assert.ErrorIs(t, err, errInvalidScope)

	_, _, err = update("events", model.Scope{}, uuid.New(), []string{"title"}, []interface{}{"x"})
	assert.ErrorIs(t, err, errInvalidScope)
}

func TestUpdatePlacesScopeAfterSet(t *testing.T) {
	company, id := uuid.New(), uuid.New()
	scope := model.Scope{CompanyField: "company_id", CompanyID: company}

	query, args, err := update("roles", scope, id, []string{"name", "permissions"}, []interface{}{"ops", "{}"})
	require.NoError(t, err)
	assert.Equal(t, "UPDATE roles SET name = $1, permissions = $2 WHERE company_id = $3 AND id = $4", query)
	assert.Equal(t, []interface{}{"ops", "{}", company, id}, args)
}

func TestPrefixed(t *testing.T) {
	assert.Equal(t, "u.id, u.email, u.name", prefixed("u", "id, email,\n\tname"))
}
