package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCodes(t *testing.T) {
	cases := []struct {
		err    *AppError
		status int
		slug   string
	}{
		{NotFound("event", nil), http.StatusNotFound, "not_found"},
		{PermissionDenied("crm:view_event"), http.StatusForbidden, "permission_denied"},
		{NoCurrentTenant(), http.StatusUnauthorized, "no_company"},
		{TenantInactive("acme"), http.StatusForbidden, "company_inactive"},
		{FieldError("email", "already invited"), http.StatusBadRequest, "validation_error"},
		{Internal(fmt.Errorf("boom")), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, tc.err.StatusCode(), tc.err.Error())
		assert.Equal(t, tc.slug, tc.err.Slug())
	}
}

func TestSentinelsMatchWrappedErrors(t *testing.T) {
	err := fmt.Errorf("loading event: %w", NotFound("event", nil))
	assert.True(t, Is(err, NotFoundError))
	assert.False(t, Is(err, PermissionDeniedError))

	inactive := TenantInactive("acme")
	assert.True(t, Is(inactive, TenantInactiveError))
	assert.False(t, Is(inactive, NoCurrentTenantError))

	appErr, ok := As(err)
	assert.True(t, ok)
	assert.Equal(t, ErrNotFound, appErr.Code)
}
