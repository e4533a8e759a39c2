package company

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/crm-api/internal/middleware"
	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/service/permission"
	"github.com/jwalitptl/crm-api/internal/service/tenant"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeService struct {
	Service
	members  map[uuid.UUID]bool
	switched []uuid.UUID
}

func (f *fakeService) Switch(_ context.Context, _ *model.User, companyID uuid.UUID) error {
	if !f.members[companyID] {
		return apperrors.PermissionDenied(permission.ChangeCompany)
	}
	f.switched = append(f.switched, companyID)
	return nil
}

func (f *fakeService) SetActive(_ context.Context, actor *model.User, _ uuid.UUID, active bool) (model.Result, error) {
	if !actor.BypassesTenancy() {
		return model.Result{}, apperrors.PermissionDenied("account:activate_company")
	}
	if active {
		return model.Success("Company activated."), nil
	}
	return model.Success("Company deactivated."), nil
}

func newEngine(svc Service, user *model.User, tc *tenant.Context) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUser, user)
		if tc != nil {
			c.Set(middleware.ContextTenant, tc)
		}
		c.Next()
	})
	h := NewHandler(svc)
	h.RegisterRoutes(r.Group(""))
	h.RegisterTenantRoutes(r.Group(""))
	return r
}

func TestSwitch(t *testing.T) {
	member, stranger := uuid.New(), uuid.New()
	svc := &fakeService{members: map[uuid.UUID]bool{member: true}}
	r := newEngine(svc, &model.User{}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/companies/"+member.String()+"/switch", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/companies/"+stranger.String()+"/switch", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	assert.Equal(t, []uuid.UUID{member}, svc.switched)
}

func TestActivateIsAdminOnly(t *testing.T) {
	id := uuid.NewString()

	w := httptest.NewRecorder()
	newEngine(&fakeService{}, &model.User{}, nil).
		ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/companies/"+id+"/activate", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	newEngine(&fakeService{}, &model.User{IsStaff: true}, nil).
		ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/companies/"+id+"/deactivate", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Company deactivated.")
}

func TestCurrentListsPermissions(t *testing.T) {
	company := &model.Company{Name: "Acme", IsActive: true}
	tc := &tenant.Context{
		User:    &model.User{},
		Company: company,
		Perms:   permission.NewSet(permission.SendMessage, model.EventEntity.Perm(model.ActionView)),
	}

	w := httptest.NewRecorder()
	newEngine(&fakeService{}, tc.User, tc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/company", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Name        string   `json:"name"`
			Permissions []string `json:"permissions"`
			Universal   bool     `json:"universal"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Acme", resp.Data.Name)
	assert.Equal(t, []string{"crm:send_message", "crm:view_event"}, resp.Data.Permissions)
	assert.False(t, resp.Data.Universal)
}

func TestCatalog(t *testing.T) {
	w := httptest.NewRecorder()
	newEngine(&fakeService{}, &model.User{}, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/permissions", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "crm:add_event")
}
