package event

import (
	"bytes"
	"context"
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
	"github.com/jwalitptl/crm-api/internal/task"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
	"github.com/jwalitptl/crm-api/pkg/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.SetupGin()
}

type fakeService struct {
	Service
	companies map[uuid.UUID]bool
	added     []*model.Event
	public    map[string]*model.Event
}

func (f *fakeService) AddPublic(_ context.Context, companyID uuid.UUID, req *model.PublicEventRequest) (*model.Event, error) {
	active, ok := f.companies[companyID]
	if !ok {
		return nil, apperrors.NotFound("company", nil)
	}
	if !active {
		return nil, apperrors.TenantInactive("Acme")
	}
	e := &model.Event{CompanyID: companyID, Title: req.Title, Start: req.Start}
	f.added = append(f.added, e)
	return e, nil
}

func (f *fakeService) GetPublic(_ context.Context, slug string) (*model.Event, error) {
	if e, ok := f.public[slug]; ok {
		return e, nil
	}
	return nil, apperrors.NotFound("event", nil)
}

type fakeDispatcher struct {
	requests []task.Request
}

func (f *fakeDispatcher) Run(_ context.Context, req task.Request) ([]model.Result, error) {
	f.requests = append(f.requests, req)
	return []model.Result{model.Success("Reminder sent.")}, nil
}

func newEngine(h *Handler, tc *tenant.Context) *gin.Engine {
	r := gin.New()
	h.RegisterPublicRoutes(r)
	api := r.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Set(middleware.ContextTenant, tc)
		c.Next()
	})
	h.RegisterRoutes(api)
	return r
}

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAddPublic(t *testing.T) {
	active, inactive := uuid.New(), uuid.New()
	svc := &fakeService{companies: map[uuid.UUID]bool{active: true, inactive: false}}
	r := newEngine(NewHandler(svc, &fakeDispatcher{}), nil)

	body := `{"title":"Demo call","start":"2026-11-02T10:00:00Z"}`

	w := postJSON(r, "/e/"+active.String()+"/public", body)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, svc.added, 1)
	assert.Equal(t, "Demo call", svc.added[0].Title)

	w = postJSON(r, "/e/"+inactive.String()+"/public", body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = postJSON(r, "/e/not-a-company/public", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(r, "/e/"+active.String()+"/public", `{"start":"2026-11-02T10:00:00Z"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"title"`)
	assert.Len(t, svc.added, 1)
}

func TestGetPublic(t *testing.T) {
	svc := &fakeService{public: map[string]*model.Event{"demo-call": {Title: "Demo call"}}}
	r := newEngine(NewHandler(svc, &fakeDispatcher{}), nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/e/demo-call", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Demo call")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/e/private", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRemind(t *testing.T) {
	user := &model.User{}
	user.ID = uuid.New()
	company := &model.Company{IsActive: true}
	company.ID = uuid.New()

	t.Run("dispatches with change rights", func(t *testing.T) {
		tc := &tenant.Context{User: user, Company: company, Perms: permission.NewSet(model.EventEntity.Perm(model.ActionChange))}
		d := &fakeDispatcher{}
		r := newEngine(NewHandler(&fakeService{}, d), tc)

		id := uuid.New()
		w := postJSON(r, "/api/v1/events/"+id.String()+"/remind", "")
		require.Equal(t, http.StatusOK, w.Code)
		require.Len(t, d.requests, 1)
		assert.Equal(t, "event", d.requests[0].Model)
		assert.Equal(t, "remind", d.requests[0].Action)
		assert.Equal(t, id, *d.requests[0].TargetID)
	})

	t.Run("refused without change rights", func(t *testing.T) {
		tc := &tenant.Context{User: user, Company: company, Perms: permission.NewSet(model.EventEntity.Perm(model.ActionView))}
		d := &fakeDispatcher{}
		r := newEngine(NewHandler(&fakeService{}, d), tc)

		w := postJSON(r, "/api/v1/events/"+uuid.NewString()+"/remind", "")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, d.requests)
	})
}
