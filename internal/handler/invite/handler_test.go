package invite

import (
	"bytes"
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
	"github.com/jwalitptl/crm-api/internal/service/invite"
	"github.com/jwalitptl/crm-api/internal/service/permission"
	"github.com/jwalitptl/crm-api/internal/service/tenant"
	"github.com/jwalitptl/crm-api/internal/task"
	"github.com/jwalitptl/crm-api/pkg/httputil"
	"github.com/jwalitptl/crm-api/pkg/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.SetupGin()
}

type fakeService struct {
	Service
	sent     []*model.InviteRequest
	accepted []*model.AcceptInviteRequest
}

func (f *fakeService) Send(_ context.Context, _ *tenant.Context, req *model.InviteRequest) (*model.Invite, []model.Result, error) {
	f.sent = append(f.sent, req)
	inv := &model.Invite{Email: req.Email, IsActive: true}
	inv.ID = uuid.New()
	return inv, []model.Result{model.Success("Invite sent.")}, nil
}

func (f *fakeService) Accept(_ context.Context, req *model.AcceptInviteRequest) (*model.User, error) {
	f.accepted = append(f.accepted, req)
	return &model.User{Email: "new@acme.test"}, nil
}

type fakeDispatcher struct {
	requests []task.Request
	results  []model.Result
}

func (f *fakeDispatcher) Run(_ context.Context, req task.Request) ([]model.Result, error) {
	f.requests = append(f.requests, req)
	return f.results, nil
}

func newRouter(svc Service, d Dispatcher, perms permission.Set) *gin.Engine {
	tc := &tenant.Context{User: &model.User{}, Company: &model.Company{}, Perms: perms}
	r := gin.New()
	h := NewHandler(svc, d)
	h.RegisterPublicRoutes(r.Group(""))
	authed := r.Group("")
	authed.Use(func(c *gin.Context) {
		c.Set(middleware.ContextTenant, tc)
		c.Next()
	})
	h.RegisterRoutes(authed)
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSendReturnsInviteAndResults(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(svc, &fakeDispatcher{}, permission.Universal())

	w := do(r, http.MethodPost, "/invites", `{"email":"bob@acme.test"}`)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		Data struct {
			Invite  model.Invite   `json:"invite"`
			Results []model.Result `json:"results"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "bob@acme.test", resp.Data.Invite.Email)
	require.Len(t, resp.Data.Results, 1)
	assert.Equal(t, model.LevelSuccess, resp.Data.Results[0].Level)
}

func TestSendRejectsBadEmail(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(svc, &fakeDispatcher{}, permission.Universal())

	w := do(r, http.MethodPost, "/invites", `{"email":"not-an-email"}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp httputil.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Fields, "email")
	assert.Empty(t, svc.sent)
}

func TestResendDispatchesSendAction(t *testing.T) {
	d := &fakeDispatcher{}
	r := newRouter(&fakeService{}, d, permission.NewSet(permission.SendInvite))
	id := uuid.New()

	w := do(r, http.MethodPost, "/invites/"+id.String()+"/send", "")

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, d.requests, 1)
	assert.Equal(t, "invite", d.requests[0].Model)
	assert.Equal(t, invite.SendAction, d.requests[0].Action)
	require.NotNil(t, d.requests[0].TargetID)
	assert.Equal(t, id, *d.requests[0].TargetID)

	var resp httputil.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "info", resp.Status)
	assert.Equal(t, "Queued.", resp.Message)
}

func TestResendRequiresPermission(t *testing.T) {
	d := &fakeDispatcher{}
	r := newRouter(&fakeService{}, d, permission.NewSet())

	w := do(r, http.MethodPost, "/invites/"+uuid.NewString()+"/send", "")

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, d.requests)
}

func TestAcceptIsPublic(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(svc, &fakeDispatcher{}, permission.NewSet())

	w := do(r, http.MethodPost, "/invites/accept", `{"key":"abc","name":"Bob","password":"secret123","password_confirm":"secret123"}`)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, svc.accepted, 1)
	assert.Equal(t, "abc", svc.accepted[0].Key)
}
