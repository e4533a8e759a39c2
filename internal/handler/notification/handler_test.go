package notification

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
	"github.com/jwalitptl/crm-api/internal/service/notification"
	"github.com/jwalitptl/crm-api/internal/service/permission"
	"github.com/jwalitptl/crm-api/internal/service/tenant"
	"github.com/jwalitptl/crm-api/pkg/httputil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeService struct {
	notification.NotificationServicer
	marked int64
	unread int64
	read   []uuid.UUID
}

func (f *fakeService) MarkAllRead(context.Context, *tenant.Context) (int64, error) {
	return f.marked, nil
}

func (f *fakeService) CountUnread(context.Context, *tenant.Context) (int64, error) {
	return f.unread, nil
}

func (f *fakeService) SetRead(_ context.Context, _ *tenant.Context, id uuid.UUID) (model.Result, error) {
	if len(f.read) > 0 && f.read[len(f.read)-1] == id {
		return model.Info("Notification already read."), nil
	}
	f.read = append(f.read, id)
	return model.Success("Notification marked as read."), nil
}

func serve(svc notification.NotificationServicer, method, path string) *httptest.ResponseRecorder {
	tc := &tenant.Context{User: &model.User{}, Company: &model.Company{}, Perms: permission.NewSet()}
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextTenant, tc)
		c.Next()
	})
	NewHandler(svc).RegisterRoutes(r.Group(""))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestMarkAllRead(t *testing.T) {
	tests := []struct {
		name    string
		marked  int64
		status  string
		message string
	}{
		{"nothing", 0, "info", "Nothing to mark as read."},
		{"one", 1, "success", "1 notification marked as read."},
		{"many", 1234, "success", "1,234 notifications marked as read."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(&fakeService{marked: tt.marked}, http.MethodPost, "/notifications/read-all")

			require.Equal(t, http.StatusOK, w.Code)
			var resp httputil.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.status, resp.Status)
			assert.Equal(t, tt.message, resp.Message)
		})
	}
}

func TestCountUnread(t *testing.T) {
	w := serve(&fakeService{unread: 7}, http.MethodGet, "/notifications/unread")

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data map[string]int64 `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(7), resp.Data["unread"])
}

func TestSetReadRejectsBadID(t *testing.T) {
	svc := &fakeService{}
	w := serve(svc, http.MethodPost, "/notifications/nope/read")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.read)
}

func TestSetReadReportsResult(t *testing.T) {
	svc := &fakeService{}
	id := uuid.New()

	w := serve(svc, http.MethodPost, "/notifications/"+id.String()+"/read")

	require.Equal(t, http.StatusOK, w.Code)
	var resp httputil.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, []uuid.UUID{id}, svc.read)
}
