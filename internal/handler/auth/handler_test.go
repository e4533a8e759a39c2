package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/crm-api/internal/middleware"
	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/service/auth"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
	"github.com/jwalitptl/crm-api/pkg/httputil"
	"github.com/jwalitptl/crm-api/pkg/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.SetupGin()
}

type fakeAuth struct {
	auth.AuthServicer
	signups  []*model.SignupRequest
	resets   []string
	password string
}

func (f *fakeAuth) Signup(_ context.Context, req *model.SignupRequest) (*model.User, error) {
	f.signups = append(f.signups, req)
	return &model.User{Email: req.Email, Name: req.Name}, nil
}

func (f *fakeAuth) Login(_ context.Context, req *model.LoginRequest) (*model.TokenResponse, error) {
	if req.Password != f.password {
		return nil, apperrors.Unauthorized(nil)
	}
	return &model.TokenResponse{AccessToken: "jwt", ExpiresAt: time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)}, nil
}

func (f *fakeAuth) RequestReset(_ context.Context, address string) error {
	f.resets = append(f.resets, address)
	return nil
}

func (f *fakeAuth) Activate(_ context.Context, key string) (*model.User, error) {
	if key != "k1" {
		return nil, apperrors.FieldError("key", "This activation link has expired.")
	}
	return &model.User{Email: "ana@example.com", IsActive: true}, nil
}

func newEngine(h *Handler, user *model.User) *gin.Engine {
	r := gin.New()
	h.RegisterRoutes(r.Group(""))
	authed := r.Group("")
	authed.Use(func(c *gin.Context) {
		if user != nil {
			c.Set(middleware.ContextUser, user)
		}
		c.Next()
	})
	h.RegisterProfileRoutes(authed)
	return r
}

func post(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSignup(t *testing.T) {
	svc := &fakeAuth{}
	r := newEngine(NewHandler(svc), nil)

	w := post(r, "/auth/signup", `{"email":"ana@example.com","name":"Ana","password":"s3cretpass","password_confirm":"s3cretpass","company_name":"Acme"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, svc.signups, 1)
	assert.Equal(t, "Acme", svc.signups[0].CompanyName)
	assert.NotContains(t, w.Body.String(), "s3cretpass")

	w = post(r, "/auth/signup", `{"email":"nope","name":"Ana","password":"short","password_confirm":"short","company_name":"Acme"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp httputil.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "validation_error", resp.Error.Code)
	assert.Contains(t, resp.Error.Fields, "email")
	assert.Contains(t, resp.Error.Fields, "password")
	assert.Len(t, svc.signups, 1)
}

func TestLogin(t *testing.T) {
	r := newEngine(NewHandler(&fakeAuth{password: "s3cretpass"}), nil)

	w := post(r, "/auth/login", `{"email":"ana@example.com","password":"s3cretpass"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"access_token":"jwt"`)

	w = post(r, "/auth/login", `{"email":"ana@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequestResetNeverLeaks(t *testing.T) {
	svc := &fakeAuth{}
	r := newEngine(NewHandler(svc), nil)

	w := post(r, "/auth/password/reset", `{"email":"ghost@example.com"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"ghost@example.com"}, svc.resets)
	assert.Contains(t, w.Body.String(), "If the address is registered")
}

func TestActivate(t *testing.T) {
	r := newEngine(NewHandler(&fakeAuth{}), nil)

	w := post(r, "/auth/activate/k1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = post(r, "/auth/activate/old", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "expired")
}

func TestMe(t *testing.T) {
	w := httptest.NewRecorder()
	newEngine(NewHandler(&fakeAuth{}), &model.User{Email: "ana@example.com"}).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ana@example.com")

	w = httptest.NewRecorder()
	newEngine(NewHandler(&fakeAuth{}), nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
