package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/crm-api/internal/handler"
	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/service/auth"
	"github.com/jwalitptl/crm-api/pkg/httputil"
)

type Handler struct {
	svc auth.AuthServicer
}

func NewHandler(svc auth.AuthServicer) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the unauthenticated account endpoints.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.POST("/signup", h.Signup)
		auth.POST("/login", h.Login)
		auth.POST("/activate/:key", h.Activate)
		auth.POST("/password/reset", h.RequestReset)
		auth.POST("/password/reset/confirm", h.ConfirmReset)
	}
}

// RegisterProfileRoutes mounts the endpoints for the authenticated user.
func (h *Handler) RegisterProfileRoutes(r *gin.RouterGroup) {
	me := r.Group("/me")
	{
		me.GET("", h.Me)
		me.PATCH("", h.UpdateProfile)
		me.POST("/password", h.ChangePassword)
	}
}

func (h *Handler) Signup(c *gin.Context) {
	var req model.SignupRequest
	if err := httputil.Bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	user, err := h.svc.Signup(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusCreated, user)
}

func (h *Handler) Activate(c *gin.Context) {
	user, err := h.svc.Activate(c.Request.Context(), c.Param("key"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, user)
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := httputil.Bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	tokens, err := h.svc.Login(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, tokens)
}

// RequestReset answers the same way whether or not the address is known.
func (h *Handler) RequestReset(c *gin.Context) {
	var req model.PasswordResetRequest
	if err := httputil.Bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if err := h.svc.RequestReset(c.Request.Context(), req.Email); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	handler.RespondWithResult(c, model.Info("If the address is registered, a reset link is on its way."), nil)
}

func (h *Handler) ConfirmReset(c *gin.Context) {
	var req model.PasswordResetConfirm
	if err := httputil.Bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if err := h.svc.ConfirmReset(c.Request.Context(), &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	handler.RespondWithResult(c, model.Success("Your password has been reset."), nil)
}

func (h *Handler) Me(c *gin.Context) {
	user, ok := handler.User(c)
	if !ok {
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, user)
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	user, ok := handler.User(c)
	if !ok {
		return
	}

	var req model.UpdateProfileRequest
	if err := httputil.Bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	updated, err := h.svc.UpdateProfile(c.Request.Context(), user, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, updated)
}

func (h *Handler) ChangePassword(c *gin.Context) {
	user, ok := handler.User(c)
	if !ok {
		return
	}

	var req model.PasswordChangeRequest
	if err := httputil.Bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if err := h.svc.ChangePassword(c.Request.Context(), user, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	handler.RespondWithResult(c, model.Success("Your password has been changed."), nil)
}
