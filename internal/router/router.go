package router

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	authh "github.com/jwalitptl/crm-api/internal/handler/auth"
	companyh "github.com/jwalitptl/crm-api/internal/handler/company"
	eventh "github.com/jwalitptl/crm-api/internal/handler/event"
	"github.com/jwalitptl/crm-api/internal/handler/health"
	inviteh "github.com/jwalitptl/crm-api/internal/handler/invite"
	invoiceh "github.com/jwalitptl/crm-api/internal/handler/invoice"
	messageh "github.com/jwalitptl/crm-api/internal/handler/message"
	notificationh "github.com/jwalitptl/crm-api/internal/handler/notification"
	"github.com/jwalitptl/crm-api/internal/handler/prometheus"
	"github.com/jwalitptl/crm-api/internal/middleware"
	"github.com/jwalitptl/crm-api/internal/service/tenant"
	"github.com/jwalitptl/crm-api/pkg/logger"
	"github.com/jwalitptl/crm-api/pkg/metrics"
)

// Handlers groups the domain handlers mounted by the router.
type Handlers struct {
	Auth         *authh.Handler
	Company      *companyh.Handler
	Invite       *inviteh.Handler
	Event        *eventh.Handler
	Message      *messageh.Handler
	Notification *notificationh.Handler
	Invoice      *invoiceh.Handler
	Health       *health.Handler
	Metrics      *prometheus.Handler
}

type RouterConfig struct {
	RateLimit    rate.Limit
	RateBurst    int
	CORSConfig   middleware.CORSConfig
	Security     middleware.SecurityConfig
	MaxBodyBytes int64
}

type Router struct {
	engine *gin.Engine
	auth   *middleware.AuthMiddleware
	h      Handlers
}

func NewRouter(auth *middleware.AuthMiddleware, h Handlers, log *logger.Logger, m *metrics.Metrics, config RouterConfig) *Router {
	engine := gin.New()

	engine.Use(
		middleware.RequestID(log),
		middleware.Recovery(log),
		middleware.Logger(log, m),
		middleware.ErrorHandler(log),
		middleware.SecurityHeaders(config.Security),
		middleware.CORS(config.CORSConfig),
		middleware.SizeLimit(config.MaxBodyBytes),
	)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  config.RateLimit,
		Burst: config.RateBurst,
	})
	engine.Use(rateLimiter.RateLimit())

	return &Router{
		engine: engine,
		auth:   auth,
		h:      h,
	}
}

func (r *Router) Setup() {
	r.setupPublicRoutes()

	api := r.engine.Group("/api/v1")
	r.h.Health.RegisterRoutes(api)
	api.GET("/health/metrics", r.h.Metrics.Handler())

	r.h.Auth.RegisterRoutes(api)
	r.h.Invite.RegisterPublicRoutes(api)

	authed := api.Group("")
	authed.Use(r.auth.Authenticate())
	r.h.Auth.RegisterProfileRoutes(authed)
	r.h.Company.RegisterRoutes(authed)

	tenanted := authed.Group("")
	tenanted.Use(r.auth.Tenant())
	r.setupTenantRoutes(tenanted)

	billing := authed.Group("")
	billing.Use(r.auth.Tenant(tenant.AllowInactive()))
	r.h.Invoice.RegisterRoutes(billing)
}

// setupPublicRoutes mounts the links that end up in emails and public pages.
func (r *Router) setupPublicRoutes() {
	r.h.Message.RegisterTrackingRoutes(r.engine)
	r.h.Event.RegisterPublicRoutes(r.engine)
	r.engine.GET("/activate/:key", r.h.Auth.Activate)
}

func (r *Router) setupTenantRoutes(rg *gin.RouterGroup) {
	r.h.Company.RegisterTenantRoutes(rg)
	r.h.Invite.RegisterRoutes(rg)
	r.h.Event.RegisterRoutes(rg)
	r.h.Message.RegisterRoutes(rg)
	r.h.Notification.RegisterRoutes(rg)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
