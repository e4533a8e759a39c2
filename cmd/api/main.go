package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/crm-api/internal/app"
	"github.com/jwalitptl/crm-api/internal/config"
	authh "github.com/jwalitptl/crm-api/internal/handler/auth"
	companyh "github.com/jwalitptl/crm-api/internal/handler/company"
	eventh "github.com/jwalitptl/crm-api/internal/handler/event"
	"github.com/jwalitptl/crm-api/internal/handler/health"
	inviteh "github.com/jwalitptl/crm-api/internal/handler/invite"
	invoiceh "github.com/jwalitptl/crm-api/internal/handler/invoice"
	messageh "github.com/jwalitptl/crm-api/internal/handler/message"
	notificationh "github.com/jwalitptl/crm-api/internal/handler/notification"
	promh "github.com/jwalitptl/crm-api/internal/handler/prometheus"
	"github.com/jwalitptl/crm-api/internal/middleware"
	"github.com/jwalitptl/crm-api/internal/router"
	"github.com/jwalitptl/crm-api/pkg/logger"
	"github.com/jwalitptl/crm-api/pkg/metrics"
	"github.com/jwalitptl/crm-api/pkg/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Logging.Level),
		TimeFormat: time.RFC3339,
		Console:    cfg.Logging.Console,
	})

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	validator.SetupGin()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg, "crm")

	a, err := app.New(context.Background(), cfg, log, m)
	if err != nil {
		log.Fatal(err, "failed to initialize application")
	}
	defer a.Close()

	checks := map[string]health.Checker{
		"database": a.DB.PingContext,
	}
	if p, ok := a.Queue.(interface{ Ping(context.Context) error }); ok {
		checks["queue"] = p.Ping
	}

	authMiddleware := middleware.NewAuthMiddleware(a.Auth, a.Guard)
	handlers := router.Handlers{
		Auth:         authh.NewHandler(a.Auth),
		Company:      companyh.NewHandler(a.Companies),
		Invite:       inviteh.NewHandler(a.Invites, a.Dispatcher),
		Event:        eventh.NewHandler(a.Events, a.Dispatcher),
		Message:      messageh.NewHandler(a.Messages, a.Dispatcher, log),
		Notification: notificationh.NewHandler(a.Notifications),
		Invoice:      invoiceh.NewHandler(a.Invoices),
		Health:       health.NewHandler(checks),
		Metrics:      promh.New(reg),
	}

	cors := middleware.DefaultCORSConfig()
	if len(cfg.CORS.AllowedOrigins) > 0 {
		cors.AllowOrigins = cfg.CORS.AllowedOrigins
	}
	security := middleware.DefaultSecurityConfig()
	security.HSTSMaxAge = cfg.Server.HSTSMaxAge

	r := router.NewRouter(authMiddleware, handlers, log, m, router.RouterConfig{
		RateLimit:    rate.Limit(cfg.RateLimit.RequestsPerSecond),
		RateBurst:    cfg.RateLimit.Burst,
		CORSConfig:   cors,
		Security:     security,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("starting server", "addr", srv.Addr, "tasks", cfg.Tasks.Mode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err, "failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error(err, "server forced to shutdown")
	}

	log.Info("server exited properly")
}
