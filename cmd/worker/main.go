package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jwalitptl/crm-api/internal/app"
	"github.com/jwalitptl/crm-api/internal/config"
	"github.com/jwalitptl/crm-api/pkg/logger"
	"github.com/jwalitptl/crm-api/pkg/metrics"
	"github.com/jwalitptl/crm-api/pkg/worker"
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

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg, "crm")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, log, m)
	if err != nil {
		log.Fatal(err, "failed to initialize application")
	}
	defer a.Close()

	var wg sync.WaitGroup
	run := func(start func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start(ctx)
		}()
	}

	// In sync mode the API runs actions itself and nothing is queued.
	if cfg.Tasks.Async() {
		processor := worker.NewQueueProcessor(a.Queue, a.Dispatcher.Handle, worker.QueueProcessorConfig{
			Queue:       cfg.Tasks.Queue,
			DeadLetter:  cfg.Tasks.DeadLetter,
			MaxAttempts: cfg.Tasks.MaxAttempts,
			RetryDelay:  cfg.Tasks.RetryDelay,
			PollTimeout: cfg.Tasks.PollTimeout,
			Workers:     cfg.Tasks.WorkerCount,
		}, log, m)
		run(processor.Start)
	}

	reminders := worker.NewPeriodicWorker("event_reminders", cfg.Reminders.Interval, func(ctx context.Context) error {
		counts, err := a.Events.CheckAll(ctx)
		if err != nil {
			return err
		}
		log.Debug("reminder sweep finished", "total", counts.Total, "sent", counts.Sent, "failed", counts.Failed)
		return nil
	}, log)
	run(reminders.Start)

	if cfg.Billing.CheckInterval > 0 {
		billing := worker.NewPeriodicWorker("billing_check", cfg.Billing.CheckInterval, func(ctx context.Context) error {
			n, err := a.Invoices.CheckAll(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				log.Info("companies deactivated for unpaid invoices", "count", n)
			}
			return nil
		}, log)
		run(billing.Start)
	}

	var srv *http.Server
	if cfg.Tasks.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Tasks.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error(err, "metrics server failed")
			}
		}()
	}

	log.Info("worker started", "mode", cfg.Tasks.Mode, "queue", cfg.Tasks.Queue)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down worker...")

	cancel()
	wg.Wait()

	if srv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(err, "metrics server forced to shutdown")
		}
	}

	log.Info("worker exited properly")
}
