package task

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/ops"
	"github.com/jwalitptl/crm-api/internal/service/tenant"
	"github.com/jwalitptl/crm-api/pkg/logger"
	"github.com/jwalitptl/crm-api/pkg/messaging"
	"github.com/jwalitptl/crm-api/pkg/metrics"
	"github.com/jwalitptl/crm-api/pkg/worker"
)

type Mode string

const (
	ModeSync  Mode = "sync"
	ModeAsync Mode = "async"
)

type TenantResolver interface {
	ResolveFor(ctx context.Context, user *model.User, companyID uuid.UUID, opts ...tenant.Option) (*tenant.Context, error)
}

type UserRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*model.User, error)
}

type Notifier interface {
	Notify(ctx context.Context, companyID, userID uuid.UUID, res model.Result) (*model.Notification, error)
}

type Reporter interface {
	Report(ctx context.Context, in ops.Incident)
}

// Job is the queued form of an action call.
type Job struct {
	Model     string     `json:"model"`
	Action    string     `json:"action"`
	CompanyID *uuid.UUID `json:"company_id,omitempty"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	TargetID  *uuid.UUID `json:"target_id,omitempty"`
	Kwargs    Kwargs     `json:"kwargs,omitempty"`
}

func (j *Job) Name() string {
	return Name(j.Model, j.Action)
}

// Request asks for model.action to run as the tenant's user against target.
// A request without a tenant may still carry a company for system jobs.
type Request struct {
	Model     string
	Action    string
	Tenant    *tenant.Context
	CompanyID *uuid.UUID
	TargetID  *uuid.UUID
	Kwargs    map[string]interface{}
}

type Config struct {
	Mode  Mode
	Queue string
}

// Dispatcher runs actions in-process or defers them to the queue. The mode is fixed
// at construction.
type Dispatcher struct {
	cfg      Config
	queue    messaging.Queue
	registry *Registry
	tenants  TenantResolver
	users    UserRepository
	notifier Notifier
	reporter Reporter
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewDispatcher(
	cfg Config,
	queue messaging.Queue,
	registry *Registry,
	tenants TenantResolver,
	users UserRepository,
	notifier Notifier,
	reporter Reporter,
	log *logger.Logger,
	m *metrics.Metrics,
) *Dispatcher {
	return &Dispatcher{
		cfg:      cfg,
		queue:    queue,
		registry: registry,
		tenants:  tenants,
		users:    users,
		notifier: notifier,
		reporter: reporter,
		logger:   log,
		metrics:  m,
	}
}

func (d *Dispatcher) Mode() Mode {
	return d.cfg.Mode
}

func (d *Dispatcher) job(req Request) *Job {
	job := &Job{
		Model:     req.Model,
		Action:    req.Action,
		CompanyID: req.CompanyID,
		TargetID:  req.TargetID,
		Kwargs:    Serialize(req.Kwargs),
	}
	if req.Tenant != nil {
		cid, uid := req.Tenant.CompanyID(), req.Tenant.UserID()
		job.CompanyID = &cid
		job.UserID = &uid
	}
	return job
}

// Run executes the action now in sync mode and returns its results, which are also
// routed to the acting user's notifications. In async mode it only enqueues.
func (d *Dispatcher) Run(ctx context.Context, req Request) ([]model.Result, error) {
	if _, err := d.registry.lookup(req.Model, req.Action); err != nil {
		return nil, err
	}
	job := d.job(req)

	if d.cfg.Mode == ModeSync {
		call := &Call{
			CompanyID: job.CompanyID,
			Tenant:    req.Tenant,
			TargetID:  job.TargetID,
			Kwargs:    job.Kwargs,
		}
		if req.Tenant != nil {
			call.User = req.Tenant.User
		}
		results, err := d.execute(ctx, job, call)
		status := "success"
		if err != nil {
			status = "error"
		}
		d.metrics.TasksProcessed.WithLabelValues(job.Name(), status).Inc()
		return results, err
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job %s: %w", job.Name(), err)
	}
	if err := worker.Enqueue(ctx, d.queue, d.cfg.Queue, job.Name(), payload); err != nil {
		return nil, fmt.Errorf("failed to enqueue %s: %w", job.Name(), err)
	}
	d.logger.Debug("task enqueued", "name", job.Name())
	return nil, nil
}

// Handle is the queue handler: it rebuilds the call from ids and runs it.
// Errors are returned so the queue's retry bookkeeping applies.
func (d *Dispatcher) Handle(ctx context.Context, payload []byte) error {
	var job Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return fmt.Errorf("failed to unmarshal job: %w", err)
	}

	a, err := d.registry.lookup(job.Model, job.Action)
	if err != nil {
		d.report(ctx, &job, err, nil)
		return err
	}

	call := &Call{CompanyID: job.CompanyID, TargetID: job.TargetID, Kwargs: job.Kwargs}
	if job.UserID != nil {
		user, err := d.users.Get(ctx, *job.UserID)
		if err != nil {
			d.report(ctx, &job, err, nil)
			return fmt.Errorf("failed to get user: %w", err)
		}
		call.User = user
		if job.CompanyID != nil {
			var opts []tenant.Option
			if a.allowInactive {
				opts = append(opts, tenant.AllowInactive())
			}
			tc, err := d.tenants.ResolveFor(ctx, user, *job.CompanyID, opts...)
			if err != nil {
				d.report(ctx, &job, err, nil)
				return err
			}
			call.Tenant = tc
		}
	}

	_, err = d.execute(ctx, &job, call)
	return err
}

func (d *Dispatcher) execute(ctx context.Context, job *Job, call *Call) (results []model.Result, err error) {
	a, err := d.registry.lookup(job.Model, job.Action)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", job.Name(), r)
			d.report(ctx, job, err, debug.Stack())
		}
	}()

	out, err := a.fn(ctx, call)
	if err != nil {
		d.report(ctx, job, err, debug.Stack())
		return nil, err
	}
	return d.route(ctx, job, out), nil
}

// route expands the action's output into results and notifies the acting user once per result.
func (d *Dispatcher) route(ctx context.Context, job *Job, out interface{}) []model.Result {
	var results []model.Result
	switch v := out.(type) {
	case model.Result:
		results = []model.Result{v}
	case []model.Result:
		results = v
	}

	if job.CompanyID == nil || job.UserID == nil {
		return results
	}
	for _, res := range results {
		if _, err := d.notifier.Notify(ctx, *job.CompanyID, *job.UserID, res); err != nil {
			d.logger.Error(err, "failed to notify task result", "name", job.Name())
		}
	}
	return results
}

func (d *Dispatcher) report(ctx context.Context, job *Job, err error, stack []byte) {
	d.reporter.Report(ctx, ops.Incident{
		Model:     job.Model,
		Action:    job.Action,
		CompanyID: job.CompanyID,
		UserID:    job.UserID,
		TargetID:  job.TargetID,
		Kwargs:    job.Kwargs,
		Err:       err,
		Stack:     stack,
	})
}
