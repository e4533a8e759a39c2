package ops

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/email"
	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/pkg/logger"
)

type Mailer interface {
	SendTemplate(ctx context.Context, company *model.Company, name string, data interface{}, to ...string) (int, error)
}

// Incident describes a failed background action.
type Incident struct {
	Model     string
	Action    string
	CompanyID *uuid.UUID
	UserID    *uuid.UUID
	TargetID  *uuid.UUID
	Kwargs    map[string]interface{}
	Err       error
	Stack     []byte
}

// Reporter is the operator channel: every incident is logged and, when operators
// are configured, mailed to them through the shared connection.
type Reporter struct {
	mailer     Mailer
	recipients []string
	site       string
	logger     *logger.Logger
}

func NewReporter(mailer Mailer, recipients []string, site string, log *logger.Logger) *Reporter {
	return &Reporter{
		mailer:     mailer,
		recipients: recipients,
		site:       site,
		logger:     log,
	}
}

// Report never fails; a mail error is logged next to the incident.
func (r *Reporter) Report(ctx context.Context, in Incident) {
	data := email.OpsData{
		Site:      r.site,
		Model:     in.Model,
		Action:    in.Action,
		CompanyID: idString(in.CompanyID),
		UserID:    idString(in.UserID),
		TargetID:  idString(in.TargetID),
		Kwargs:    kwargsString(in.Kwargs),
		Stack:     string(in.Stack),
	}
	if in.Err != nil {
		data.Error = in.Err.Error()
	}

	r.logger.Error(in.Err, "task failed",
		"model", data.Model,
		"action", data.Action,
		"company_id", data.CompanyID,
		"user_id", data.UserID,
		"target_id", data.TargetID,
		"kwargs", data.Kwargs,
		"stack", data.Stack,
	)

	if len(r.recipients) == 0 {
		return
	}
	if _, err := r.mailer.SendTemplate(context.WithoutCancel(ctx), nil, email.OpsReport, data, r.recipients...); err != nil {
		r.logger.Error(err, "failed to mail operators", "action", data.Action)
	}
}

func idString(id *uuid.UUID) string {
	if id == nil {
		return "-"
	}
	return id.String()
}

func kwargsString(kwargs map[string]interface{}) string {
	if len(kwargs) == 0 {
		return "{}"
	}
	raw, err := json.Marshal(kwargs)
	if err != nil {
		return "<unserializable>"
	}
	return string(raw)
}
