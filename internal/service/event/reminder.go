package event

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/email"
	"github.com/jwalitptl/crm-api/internal/model"
)

// Counts summarises a reminder sweep.
type Counts struct {
	Total  int `json:"total"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// CheckAll sends the due reminders of every owned event starting inside the sweep window.
// An event failing does not stop the sweep.
func (s *Service) CheckAll(ctx context.Context) (Counts, error) {
	now := s.now()
	events, err := s.events.ListReminderCandidates(ctx, now.Add(-s.cfg.Lookback), now.Add(s.cfg.Horizon))
	if err != nil {
		return Counts{}, err
	}

	counts := Counts{Total: len(events)}
	s.metrics.ReminderCandidates.Add(float64(len(events)))

	for _, e := range events {
		if err := ctx.Err(); err != nil {
			return counts, err
		}
		res, err := s.Remind(ctx, e, now)
		switch {
		case err != nil:
			counts.Failed++
			s.logger.Error(err, "failed to send event reminder", "event_id", e.ID)
		case res.Level == model.LevelError:
			counts.Failed++
		case res.OK():
			counts.Sent++
			if err := s.notifyOwner(ctx, e, res, nil); err != nil {
				s.logger.Error(err, "failed to notify event owner", "event_id", e.ID)
			}
		}
	}

	s.logger.Info("reminder sweep finished", "total", counts.Total, "sent", counts.Sent, "failed", counts.Failed)
	return counts, nil
}

// Remind sends one message covering every offset of e due at now, to the owner
// with share-with users in copy. Offsets are recorded only after the message went out,
// so a failed send is retried by the next sweep. Remind does not notify anyone;
// callers route the result.
func (s *Service) Remind(ctx context.Context, e *model.Event, now time.Time) (model.Result, error) {
	due := e.DueOffsets(now)
	if len(due) == 0 || e.UserID == nil {
		return model.Info("No reminders due.").About(e.Ref()), nil
	}

	company, err := s.companies.Get(ctx, e.CompanyID)
	if err != nil {
		return model.Result{}, fmt.Errorf("failed to get company: %w", err)
	}
	if !company.IsActive {
		return model.Info("Company is inactive.").About(e.Ref()), nil
	}

	owner, err := s.users.Get(ctx, *e.UserID)
	if err != nil {
		return model.Result{}, fmt.Errorf("failed to get event owner: %w", err)
	}
	cc, err := s.shareEmails(ctx, e)
	if err != nil {
		return model.Result{}, err
	}

	mail, err := s.renderer.Render(email.Reminder, email.ReminderData{
		Title:       e.Title,
		Description: e.Description,
		Start:       e.Start,
		Minutes:     e.MinutesUntilStart(now),
		URL:         s.eventURL(e),
	})
	if err != nil {
		return model.Result{}, err
	}

	kind := model.KindEvent
	eid := e.ID
	m := &model.Message{
		CompanyID:   e.CompanyID,
		UserID:      e.UserID,
		Direction:   model.DirectionOutbound,
		RelatedKind: &kind,
		RelatedID:   &eid,
		From:        company.MailFrom,
		To:          []string{owner.Email},
		Cc:          cc,
		Subject:     mail.Subject,
		Content:     mail.HTML,
	}
	if err := s.messages.CreateMessage(ctx, m); err != nil {
		return model.Result{}, err
	}

	res, err := s.messages.Send(ctx, m)
	if err != nil {
		return model.Result{}, err
	}
	if !res.OK() {
		s.metrics.RemindersFailed.Inc()
		return model.Failure(fmt.Sprintf("Reminder for %q failed: %s", e.Title, res.Message)).About(e.Ref()), nil
	}

	e.MarkNotified(due...)
	if err := s.events.UpdateNotified(ctx, e.ID, e.Notified); err != nil {
		return model.Result{}, fmt.Errorf("failed to record reminder: %w", err)
	}
	s.metrics.RemindersSent.Inc()

	return model.Success(fmt.Sprintf("Reminder sent for %q.", e.Title)).About(e.Ref()), nil
}

// notifyOwner tells the event owner about a sent reminder unless the owner is
// actor, whose notification the dispatcher already creates.
func (s *Service) notifyOwner(ctx context.Context, e *model.Event, res model.Result, actor *model.User) error {
	if !res.OK() || e.UserID == nil || (actor != nil && actor.ID == *e.UserID) {
		return nil
	}
	_, err := s.notifier.Notify(ctx, e.CompanyID, *e.UserID, res)
	return err
}

func (s *Service) shareEmails(ctx context.Context, e *model.Event) ([]string, error) {
	ids := e.Recipients()
	if len(ids) <= 1 {
		return nil, nil
	}
	users, err := s.users.ListByIDs(ctx, ids[1:])
	if err != nil {
		return nil, fmt.Errorf("failed to list share-with users: %w", err)
	}
	emails := make([]string, 0, len(users))
	for _, u := range users {
		emails = append(emails, u.Email)
	}
	return emails, nil
}

// RemindByID runs Remind for a single event of the company on behalf of the system
// and notifies the owner.
func (s *Service) RemindByID(ctx context.Context, companyID, id uuid.UUID) (model.Result, error) {
	scope := model.Scope{CompanyField: model.EventEntity.CompanyField, CompanyID: companyID}
	e, err := s.events.Get(ctx, scope, id)
	if err != nil {
		return model.Result{}, err
	}
	return s.remindAs(ctx, e, nil)
}

func (s *Service) remindAs(ctx context.Context, e *model.Event, actor *model.User) (model.Result, error) {
	res, err := s.Remind(ctx, e, s.now())
	if err != nil {
		return model.Result{}, err
	}
	if err := s.notifyOwner(ctx, e, res, actor); err != nil {
		return model.Result{}, err
	}
	return res, nil
}
