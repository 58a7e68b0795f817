// Package service implements the report review workflow on top of the
// repositories: capability and state checks, guarded writes, cache
// invalidation and notification side effects.
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"redas-backend/internal/cache"
	"redas-backend/internal/models"
	"redas-backend/internal/notify"
	"redas-backend/internal/repository"
	"redas-backend/internal/workflow"
)

// UserDirectory resolves report relations.
type UserDirectory interface {
	FindByIDs(ctx context.Context, ids []int64) (map[int64]models.UserSummary, error)
}

// ReportService runs every report operation. Each method checks
// capability, then the state guard, then input.
type ReportService struct {
	reports  repository.ReportRepository
	users    UserDirectory
	notifier notify.Notifier
	stats    *cache.StatsCache
	log      *zap.Logger
	now      func() time.Time
}

// NewReportService wires the service. stats may be nil.
func NewReportService(
	reports repository.ReportRepository,
	users UserDirectory,
	notifier notify.Notifier,
	stats *cache.StatsCache,
	log *zap.Logger,
) *ReportService {
	return &ReportService{
		reports:  reports,
		users:    users,
		notifier: notifier,
		stats:    stats,
		log:      log.With(zap.String("component", "report_service")),
		now:      time.Now,
	}
}

// ── Write path ───────────────────────────────────────────────────

// Submit creates a pending report owned by the actor.
func (s *ReportService) Submit(ctx context.Context, actor workflow.Actor, req models.CreateReportRequest) (*models.ReportWithRelations, error) {
	if _, err := workflow.Check(actor, workflow.ActionSubmit, workflow.Subject{}); err != nil {
		return nil, err
	}
	if err := workflow.Validation(req.Validate(s.now())); err != nil {
		return nil, err
	}

	created, err := s.reports.Create(ctx, req.ToReport(actor.ID))
	if err != nil {
		return nil, err
	}
	s.log.Info("report submitted",
		zap.Int64("report_id", created.ID),
		zap.Int64("user_id", actor.ID),
		zap.String("report_type", created.ReportType))

	return s.afterWrite(ctx, actor, *created, notify.EventSubmitted), nil
}

// Edit updates a pending report in place. Only the owner may edit.
func (s *ReportService) Edit(ctx context.Context, actor workflow.Actor, id int64, req models.UpdateReportRequest) (*models.ReportWithRelations, error) {
	rep, err := s.reports.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := workflow.Check(actor, workflow.ActionEdit, rep.Subject()); err != nil {
		return nil, err
	}
	if err := workflow.Validation(req.Validate(s.now())); err != nil {
		return nil, err
	}

	merged := *rep
	req.Apply(&merged)
	if !merged.HasQuantity() {
		return nil, workflow.Validation(models.NoQuantityErrors())
	}

	updated, err := s.reports.UpdatePending(ctx, &merged, actor.ID)
	if errors.Is(err, repository.ErrStale) {
		return nil, s.conflict(ctx, id, workflow.ActionEdit)
	}
	if err != nil {
		return nil, err
	}
	return s.afterWrite(ctx, actor, *updated, ""), nil
}

// Vet moves a pending report to vetted.
func (s *ReportService) Vet(ctx context.Context, actor workflow.Actor, id int64, req models.ReviewRequest) (*models.ReportWithRelations, error) {
	return s.transition(ctx, actor, id, workflow.ActionVet, req)
}

// Approve moves a vetted report to approved.
func (s *ReportService) Approve(ctx context.Context, actor workflow.Actor, id int64, req models.ReviewRequest) (*models.ReportWithRelations, error) {
	return s.transition(ctx, actor, id, workflow.ActionApprove, req)
}

// Reject closes a pending or vetted report. Comments are mandatory.
func (s *ReportService) Reject(ctx context.Context, actor workflow.Actor, id int64, req models.ReviewRequest) (*models.ReportWithRelations, error) {
	return s.transition(ctx, actor, id, workflow.ActionReject, req)
}

var transitionEvents = map[workflow.Action]notify.Event{
	workflow.ActionVet:     notify.EventVetted,
	workflow.ActionApprove: notify.EventApproved,
	workflow.ActionReject:  notify.EventRejected,
}

func (s *ReportService) transition(ctx context.Context, actor workflow.Actor, id int64, action workflow.Action, req models.ReviewRequest) (*models.ReportWithRelations, error) {
	rep, err := s.reports.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	to, err := workflow.Check(actor, action, rep.Subject())
	if err != nil {
		return nil, err
	}
	if err := workflow.Validation(req.Validate(action == workflow.ActionReject)); err != nil {
		return nil, err
	}

	gate := workflow.GateVet
	switch action {
	case workflow.ActionApprove:
		gate = workflow.GateApproval
	case workflow.ActionReject:
		gate = workflow.RejectionGate(rep.Status)
	}

	updated, err := s.reports.Transition(ctx, repository.Transition{
		ReportID: id,
		Action:   action,
		From:     rep.Status,
		To:       to,
		Gate:     gate,
		ActorID:  actor.ID,
		Comments: req.Normalized(),
		At:       s.now().UTC(),
	})
	if errors.Is(err, repository.ErrStale) {
		return nil, s.conflict(ctx, id, action)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("report transitioned",
		zap.Int64("report_id", id),
		zap.String("action", string(action)),
		zap.String("from", string(rep.Status)),
		zap.String("to", string(to)),
		zap.Int64("actor_id", actor.ID))

	return s.afterWrite(ctx, actor, *updated, transitionEvents[action]), nil
}

// Delete soft-deletes a report.
func (s *ReportService) Delete(ctx context.Context, actor workflow.Actor, id int64) error {
	rep, err := s.reports.Get(ctx, id)
	if err != nil {
		return err
	}
	if _, err := workflow.Check(actor, workflow.ActionDelete, rep.Subject()); err != nil {
		return err
	}

	err = s.reports.SoftDelete(ctx, id, rep.Status, actor.ID, s.now().UTC())
	if errors.Is(err, repository.ErrStale) {
		return s.conflict(ctx, id, workflow.ActionDelete)
	}
	if err != nil {
		return err
	}

	s.log.Info("report deleted", zap.Int64("report_id", id), zap.Int64("actor_id", actor.ID))
	s.stats.Invalidate(ctx)
	return nil
}

// conflict turns a missed status guard into the error the caller sees:
// the report is gone, or it is in a status the action does not accept.
func (s *ReportService) conflict(ctx context.Context, id int64, action workflow.Action) error {
	cur, err := s.reports.Get(ctx, id)
	if err != nil {
		return err
	}
	return &workflow.StateConflictError{Action: action, Current: cur.Status}
}

// afterWrite invalidates cached statistics, emits the event (if any) and
// returns the report with relations resolved.
func (s *ReportService) afterWrite(ctx context.Context, actor workflow.Actor, rep models.Report, ev notify.Event) *models.ReportWithRelations {
	s.stats.Invalidate(ctx)

	users := s.resolveUsers(ctx, append(models.RelatedUserIDs(rep), actor.ID))
	out := rep.WithRelations(users)

	if ev != "" && s.notifier != nil {
		who, ok := users[actor.ID]
		if !ok {
			who = models.UserSummary{ID: actor.ID, Role: actor.Role}
		}
		s.notifier.Notify(ctx, notify.ReportEvent{Event: ev, Report: rep, Actor: who})
	}
	return &out
}

// resolveUsers never fails the caller: a write has already committed by
// the time relations are resolved, so lookup errors only drop the relations.
func (s *ReportService) resolveUsers(ctx context.Context, ids []int64) map[int64]models.UserSummary {
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		s.log.Warn("resolve report relations failed", zap.Error(err))
		return map[int64]models.UserSummary{}
	}
	return users
}

// ── Read path ────────────────────────────────────────────────────

// Get returns one report if the actor may see it.
func (s *ReportService) Get(ctx context.Context, actor workflow.Actor, id int64) (*models.ReportWithRelations, error) {
	rep, err := s.reports.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := workflow.Authorize(actor, workflow.ActionView, rep.Subject()); err != nil {
		return nil, err
	}
	out := rep.WithRelations(s.resolveUsers(ctx, models.RelatedUserIDs(*rep)))
	return &out, nil
}

// List returns one page of the actor's visible reports.
func (s *ReportService) List(ctx context.Context, actor workflow.Actor, f models.ReportFilter) (*models.ReportPage, error) {
	f.Normalize()
	if err := workflow.Validation(f.Validate()); err != nil {
		return nil, err
	}

	reports, total, err := s.reports.List(ctx, models.ScopeFor(actor), f)
	if err != nil {
		return nil, err
	}
	return &models.ReportPage{
		Data:     s.withRelations(ctx, reports),
		Total:    total,
		Page:     f.Page,
		PerPage:  f.PerPage,
		LastPage: models.LastPageFor(total, f.PerPage),
	}, nil
}

// Export returns every visible report matching f, without paging.
func (s *ReportService) Export(ctx context.Context, actor workflow.Actor, f models.ReportFilter) ([]models.ReportWithRelations, error) {
	f.Normalize()
	if err := workflow.Validation(f.Validate()); err != nil {
		return nil, err
	}
	reports, err := s.reports.ListAll(ctx, models.ScopeFor(actor), f)
	if err != nil {
		return nil, err
	}
	return s.withRelations(ctx, reports), nil
}

func (s *ReportService) withRelations(ctx context.Context, reports []models.Report) []models.ReportWithRelations {
	users := s.resolveUsers(ctx, models.RelatedUserIDs(reports...))
	out := make([]models.ReportWithRelations, len(reports))
	for i, r := range reports {
		out[i] = r.WithRelations(users)
	}
	return out
}

// Statistics counts the actor's visible reports, served from cache when warm.
func (s *ReportService) Statistics(ctx context.Context, actor workflow.Actor) (*models.ReportStatistics, error) {
	scope := models.ScopeFor(actor)
	stats, slot, ok := s.stats.Get(ctx, scope.Key())
	if ok {
		return stats, nil
	}
	stats, err := s.reports.Statistics(ctx, scope)
	if err != nil {
		return nil, err
	}
	slot.Set(ctx, stats)
	return stats, nil
}
