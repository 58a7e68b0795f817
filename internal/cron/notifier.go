// Package cron runs scheduled background jobs.
package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"redas-backend/internal/models"
	"redas-backend/internal/workflow"
)

// PendingSource lists reports still waiting for a vetter.
type PendingSource interface {
	PendingBefore(ctx context.Context, before time.Time) ([]models.Report, error)
}

// RoleDirectory resolves reminder recipients.
type RoleDirectory interface {
	IDsByRoles(ctx context.Context, roles []workflow.Role) ([]int64, error)
}

// Inbox stores reminders and answers the per-day de-duplication check.
type Inbox interface {
	Insert(ctx context.Context, ns ...models.Notification) error
	SentOn(ctx context.Context, userID int64, nType string, entityID int64, day time.Time) (bool, error)
}

// ReminderJob notifies every vetter about reports that have been pending
// for at least StaleDays. Each user hears about a report at most once a day.
type ReminderJob struct {
	reports   PendingSource
	roles     RoleDirectory
	inbox     Inbox
	staleDays int
	log       *zap.Logger
	now       func() time.Time
}

func NewReminderJob(reports PendingSource, roles RoleDirectory, inbox Inbox, staleDays int, log *zap.Logger) *ReminderJob {
	return &ReminderJob{
		reports:   reports,
		roles:     roles,
		inbox:     inbox,
		staleDays: staleDays,
		log:       log.With(zap.String("component", "cron"), zap.String("job", "stale_reminder")),
		now:       time.Now,
	}
}

// ReminderMessage builds the reminder for a report pending for days days.
func ReminderMessage(r models.Report, days int) (title, message string) {
	title = "Report Awaiting Review"
	unit := "days"
	if days == 1 {
		unit = "day"
	}
	message = fmt.Sprintf("A %s %s report dated %s has been pending review for %d %s.",
		models.IntervalLabel(r.IntervalType), models.ReportTypeLabel(r.ReportType), r.ReportDate, days, unit)
	return title, message
}

// Run performs one reminder cycle and returns how many reminders were sent.
func (j *ReminderJob) Run(ctx context.Context) (int, error) {
	now := j.now()
	stale, err := j.reports.PendingBefore(ctx, now.AddDate(0, 0, -j.staleDays))
	if err != nil {
		return 0, fmt.Errorf("list stale reports: %w", err)
	}
	if len(stale) == 0 {
		j.log.Info("no stale pending reports")
		return 0, nil
	}

	vetters, err := j.roles.IDsByRoles(ctx, workflow.VetterRoles)
	if err != nil {
		return 0, fmt.Errorf("list vetters: %w", err)
	}

	var batch []models.Notification
	for _, r := range stale {
		days := int(now.Sub(r.CreatedAt).Hours() / 24)
		title, msg := ReminderMessage(r, days)
		for _, uid := range vetters {
			sent, err := j.inbox.SentOn(ctx, uid, models.NotificationReportReminder, r.ID, now)
			if err != nil {
				j.log.Warn("reminder de-duplication check failed", zap.Int64("report_id", r.ID), zap.Error(err))
				continue
			}
			if sent {
				continue
			}
			batch = append(batch, models.NewReportNotification(uid, models.NotificationReportReminder, title, msg, r.ID))
		}
	}

	if err := j.inbox.Insert(ctx, batch...); err != nil {
		return 0, fmt.Errorf("insert reminders: %w", err)
	}
	j.log.Info("stale report reminders sent",
		zap.Int("reports", len(stale)),
		zap.Int("notifications", len(batch)))
	return len(batch), nil
}

// Scheduler owns the cron runner.
type Scheduler struct {
	c   *cron.Cron
	log *zap.Logger
}

// Start schedules the reminder job on a standard 5-field cron spec.
func Start(spec string, job *ReminderJob, log *zap.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", spec, err)
	}

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := job.Run(ctx); err != nil {
			log.Error("stale report reminder failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule reminder: %w", err)
	}
	c.Start()

	log.Info("cron scheduler started", zap.String("reminder_schedule", spec))
	return &Scheduler{c: c, log: log}, nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.c.Stop().Done()
	s.log.Info("cron scheduler stopped")
}
