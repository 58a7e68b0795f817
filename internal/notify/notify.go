// Package notify turns report workflow events into inbox notifications.
// Delivery is fire-and-forget: a failed delivery is logged and never
// reaches the caller that triggered the event.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"redas-backend/internal/models"
	"redas-backend/internal/workflow"
)

// Event names a workflow step that produces notifications.
type Event string

const (
	EventSubmitted Event = "submitted"
	EventVetted    Event = "vetted"
	EventApproved  Event = "approved"
	EventRejected  Event = "rejected"
)

// ReportEvent is emitted after a transition has been committed.
type ReportEvent struct {
	Event  Event
	Report models.Report
	Actor  models.UserSummary
}

// Notifier accepts workflow events. Implementations must not block the
// caller on delivery.
type Notifier interface {
	Notify(ctx context.Context, ev ReportEvent)
}

// RoleDirectory resolves recipients by role.
type RoleDirectory interface {
	IDsByRoles(ctx context.Context, roles []workflow.Role) ([]int64, error)
}

// Inbox stores notifications.
type Inbox interface {
	Insert(ctx context.Context, ns ...models.Notification) error
}

var titles = map[Event]string{
	EventSubmitted: "New Report Submitted",
	EventVetted:    "Report Vetted",
	EventApproved:  "Report Approved",
	EventRejected:  "Report Rejected",
}

// Build returns the notifications for ev. vetters receive submissions,
// approvers receive vetted reports, and the owner hears about every
// review outcome.
func Build(ev ReportEvent, vetters, approvers []int64) []models.Notification {
	label := models.ReportTypeLabel(ev.Report.ReportType)
	by := ev.Actor.FullName()
	id := ev.Report.ID
	title := titles[ev.Event]

	var out []models.Notification
	switch ev.Event {
	case EventSubmitted:
		msg := fmt.Sprintf("A new %s report has been submitted by %s.", label, by)
		for _, uid := range vetters {
			out = append(out, models.NewReportNotification(uid, models.NotificationReportPending, title, msg, id))
		}
	case EventVetted:
		msg := fmt.Sprintf("A %s report has been vetted and is ready for approval.", label)
		for _, uid := range approvers {
			out = append(out, models.NewReportNotification(uid, models.NotificationReportVetted, "Report Ready for Approval", msg, id))
		}
		fallthrough
	case EventApproved, EventRejected:
		msg := fmt.Sprintf("Your %s report has been %s by %s.", label, ev.Event, by)
		out = append(out, models.NewReportNotification(ev.Report.UserID, models.NotificationReportStatus, title, msg, id))
	}
	return out
}

// Dispatcher delivers events asynchronously to the inbox.
type Dispatcher struct {
	roles   RoleDirectory
	inbox   Inbox
	log     *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDispatcher(roles RoleDirectory, inbox Inbox, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		roles:   roles,
		inbox:   inbox,
		log:     log.With(zap.String("component", "notify")),
		timeout: 10 * time.Second,
	}
}

// Notify schedules delivery and returns immediately. The delivery context
// is detached from ctx so a finished request does not cancel it.
func (d *Dispatcher) Notify(ctx context.Context, ev ReportEvent) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()
		if err := d.Deliver(dctx, ev); err != nil {
			d.log.Error("notification delivery failed",
				zap.String("event", string(ev.Event)),
				zap.Int64("report_id", ev.Report.ID),
				zap.Error(err))
		}
	}()
}

// Deliver resolves recipients and writes the notifications synchronously.
func (d *Dispatcher) Deliver(ctx context.Context, ev ReportEvent) error {
	var vetters, approvers []int64
	var err error
	switch ev.Event {
	case EventSubmitted:
		vetters, err = d.roles.IDsByRoles(ctx, workflow.VetterRoles)
	case EventVetted:
		approvers, err = d.roles.IDsByRoles(ctx, workflow.ApproverRoles)
	}
	if err != nil {
		return fmt.Errorf("resolve recipients: %w", err)
	}

	ns := Build(ev, vetters, approvers)
	if len(ns) == 0 {
		return nil
	}
	if err := d.inbox.Insert(ctx, ns...); err != nil {
		return fmt.Errorf("insert notifications: %w", err)
	}
	d.log.Debug("notifications delivered",
		zap.String("event", string(ev.Event)),
		zap.Int64("report_id", ev.Report.ID),
		zap.Int("count", len(ns)))
	return nil
}

// Wait blocks until in-flight deliveries finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
