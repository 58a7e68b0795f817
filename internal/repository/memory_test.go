package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redas-backend/internal/models"
	"redas-backend/internal/workflow"
)

func intPtr(v int) *int { return &v }

func newReport(owner int64, date, remarks string) *models.Report {
	r := &models.Report{
		UserID:        owner,
		ReportType:    models.ReportTypePassportReturns,
		IntervalType:  models.IntervalMonthly,
		ReportDate:    date,
		PassportCount: intPtr(3),
	}
	if remarks != "" {
		r.Remarks = &remarks
	}
	return r
}

func TestMemoryReports_TransitionIsGuarded(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryReports()
	rep, err := repo.Create(ctx, newReport(1, "2026-10-01", ""))
	require.NoError(t, err)

	at := time.Date(2026, 10, 2, 9, 0, 0, 0, time.UTC)
	vetted, err := repo.Transition(ctx, Transition{
		ReportID: rep.ID, Action: workflow.ActionVet, From: workflow.StatusPending,
		To: workflow.StatusVetted, Gate: workflow.GateVet, ActorID: 2, At: at,
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusVetted, vetted.Status)
	require.NotNil(t, vetted.VettedBy)
	assert.Equal(t, int64(2), *vetted.VettedBy)
	assert.Equal(t, at, *vetted.VettedAt)
	assert.Nil(t, vetted.ApprovedBy)

	_, err = repo.Transition(ctx, Transition{
		ReportID: rep.ID, Action: workflow.ActionVet, From: workflow.StatusPending,
		To: workflow.StatusVetted, Gate: workflow.GateVet, ActorID: 3, At: at,
	})
	assert.ErrorIs(t, err, ErrStale)

	acts := repo.Activities()
	require.Len(t, acts, 2)
	assert.Equal(t, "vet", acts[1].Action)
	assert.Equal(t, "vetted", acts[1].Details["to"])
}

func TestMemoryReports_ApprovalGateRejectionDropsVetFields(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryReports()
	rep, err := repo.Create(ctx, newReport(1, "2026-10-01", ""))
	require.NoError(t, err)

	at := time.Date(2026, 10, 2, 9, 0, 0, 0, time.UTC)
	ok := "ok"
	_, err = repo.Transition(ctx, Transition{
		ReportID: rep.ID, Action: workflow.ActionVet, From: workflow.StatusPending,
		To: workflow.StatusVetted, Gate: workflow.GateVet, ActorID: 2, Comments: &ok, At: at,
	})
	require.NoError(t, err)

	reason := "figures wrong"
	rejected, err := repo.Transition(ctx, Transition{
		ReportID: rep.ID, Action: workflow.ActionReject, From: workflow.StatusVetted,
		To: workflow.StatusRejected, Gate: workflow.GateApproval, ActorID: 3, Comments: &reason, At: at.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Nil(t, rejected.VettedBy)
	assert.Nil(t, rejected.VettedAt)
	assert.Nil(t, rejected.VetComments)
	require.NotNil(t, rejected.ApprovedBy)
	assert.Equal(t, int64(3), *rejected.ApprovedBy)
	assert.Equal(t, reason, *rejected.ApprovalComments)

	stored, err := repo.Get(ctx, rep.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.VettedBy)
}

func TestTransition_ClearsVetting(t *testing.T) {
	assert.True(t, Transition{To: workflow.StatusRejected, Gate: workflow.GateApproval}.ClearsVetting())
	assert.False(t, Transition{To: workflow.StatusRejected, Gate: workflow.GateVet}.ClearsVetting())
	assert.False(t, Transition{To: workflow.StatusApproved, Gate: workflow.GateApproval}.ClearsVetting())
}

func TestMemoryReports_ConcurrentTransitionsHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryReports()
	rep, err := repo.Create(ctx, newReport(1, "2026-10-01", ""))
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(actor int64) {
			defer wg.Done()
			_, err := repo.Transition(ctx, Transition{
				ReportID: rep.ID, Action: workflow.ActionReject, From: workflow.StatusPending,
				To: workflow.StatusRejected, Gate: workflow.GateVet, ActorID: actor, At: time.Now(),
			})
			results <- err
		}(int64(i + 10))
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ErrStale)
	}
	assert.Equal(t, 1, wins)
}

func TestMemoryReports_SoftDeleteHidesReport(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryReports()
	rep, err := repo.Create(ctx, newReport(1, "2026-10-01", ""))
	require.NoError(t, err)

	assert.ErrorIs(t, repo.SoftDelete(ctx, rep.ID, workflow.StatusVetted, 1, time.Now()), ErrStale)
	require.NoError(t, repo.SoftDelete(ctx, rep.ID, workflow.StatusPending, 1, time.Now()))

	_, err = repo.Get(ctx, rep.ID)
	assert.ErrorIs(t, err, workflow.ErrNotFound)

	list, total, err := repo.List(ctx, models.ReportScope{}, models.ReportFilter{Page: 1, PerPage: 15})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)
}

func TestMemoryReports_ListFiltersScopeAndOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryReports()
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	repo.Now = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Minute) }

	a, _ := repo.Create(ctx, newReport(1, "2026-09-01", "Lagos batch"))
	b, _ := repo.Create(ctx, newReport(1, "2026-10-01", ""))
	c, _ := repo.Create(ctx, newReport(2, "2026-10-01", "abuja"))

	all, total, err := repo.List(ctx, models.ReportScope{}, models.ReportFilter{Page: 1, PerPage: 15})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, []int64{c.ID, b.ID, a.ID}, ids(all))

	own, total, err := repo.List(ctx, models.ReportScope{OwnerID: 1, Restricted: true}, models.ReportFilter{Page: 1, PerPage: 15})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, []int64{b.ID, a.ID}, ids(own))

	found, _, err := repo.List(ctx, models.ReportScope{}, models.ReportFilter{Search: "LAGOS", Page: 1, PerPage: 15})
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID}, ids(found))

	ranged, _, err := repo.List(ctx, models.ReportScope{}, models.ReportFilter{StartDate: "2026-09-15", Page: 1, PerPage: 15})
	require.NoError(t, err)
	assert.Len(t, ranged, 2)

	page2, total, err := repo.List(ctx, models.ReportScope{}, models.ReportFilter{Page: 2, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, []int64{a.ID}, ids(page2))
}

func TestMemoryReports_StatisticsAndPendingBefore(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryReports()
	old := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	repo.Now = func() time.Time { return old }
	a, _ := repo.Create(ctx, newReport(1, "2026-09-30", ""))
	repo.Now = func() time.Time { return old.Add(72 * time.Hour) }
	b, _ := repo.Create(ctx, newReport(2, "2026-10-03", ""))

	_, err := repo.Transition(ctx, Transition{
		ReportID: b.ID, Action: workflow.ActionVet, From: workflow.StatusPending,
		To: workflow.StatusVetted, Gate: workflow.GateVet, ActorID: 9, At: old,
	})
	require.NoError(t, err)

	stats, err := repo.Statistics(ctx, models.ReportScope{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.Vetted)
	assert.Equal(t, 2, stats.ByInterval[models.IntervalMonthly])

	stale, err := repo.PendingBefore(ctx, old.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID}, ids(stale))
}

func TestMemoryUsers(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUsers()
	u, err := repo.Create(ctx, &models.User{Email: "a@mission.gov", Role: workflow.RoleUser})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &models.User{Email: "A@mission.gov"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	s, err := repo.Create(ctx, &models.User{Email: "s@hq.gov", Role: workflow.RoleSupervisor})
	require.NoError(t, err)

	ids, err := repo.IDsByRoles(ctx, workflow.VetterRoles)
	require.NoError(t, err)
	assert.Equal(t, []int64{s.ID}, ids)

	_, err = repo.UpdateRole(ctx, u.ID, workflow.RoleAdmin)
	require.NoError(t, err)
	ids, _ = repo.IDsByRoles(ctx, workflow.ApproverRoles)
	assert.Equal(t, []int64{u.ID}, ids)

	_, err = repo.GetByID(ctx, 99)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMemoryNotifications_Inbox(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryNotifications()
	require.NoError(t, repo.Insert(ctx,
		models.NewReportNotification(1, models.NotificationReportPending, "t1", "m1", 10),
		models.NewReportNotification(1, models.NotificationReportStatus, "t2", "m2", 11),
		models.NewReportNotification(2, models.NotificationReportPending, "t3", "m3", 10),
	))

	count, _ := repo.UnreadCount(ctx, 1)
	assert.Equal(t, 2, count)

	page, err := repo.List(ctx, 1, models.NotificationFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, "t2", page.Data[0].Title)

	require.NoError(t, repo.MarkRead(ctx, 1, page.Data[0].ID))
	assert.ErrorIs(t, repo.MarkRead(ctx, 2, page.Data[0].ID), ErrNotificationNotFound)

	unread, _ := repo.List(ctx, 1, models.NotificationFilter{Status: "unread"})
	assert.Equal(t, 1, unread.Total)
	assert.Equal(t, 1, unread.Unread)

	sent, _ := repo.SentOn(ctx, 2, models.NotificationReportPending, 10, time.Now())
	assert.True(t, sent)

	n, _ := repo.DeleteAll(ctx, 1, true)
	assert.Equal(t, int64(1), n)
	n, _ = repo.MarkAllRead(ctx, 1)
	assert.Equal(t, int64(1), n)
	count, _ = repo.UnreadCount(ctx, 2)
	assert.Equal(t, 1, count)
}

func ids(rs []models.Report) []int64 {
	out := make([]int64, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}
