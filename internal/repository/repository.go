// Package repository persists users, reports and notifications.
// Postgres implementations back the server; the Memory ones back tests
// and local runs without a database.
package repository

import (
	"context"
	"errors"
	"time"

	"redas-backend/internal/models"
	"redas-backend/internal/workflow"
)

var (
	// ErrStale is returned by guarded writes when the row no longer has the
	// expected status. Callers re-read the report to report the conflict.
	ErrStale = errors.New("report status changed concurrently")

	ErrUserNotFound         = errors.New("user not found")
	ErrDuplicateEmail       = errors.New("an account with this email already exists")
	ErrNotificationNotFound = errors.New("notification not found")
)

// exportLimit caps ListAll so an export cannot pull an unbounded result set.
const exportLimit = 10000

// Transition is one guarded status change. The stamp fields written are
// picked by Gate: GateVet writes vetted_*, GateApproval writes approved_*.
type Transition struct {
	ReportID int64
	Action   workflow.Action
	From     workflow.Status
	To       workflow.Status
	Gate     workflow.Gate
	ActorID  int64
	Comments *string
	At       time.Time
}

// ClearsVetting reports whether the write must drop the vet fields: a
// rejected report carries the fields of the gate that rejected it and no
// other. The earlier vetting stays in the activity log.
func (t Transition) ClearsVetting() bool {
	return t.To == workflow.StatusRejected && t.Gate == workflow.GateApproval
}

// Activity is one audit entry.
type Activity struct {
	UserID     int64
	Action     string
	EntityType string
	EntityID   string
	Details    map[string]any
}

// ReportRepository stores reports. Every write that depends on the current
// status is conditional on it and returns ErrStale when the guard misses.
type ReportRepository interface {
	Create(ctx context.Context, r *models.Report) (*models.Report, error)
	Get(ctx context.Context, id int64) (*models.Report, error)
	UpdatePending(ctx context.Context, r *models.Report, actorID int64) (*models.Report, error)
	Transition(ctx context.Context, t Transition) (*models.Report, error)
	SoftDelete(ctx context.Context, id int64, expected workflow.Status, actorID int64, at time.Time) error
	List(ctx context.Context, scope models.ReportScope, f models.ReportFilter) ([]models.Report, int, error)
	ListAll(ctx context.Context, scope models.ReportScope, f models.ReportFilter) ([]models.Report, error)
	Statistics(ctx context.Context, scope models.ReportScope) (*models.ReportStatistics, error)
	PendingBefore(ctx context.Context, before time.Time) ([]models.Report, error)
}

// UserRepository stores accounts.
type UserRepository interface {
	Create(ctx context.Context, u *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []int64) (map[int64]models.UserSummary, error)
	IDsByRoles(ctx context.Context, roles []workflow.Role) ([]int64, error)
	List(ctx context.Context, roles []workflow.Role) ([]models.User, error)
	UpdateRole(ctx context.Context, id int64, role workflow.Role) (*models.User, error)
}

// NotificationRepository stores per-user inbox entries.
type NotificationRepository interface {
	Insert(ctx context.Context, ns ...models.Notification) error
	SentOn(ctx context.Context, userID int64, nType string, entityID int64, day time.Time) (bool, error)
	List(ctx context.Context, userID int64, f models.NotificationFilter) (*models.NotificationPage, error)
	UnreadCount(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, userID, id int64) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	Delete(ctx context.Context, userID, id int64) error
	DeleteAll(ctx context.Context, userID int64, onlyRead bool) (int64, error)
}

// stampActivity is the audit entry written alongside a transition.
func stampActivity(t Transition) Activity {
	details := map[string]any{
		"from": string(t.From),
		"to":   string(t.To),
	}
	if t.Comments != nil {
		details["comments"] = *t.Comments
	}
	return Activity{
		UserID:     t.ActorID,
		Action:     string(t.Action),
		EntityType: "report",
		EntityID:   formatID(t.ReportID),
		Details:    details,
	}
}

var (
	_ ReportRepository       = (*PostgresReports)(nil)
	_ ReportRepository       = (*MemoryReports)(nil)
	_ UserRepository         = (*PostgresUsers)(nil)
	_ UserRepository         = (*MemoryUsers)(nil)
	_ NotificationRepository = (*PostgresNotifications)(nil)
	_ NotificationRepository = (*MemoryNotifications)(nil)
)
