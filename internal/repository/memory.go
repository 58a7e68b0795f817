package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"redas-backend/internal/models"
	"redas-backend/internal/workflow"
)

// MemoryReports is an in-process ReportRepository. The status guard is
// applied under the same lock as the write, so it has the same
// compare-and-set semantics as the SQL implementation.
type MemoryReports struct {
	mu         sync.RWMutex
	reports    map[int64]models.Report
	activities []Activity
	nextID     int64

	// Now stamps created_at/updated_at. Defaults to time.Now.
	Now func() time.Time
}

func NewMemoryReports() *MemoryReports {
	return &MemoryReports{reports: map[int64]models.Report{}, Now: time.Now}
}

// Activities returns the audit entries recorded so far.
func (m *MemoryReports) Activities() []Activity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Activity(nil), m.activities...)
}

func (m *MemoryReports) Create(_ context.Context, r *models.Report) (*models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	now := m.Now()
	rep := *r
	rep.ID = m.nextID
	rep.Status = workflow.StatusPending
	rep.CreatedAt = now
	rep.UpdatedAt = now
	m.reports[rep.ID] = rep
	m.activities = append(m.activities, Activity{
		UserID: rep.UserID, Action: string(workflow.ActionSubmit), EntityType: "report", EntityID: formatID(rep.ID),
	})
	return &rep, nil
}

func (m *MemoryReports) Get(_ context.Context, id int64) (*models.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rep, ok := m.reports[id]
	if !ok || rep.DeletedAt != nil {
		return nil, workflow.ErrNotFound
	}
	return &rep, nil
}

// live returns the stored report if it exists, is not deleted and has the
// expected status. Callers must hold the write lock.
func (m *MemoryReports) live(id int64, expected workflow.Status) (models.Report, bool) {
	rep, ok := m.reports[id]
	if !ok || rep.DeletedAt != nil || rep.Status != expected {
		return models.Report{}, false
	}
	return rep, true
}

func (m *MemoryReports) UpdatePending(_ context.Context, r *models.Report, actorID int64) (*models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.live(r.ID, workflow.StatusPending)
	if !ok {
		return nil, ErrStale
	}
	cur.ReportType = r.ReportType
	cur.IntervalType = r.IntervalType
	cur.ReportDate = r.ReportDate
	cur.PassportCount = r.PassportCount
	cur.VisaCount = r.VisaCount
	cur.Remarks = r.Remarks
	cur.UpdatedAt = m.Now()
	m.reports[cur.ID] = cur
	m.activities = append(m.activities, Activity{
		UserID: actorID, Action: string(workflow.ActionEdit), EntityType: "report", EntityID: formatID(cur.ID),
	})
	return &cur, nil
}

func (m *MemoryReports) Transition(_ context.Context, t Transition) (*models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.live(t.ReportID, t.From)
	if !ok {
		return nil, ErrStale
	}
	actor, at := t.ActorID, t.At
	switch t.Gate {
	case workflow.GateApproval:
		cur.ApprovedBy, cur.ApprovedAt, cur.ApprovalComments = &actor, &at, t.Comments
	default:
		cur.VettedBy, cur.VettedAt, cur.VetComments = &actor, &at, t.Comments
	}
	if t.ClearsVetting() {
		cur.VettedBy, cur.VettedAt, cur.VetComments = nil, nil, nil
	}
	cur.Status = t.To
	cur.UpdatedAt = at
	m.reports[cur.ID] = cur
	m.activities = append(m.activities, stampActivity(t))
	return &cur, nil
}

func (m *MemoryReports) SoftDelete(_ context.Context, id int64, expected workflow.Status, actorID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.live(id, expected)
	if !ok {
		return ErrStale
	}
	cur.DeletedAt = &at
	cur.UpdatedAt = at
	m.reports[id] = cur
	m.activities = append(m.activities, Activity{
		UserID: actorID, Action: string(workflow.ActionDelete), EntityType: "report", EntityID: formatID(id),
	})
	return nil
}

func matchesReport(r models.Report, scope models.ReportScope, f models.ReportFilter) bool {
	if r.DeletedAt != nil {
		return false
	}
	if scope.Restricted && r.UserID != scope.OwnerID {
		return false
	}
	if f.Status != "" && string(r.Status) != f.Status {
		return false
	}
	if f.IntervalType != "" && r.IntervalType != f.IntervalType {
		return false
	}
	if f.ReportType != "" && r.ReportType != f.ReportType {
		return false
	}
	// YYYY-MM-DD compares correctly as a string.
	if f.StartDate != "" && r.ReportDate < f.StartDate {
		return false
	}
	if f.EndDate != "" && r.ReportDate > f.EndDate {
		return false
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		if r.Remarks == nil || !strings.Contains(strings.ToLower(*r.Remarks), strings.ToLower(s)) {
			return false
		}
	}
	return true
}

func (m *MemoryReports) filtered(scope models.ReportScope, f models.ReportFilter) []models.Report {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Report{}
	for _, r := range m.reports {
		if matchesReport(r, scope, f) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ReportDate != out[j].ReportDate {
			return out[i].ReportDate > out[j].ReportDate
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (m *MemoryReports) List(_ context.Context, scope models.ReportScope, f models.ReportFilter) ([]models.Report, int, error) {
	all := m.filtered(scope, f)
	total := len(all)
	start := f.Offset()
	if start > total {
		start = total
	}
	end := start + f.PerPage
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (m *MemoryReports) ListAll(_ context.Context, scope models.ReportScope, f models.ReportFilter) ([]models.Report, error) {
	all := m.filtered(scope, f)
	if len(all) > exportLimit {
		all = all[:exportLimit]
	}
	return all, nil
}

func (m *MemoryReports) Statistics(_ context.Context, scope models.ReportScope) (*models.ReportStatistics, error) {
	stats := models.NewReportStatistics()
	for _, r := range m.filtered(scope, models.ReportFilter{}) {
		stats.Add(&r)
	}
	return stats, nil
}

func (m *MemoryReports) PendingBefore(_ context.Context, before time.Time) ([]models.Report, error) {
	var out []models.Report
	for _, r := range m.filtered(models.ReportScope{}, models.ReportFilter{Status: string(workflow.StatusPending)}) {
		if r.CreatedAt.Before(before) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// MemoryUsers is an in-process UserRepository.
type MemoryUsers struct {
	mu     sync.RWMutex
	users  map[int64]models.User
	nextID int64
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{users: map[int64]models.User{}}
}

func (m *MemoryUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return nil, ErrDuplicateEmail
		}
	}
	m.nextID++
	now := time.Now()
	created := *u
	created.ID = m.nextID
	created.CreatedAt = now
	created.UpdatedAt = now
	m.users[created.ID] = created
	return &created, nil
}

func (m *MemoryUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (m *MemoryUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *MemoryUsers) FindByIDs(_ context.Context, ids []int64) (map[int64]models.UserSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int64]models.UserSummary, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out[id] = u.Summary()
		}
	}
	return out, nil
}

func hasRole(roles []workflow.Role, r workflow.Role) bool {
	for _, x := range roles {
		if x == r {
			return true
		}
	}
	return false
}

func (m *MemoryUsers) IDsByRoles(_ context.Context, roles []workflow.Role) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []int64
	for id, u := range m.users {
		if hasRole(roles, u.Role) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *MemoryUsers) List(_ context.Context, roles []workflow.Role) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := []models.User{}
	for _, u := range m.users {
		if len(roles) == 0 || hasRole(roles, u.Role) {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID > users[j].ID })
	return users, nil
}

func (m *MemoryUsers) UpdateRole(_ context.Context, id int64, role workflow.Role) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	u.Role = role
	u.UpdatedAt = time.Now()
	m.users[id] = u
	return &u, nil
}

// MemoryNotifications is an in-process NotificationRepository.
type MemoryNotifications struct {
	mu     sync.RWMutex
	items  []models.Notification
	nextID int64
}

func NewMemoryNotifications() *MemoryNotifications {
	return &MemoryNotifications{}
}

// All returns every stored notification in insertion order.
func (m *MemoryNotifications) All() []models.Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Notification(nil), m.items...)
}

func (m *MemoryNotifications) Insert(_ context.Context, ns ...models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, n := range ns {
		m.nextID++
		n.ID = m.nextID
		if n.CreatedAt.IsZero() {
			n.CreatedAt = now
		}
		m.items = append(m.items, n)
	}
	return nil
}

func (m *MemoryNotifications) SentOn(_ context.Context, userID int64, nType string, entityID int64, day time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d := day.Format(models.DateLayout)
	for _, n := range m.items {
		if n.UserID == userID && n.Type == nType && n.EntityID != nil && *n.EntityID == entityID &&
			n.CreatedAt.Format(models.DateLayout) == d {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryNotifications) List(_ context.Context, userID int64, f models.NotificationFilter) (*models.NotificationPage, error) {
	f.Normalize()
	m.mu.RLock()
	defer m.mu.RUnlock()

	page := &models.NotificationPage{Page: f.Page, PerPage: f.PerPage, Data: []models.Notification{}}
	var matched []models.Notification
	for i := len(m.items) - 1; i >= 0; i-- {
		n := m.items[i]
		if n.UserID != userID {
			continue
		}
		if !n.IsRead {
			page.Unread++
		}
		if (f.Status == "read" && !n.IsRead) || (f.Status == "unread" && n.IsRead) {
			continue
		}
		if f.Type != "" && n.Type != f.Type {
			continue
		}
		matched = append(matched, n)
	}
	page.Total = len(matched)
	page.LastPage = models.LastPageFor(page.Total, f.PerPage)
	start := (f.Page - 1) * f.PerPage
	if start < len(matched) {
		end := start + f.PerPage
		if end > len(matched) {
			end = len(matched)
		}
		page.Data = append(page.Data, matched[start:end]...)
	}
	return page, nil
}

func (m *MemoryNotifications) UnreadCount(_ context.Context, userID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, it := range m.items {
		if it.UserID == userID && !it.IsRead {
			n++
		}
	}
	return n, nil
}

func (m *MemoryNotifications) MarkRead(_ context.Context, userID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id && m.items[i].UserID == userID {
			if !m.items[i].IsRead {
				now := time.Now()
				m.items[i].IsRead = true
				m.items[i].ReadAt = &now
			}
			return nil
		}
	}
	return ErrNotificationNotFound
}

func (m *MemoryNotifications) MarkAllRead(_ context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	now := time.Now()
	for i := range m.items {
		if m.items[i].UserID == userID && !m.items[i].IsRead {
			m.items[i].IsRead = true
			m.items[i].ReadAt = &now
			n++
		}
	}
	return n, nil
}

func (m *MemoryNotifications) Delete(_ context.Context, userID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, it := range m.items {
		if it.ID == id && it.UserID == userID {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return ErrNotificationNotFound
}

func (m *MemoryNotifications) DeleteAll(_ context.Context, userID int64, onlyRead bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.items[:0]
	var n int64
	for _, it := range m.items {
		if it.UserID == userID && (!onlyRead || it.IsRead) {
			n++
			continue
		}
		kept = append(kept, it)
	}
	m.items = kept
	return n, nil
}
