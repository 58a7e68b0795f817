package models

import (
	"strconv"
	"time"
)

// Notification types.
const (
	NotificationReportPending  = "report_pending"
	NotificationReportVetted   = "report_vetted"
	NotificationReportStatus   = "report_status"
	NotificationReportReminder = "report_reminder"
)

// Notification is one inbox entry for a user.
type Notification struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	Type       string     `json:"type"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	ActionURL  *string    `json:"action_url"`
	EntityType *string    `json:"entity_type"`
	EntityID   *int64     `json:"entity_id"`
	IsRead     bool       `json:"is_read"`
	ReadAt     *time.Time `json:"read_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NotificationFilter narrows an inbox listing. Empty Status means all.
type NotificationFilter struct {
	Status  string // "", "read" or "unread"
	Type    string
	Page    int
	PerPage int
}

// Normalize clamps paging to the same bounds as report listings.
func (f *NotificationFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > MaxPerPage {
		f.PerPage = DefaultPerPage
	}
	if f.Status != "read" && f.Status != "unread" {
		f.Status = ""
	}
}

// NotificationPage is one page of a user's inbox.
type NotificationPage struct {
	Data     []Notification `json:"data"`
	Total    int            `json:"total"`
	Unread   int            `json:"unread"`
	Page     int            `json:"page"`
	PerPage  int            `json:"per_page"`
	LastPage int            `json:"last_page"`
}

// NewReportNotification builds a notification that links to a report.
func NewReportNotification(userID int64, nType, title, message string, reportID int64) Notification {
	url := "/reports/" + strconv.FormatInt(reportID, 10)
	entity := "report"
	id := reportID
	return Notification{
		UserID:     userID,
		Type:       nType,
		Title:      title,
		Message:    message,
		ActionURL:  &url,
		EntityType: &entity,
		EntityID:   &id,
	}
}
