package models

import (
	"net/url"
	"strconv"
	"time"

	"redas-backend/internal/workflow"
)

const (
	DefaultPerPage = 15
	MaxPerPage     = 100
)

// ReportFilter is the read-path query over the report collection.
// Empty fields (or "all") mean no filtering on that column.
type ReportFilter struct {
	Status       string
	IntervalType string
	ReportType   string
	StartDate    string
	EndDate      string
	Search       string
	Page         int
	PerPage      int
}

// ParseReportFilter reads a ReportFilter from URL query parameters.
func ParseReportFilter(q url.Values) ReportFilter {
	f := ReportFilter{
		Status:       q.Get("status"),
		IntervalType: q.Get("interval_type"),
		ReportType:   q.Get("report_type"),
		StartDate:    q.Get("start_date"),
		EndDate:      q.Get("end_date"),
		Search:       q.Get("search"),
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.PerPage, _ = strconv.Atoi(q.Get("per_page"))
	f.Normalize()
	return f
}

// Normalize clamps paging and drops "all" placeholders.
func (f *ReportFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > MaxPerPage {
		f.PerPage = DefaultPerPage
	}
	for _, p := range []*string{&f.Status, &f.IntervalType, &f.ReportType} {
		if *p == "all" {
			*p = ""
		}
	}
}

// Validate rejects unknown enum values and malformed dates.
func (f *ReportFilter) Validate() map[string]string {
	errors := map[string]string{}
	if f.Status != "" && !workflow.Status(f.Status).Valid() {
		errors["status"] = "Unknown status"
	}
	if f.IntervalType != "" {
		if _, ok := IntervalTypes[f.IntervalType]; !ok {
			errors["interval_type"] = "Unknown interval type"
		}
	}
	if f.ReportType != "" {
		if _, ok := ReportTypes[f.ReportType]; !ok {
			errors["report_type"] = "Unknown report type"
		}
	}
	if f.StartDate != "" {
		if _, err := time.Parse(DateLayout, f.StartDate); err != nil {
			errors["start_date"] = "Start date must be in YYYY-MM-DD format"
		}
	}
	if f.EndDate != "" {
		if _, err := time.Parse(DateLayout, f.EndDate); err != nil {
			errors["end_date"] = "End date must be in YYYY-MM-DD format"
		}
	}
	return errors
}

// Offset is the number of rows to skip for the current page.
func (f *ReportFilter) Offset() int {
	return (f.Page - 1) * f.PerPage
}

// ReportScope restricts a query to one owner when Restricted is set.
type ReportScope struct {
	OwnerID    int64
	Restricted bool
}

// ScopeFor returns the visibility scope of the actor.
func ScopeFor(actor workflow.Actor) ReportScope {
	id, restricted := workflow.VisibleOwner(actor)
	return ReportScope{OwnerID: id, Restricted: restricted}
}

// Key identifies the scope in cache keys.
func (s ReportScope) Key() string {
	if !s.Restricted {
		return "all"
	}
	return "owner:" + strconv.FormatInt(s.OwnerID, 10)
}

// ReportPage is one page of a report listing.
type ReportPage struct {
	Data     []ReportWithRelations `json:"data"`
	Total    int                   `json:"total"`
	Page     int                   `json:"page"`
	PerPage  int                   `json:"per_page"`
	LastPage int                   `json:"last_page"`
}

// LastPageFor computes the last page number for total rows (at least 1).
func LastPageFor(total, perPage int) int {
	if perPage <= 0 || total == 0 {
		return 1
	}
	return (total + perPage - 1) / perPage
}

// ReportStatistics is derived on read, never stored.
type ReportStatistics struct {
	Total      int            `json:"total"`
	Pending    int            `json:"pending"`
	Vetted     int            `json:"vetted"`
	Approved   int            `json:"approved"`
	Rejected   int            `json:"rejected"`
	ByInterval map[string]int `json:"by_interval"`
	ByType     map[string]int `json:"by_type"`
}

// NewReportStatistics returns zeroed statistics with every bucket present.
func NewReportStatistics() *ReportStatistics {
	s := &ReportStatistics{
		ByInterval: map[string]int{},
		ByType:     map[string]int{},
	}
	for k := range IntervalTypes {
		s.ByInterval[k] = 0
	}
	for k := range ReportTypes {
		s.ByType[k] = 0
	}
	return s
}

// Add counts one report into the statistics.
func (s *ReportStatistics) Add(r *Report) {
	s.Total++
	switch r.Status {
	case workflow.StatusPending:
		s.Pending++
	case workflow.StatusVetted:
		s.Vetted++
	case workflow.StatusApproved:
		s.Approved++
	case workflow.StatusRejected:
		s.Rejected++
	}
	s.ByInterval[r.IntervalType]++
	s.ByType[r.ReportType]++
}
