package models

import (
	"strings"
	"time"
	"unicode/utf8"

	"redas-backend/internal/workflow"
)

// ── Report Types & Intervals ─────────────────────────────────────

const (
	ReportTypePassportReturns = "passport_returns"
	ReportTypeVisaReturns     = "visa_returns"

	IntervalDaily     = "daily"
	IntervalMonthly   = "monthly"
	IntervalQuarterly = "quarterly"
)

// ReportTypes and IntervalTypes map each allowed value to its display label.
var ReportTypes = map[string]string{
	ReportTypePassportReturns: "Passport Returns",
	ReportTypeVisaReturns:     "Visa Returns",
}

var IntervalTypes = map[string]string{
	IntervalDaily:     "Daily",
	IntervalMonthly:   "Monthly",
	IntervalQuarterly: "Quarterly",
}

// DateLayout is the wire and storage format of report_date.
const DateLayout = "2006-01-02"

const maxTextLength = 2000

// ── Core Report ──────────────────────────────────────────────────

// Report is a periodic passport/visa return submitted by a mission user.
type Report struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id"`
	ReportType    string          `json:"report_type"`
	IntervalType  string          `json:"interval_type"`
	ReportDate    string          `json:"report_date"`
	PassportCount *int            `json:"passport_count"`
	VisaCount     *int            `json:"visa_count"`
	Remarks       *string         `json:"remarks"`
	Status        workflow.Status `json:"status"`

	VettedBy    *int64     `json:"vetted_by"`
	VettedAt    *time.Time `json:"vetted_at"`
	VetComments *string    `json:"vet_comments"`

	ApprovedBy       *int64     `json:"approved_by"`
	ApprovedAt       *time.Time `json:"approved_at"`
	ApprovalComments *string    `json:"approval_comments"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"-"`
}

// Subject returns the view of the report the workflow capability check needs.
func (r *Report) Subject() workflow.Subject {
	return workflow.Subject{OwnerID: r.UserID, Status: r.Status}
}

// HasQuantity reports whether at least one count is greater than zero.
func (r *Report) HasQuantity() bool {
	return positive(r.PassportCount) || positive(r.VisaCount)
}

func positive(n *int) bool {
	return n != nil && *n > 0
}

// ── Report with resolved relations ───────────────────────────────

// UserSummary is the public slice of a user embedded in report responses.
type UserSummary struct {
	ID        int64         `json:"id"`
	Email     string        `json:"email"`
	FirstName string        `json:"first_name"`
	LastName  string        `json:"last_name"`
	Role      workflow.Role `json:"role"`
}

// FullName joins first and last name.
func (u UserSummary) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// ReportWithRelations is the response shape for every report endpoint:
// the report, its display labels, and the submitter/vetter/approver resolved.
type ReportWithRelations struct {
	Report
	StatusLabel     string       `json:"status_label"`
	IntervalLabel   string       `json:"interval_label"`
	ReportTypeLabel string       `json:"report_type_label"`
	User            *UserSummary `json:"user"`
	Vetter          *UserSummary `json:"vetter"`
	Approver        *UserSummary `json:"approver"`
}

// ReportTypeLabel returns the display name of a report type.
func ReportTypeLabel(t string) string {
	if l, ok := ReportTypes[t]; ok {
		return l
	}
	return strings.ReplaceAll(t, "_", " ")
}

// IntervalLabel returns the display name of an interval type.
func IntervalLabel(t string) string {
	if l, ok := IntervalTypes[t]; ok {
		return l
	}
	return t
}

// WithRelations attaches labels and the given users (looked up by id).
func (r Report) WithRelations(users map[int64]UserSummary) ReportWithRelations {
	out := ReportWithRelations{
		Report:          r,
		StatusLabel:     r.Status.Label(),
		IntervalLabel:   IntervalLabel(r.IntervalType),
		ReportTypeLabel: ReportTypeLabel(r.ReportType),
	}
	if u, ok := users[r.UserID]; ok {
		out.User = &u
	}
	if r.VettedBy != nil {
		if u, ok := users[*r.VettedBy]; ok {
			out.Vetter = &u
		}
	}
	if r.ApprovedBy != nil {
		if u, ok := users[*r.ApprovedBy]; ok {
			out.Approver = &u
		}
	}
	return out
}

// RelatedUserIDs returns the distinct user ids referenced by the reports.
func RelatedUserIDs(reports ...Report) []int64 {
	seen := map[int64]bool{}
	var ids []int64
	add := func(id int64) {
		if id != 0 && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, r := range reports {
		add(r.UserID)
		if r.VettedBy != nil {
			add(*r.VettedBy)
		}
		if r.ApprovedBy != nil {
			add(*r.ApprovedBy)
		}
	}
	return ids
}

// ── Create / Update Requests ─────────────────────────────────────

// CreateReportRequest holds the fields for submitting a new report.
type CreateReportRequest struct {
	ReportType    string  `json:"report_type"`
	IntervalType  string  `json:"interval_type"`
	ReportDate    string  `json:"report_date"`
	PassportCount *int    `json:"passport_count"`
	VisaCount     *int    `json:"visa_count"`
	Remarks       *string `json:"remarks"`
}

// Validate checks enums, the report date (not after today), count ranges and
// that at least one count is greater than zero.
func (r *CreateReportRequest) Validate(today time.Time) map[string]string {
	errors := map[string]string{}

	if _, ok := ReportTypes[r.ReportType]; !ok {
		errors["report_type"] = "Report type must be 'passport_returns' or 'visa_returns'"
	}
	if _, ok := IntervalTypes[r.IntervalType]; !ok {
		errors["interval_type"] = "Interval type must be 'daily', 'monthly', or 'quarterly'"
	}
	if msg := validateReportDate(r.ReportDate, today); msg != "" {
		errors["report_date"] = msg
	}
	validateCounts(errors, r.PassportCount, r.VisaCount)
	if tooLong(r.Remarks) {
		errors["remarks"] = "Remarks may not exceed 2000 characters"
	}

	if !positive(r.PassportCount) && !positive(r.VisaCount) {
		for field, msg := range NoQuantityErrors() {
			if _, taken := errors[field]; !taken {
				errors[field] = msg
			}
		}
	}

	return errors
}

// ToReport builds a new pending report owned by userID.
func (r *CreateReportRequest) ToReport(userID int64) *Report {
	return &Report{
		UserID:        userID,
		ReportType:    r.ReportType,
		IntervalType:  r.IntervalType,
		ReportDate:    r.ReportDate,
		PassportCount: r.PassportCount,
		VisaCount:     r.VisaCount,
		Remarks:       r.Remarks,
		Status:        workflow.StatusPending,
	}
}

// UpdateReportRequest holds the fields an owner may change while pending.
// Absent fields keep their current value. The counts and remarks may be
// cleared with an explicit null; the other fields treat null as absent.
type UpdateReportRequest struct {
	ReportType    *string          `json:"report_type,omitempty"`
	IntervalType  *string          `json:"interval_type,omitempty"`
	ReportDate    *string          `json:"report_date,omitempty"`
	PassportCount Optional[int]    `json:"passport_count,omitzero"`
	VisaCount     Optional[int]    `json:"visa_count,omitzero"`
	Remarks       Optional[string] `json:"remarks,omitzero"`
}

// Validate checks only the fields that are present.
func (r *UpdateReportRequest) Validate(today time.Time) map[string]string {
	errors := map[string]string{}

	if r.ReportType != nil {
		if _, ok := ReportTypes[*r.ReportType]; !ok {
			errors["report_type"] = "Report type must be 'passport_returns' or 'visa_returns'"
		}
	}
	if r.IntervalType != nil {
		if _, ok := IntervalTypes[*r.IntervalType]; !ok {
			errors["interval_type"] = "Interval type must be 'daily', 'monthly', or 'quarterly'"
		}
	}
	if r.ReportDate != nil {
		if msg := validateReportDate(*r.ReportDate, today); msg != "" {
			errors["report_date"] = msg
		}
	}
	validateCounts(errors, r.PassportCount.Value, r.VisaCount.Value)
	if tooLong(r.Remarks.Value) {
		errors["remarks"] = "Remarks may not exceed 2000 characters"
	}

	return errors
}

// Apply copies the present fields onto rep.
func (r *UpdateReportRequest) Apply(rep *Report) {
	if r.ReportType != nil {
		rep.ReportType = *r.ReportType
	}
	if r.IntervalType != nil {
		rep.IntervalType = *r.IntervalType
	}
	if r.ReportDate != nil {
		rep.ReportDate = *r.ReportDate
	}
	if r.PassportCount.Set {
		rep.PassportCount = r.PassportCount.Value
	}
	if r.VisaCount.Set {
		rep.VisaCount = r.VisaCount.Value
	}
	if r.Remarks.Set {
		rep.Remarks = r.Remarks.Value
	}
}

// ReviewRequest is the body of vet, approve and reject calls.
type ReviewRequest struct {
	Comments *string `json:"comments"`
}

// Validate checks the comment length; required is set for rejections,
// where a non-blank comment is mandatory.
func (r *ReviewRequest) Validate(required bool) map[string]string {
	errors := map[string]string{}
	if required && (r.Comments == nil || strings.TrimSpace(*r.Comments) == "") {
		errors["comments"] = "Comments are required when rejecting a report"
	}
	if tooLong(r.Comments) {
		errors["comments"] = "Comments may not exceed 2000 characters"
	}
	return errors
}

// Normalized returns the comment with surrounding space removed, or nil if blank.
func (r *ReviewRequest) Normalized() *string {
	if r.Comments == nil {
		return nil
	}
	c := strings.TrimSpace(*r.Comments)
	if c == "" {
		return nil
	}
	return &c
}

func validateReportDate(s string, today time.Time) string {
	if s == "" {
		return "Report date is required"
	}
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return "Report date must be in YYYY-MM-DD format"
	}
	y, m, day := today.Date()
	if d.After(time.Date(y, m, day, 0, 0, 0, 0, time.UTC)) {
		return "Report date cannot be in the future"
	}
	return ""
}

// NoQuantityErrors is the field map returned when no count is above zero.
func NoQuantityErrors() map[string]string {
	return map[string]string{
		"passport_count": "At least one count greater than zero is required",
		"visa_count":     "At least one count greater than zero is required",
	}
}

// tooLong counts characters, not bytes.
func tooLong(s *string) bool {
	return s != nil && utf8.RuneCountInString(*s) > maxTextLength
}

func validateCounts(errors map[string]string, passport, visa *int) {
	if passport != nil && *passport < 0 {
		errors["passport_count"] = "Passport count must be zero or more"
	}
	if visa != nil && *visa < 0 {
		errors["visa_count"] = "Visa count must be zero or more"
	}
}
