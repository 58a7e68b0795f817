package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"redas-backend/internal/models"
	"redas-backend/internal/workflow"
)

const reportColumns = `
	id, user_id, report_type, interval_type, report_date::text,
	passport_count, visa_count, remarks, status,
	vetted_by, vetted_at, vet_comments,
	approved_by, approved_at, approval_comments,
	created_at, updated_at`

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresReports is the pgx-backed ReportRepository.
type PostgresReports struct {
	pool *pgxpool.Pool
}

func NewPostgresReports(pool *pgxpool.Pool) *PostgresReports {
	return &PostgresReports{pool: pool}
}

func scanReport(row pgx.Row) (*models.Report, error) {
	var r models.Report
	var status string
	err := row.Scan(
		&r.ID, &r.UserID, &r.ReportType, &r.IntervalType, &r.ReportDate,
		&r.PassportCount, &r.VisaCount, &r.Remarks, &status,
		&r.VettedBy, &r.VettedAt, &r.VetComments,
		&r.ApprovedBy, &r.ApprovedAt, &r.ApprovalComments,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Status = workflow.Status(status)
	return &r, nil
}

func collectReports(rows pgx.Rows) ([]models.Report, error) {
	defer rows.Close()
	reports := []models.Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

func insertActivity(ctx context.Context, q querier, a Activity) error {
	_, err := q.Exec(ctx, `
		INSERT INTO activity_log (user_id, action, entity_type, entity_id, details)
		VALUES ($1, $2, $3, $4, $5)
	`, a.UserID, a.Action, a.EntityType, a.EntityID, a.Details)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (p *PostgresReports) Create(ctx context.Context, r *models.Report) (*models.Report, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	created, err := scanReport(tx.QueryRow(ctx, `
		INSERT INTO reports (user_id, report_type, interval_type, report_date,
			passport_count, visa_count, remarks, status)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8)
		RETURNING `+reportColumns,
		r.UserID, r.ReportType, r.IntervalType, r.ReportDate,
		r.PassportCount, r.VisaCount, r.Remarks, string(workflow.StatusPending),
	))
	if err != nil {
		return nil, fmt.Errorf("insert report: %w", err)
	}

	if err := insertActivity(ctx, tx, Activity{
		UserID: r.UserID, Action: string(workflow.ActionSubmit), EntityType: "report",
		EntityID: formatID(created.ID),
		Details:  map[string]any{"report_type": created.ReportType, "interval_type": created.IntervalType},
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return created, nil
}

func (p *PostgresReports) Get(ctx context.Context, id int64) (*models.Report, error) {
	r, err := scanReport(p.pool.QueryRow(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE id = $1 AND deleted_at IS NULL`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, workflow.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	return r, nil
}

func (p *PostgresReports) UpdatePending(ctx context.Context, r *models.Report, actorID int64) (*models.Report, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	updated, err := scanReport(tx.QueryRow(ctx, `
		UPDATE reports SET
			report_type = $1, interval_type = $2, report_date = $3::date,
			passport_count = $4, visa_count = $5, remarks = $6, updated_at = NOW()
		WHERE id = $7 AND status = $8 AND deleted_at IS NULL
		RETURNING `+reportColumns,
		r.ReportType, r.IntervalType, r.ReportDate,
		r.PassportCount, r.VisaCount, r.Remarks,
		r.ID, string(workflow.StatusPending),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStale
	}
	if err != nil {
		return nil, fmt.Errorf("update report: %w", err)
	}

	if err := insertActivity(ctx, tx, Activity{
		UserID: actorID, Action: string(workflow.ActionEdit), EntityType: "report", EntityID: formatID(r.ID),
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return updated, nil
}

// Transition applies a status change only if the row still has t.From, and
// records the audit entry in the same transaction.
func (p *PostgresReports) Transition(ctx context.Context, t Transition) (*models.Report, error) {
	byCol, atCol, commentCol := "vetted_by", "vetted_at", "vet_comments"
	extra := ""
	if t.Gate == workflow.GateApproval {
		byCol, atCol, commentCol = "approved_by", "approved_at", "approval_comments"
	}
	if t.ClearsVetting() {
		extra = ", vetted_by = NULL, vetted_at = NULL, vet_comments = NULL"
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`
		UPDATE reports SET status = $1, %s = $2, %s = $3, %s = $4, updated_at = $3%s
		WHERE id = $5 AND status = $6 AND deleted_at IS NULL
		RETURNING %s`, byCol, atCol, commentCol, extra, reportColumns)

	updated, err := scanReport(tx.QueryRow(ctx, query,
		string(t.To), t.ActorID, t.At, t.Comments, t.ReportID, string(t.From)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStale
	}
	if err != nil {
		return nil, fmt.Errorf("transition report: %w", err)
	}

	if err := insertActivity(ctx, tx, stampActivity(t)); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return updated, nil
}

func (p *PostgresReports) SoftDelete(ctx context.Context, id int64, expected workflow.Status, actorID int64, at time.Time) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE reports SET deleted_at = $1, updated_at = $1
		WHERE id = $2 AND status = $3 AND deleted_at IS NULL
	`, at, id, string(expected))
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStale
	}

	if err := insertActivity(ctx, tx, Activity{
		UserID: actorID, Action: string(workflow.ActionDelete), EntityType: "report", EntityID: formatID(id),
		Details: map[string]any{"status": string(expected)},
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// buildReportWhere returns the WHERE clause and arguments for scope + filter.
func buildReportWhere(scope models.ReportScope, f models.ReportFilter) (string, []any, int) {
	where := "WHERE deleted_at IS NULL"
	args := []any{}
	argIdx := 1

	if scope.Restricted {
		where += fmt.Sprintf(" AND user_id = $%d", argIdx)
		args = append(args, scope.OwnerID)
		argIdx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, f.Status)
		argIdx++
	}
	if f.IntervalType != "" {
		where += fmt.Sprintf(" AND interval_type = $%d", argIdx)
		args = append(args, f.IntervalType)
		argIdx++
	}
	if f.ReportType != "" {
		where += fmt.Sprintf(" AND report_type = $%d", argIdx)
		args = append(args, f.ReportType)
		argIdx++
	}
	if f.StartDate != "" {
		where += fmt.Sprintf(" AND report_date >= $%d::date", argIdx)
		args = append(args, f.StartDate)
		argIdx++
	}
	if f.EndDate != "" {
		where += fmt.Sprintf(" AND report_date <= $%d::date", argIdx)
		args = append(args, f.EndDate)
		argIdx++
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		where += fmt.Sprintf(" AND remarks ILIKE $%d", argIdx)
		args = append(args, "%"+s+"%")
		argIdx++
	}
	return where, args, argIdx
}

const reportOrder = " ORDER BY report_date DESC, created_at DESC, id DESC"

func (p *PostgresReports) List(ctx context.Context, scope models.ReportScope, f models.ReportFilter) ([]models.Report, int, error) {
	where, args, argIdx := buildReportWhere(scope, f)

	var total int
	if err := p.pool.QueryRow(ctx, "SELECT COUNT(*) FROM reports "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reports: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM reports %s%s LIMIT $%d OFFSET $%d",
		reportColumns, where, reportOrder, argIdx, argIdx+1)
	args = append(args, f.PerPage, f.Offset())

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list reports: %w", err)
	}
	reports, err := collectReports(rows)
	if err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

func (p *PostgresReports) ListAll(ctx context.Context, scope models.ReportScope, f models.ReportFilter) ([]models.Report, error) {
	where, args, argIdx := buildReportWhere(scope, f)
	query := fmt.Sprintf("SELECT %s FROM reports %s%s LIMIT $%d", reportColumns, where, reportOrder, argIdx)
	args = append(args, exportLimit)

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reports for export: %w", err)
	}
	return collectReports(rows)
}

func (p *PostgresReports) Statistics(ctx context.Context, scope models.ReportScope) (*models.ReportStatistics, error) {
	where, args, _ := buildReportWhere(scope, models.ReportFilter{})
	stats := models.NewReportStatistics()

	err := p.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'vetted'),
			COUNT(*) FILTER (WHERE status = 'approved'),
			COUNT(*) FILTER (WHERE status = 'rejected')
		FROM reports `+where, args...,
	).Scan(&stats.Total, &stats.Pending, &stats.Vetted, &stats.Approved, &stats.Rejected)
	if err != nil {
		return nil, fmt.Errorf("count report statuses: %w", err)
	}

	for col, dst := range map[string]map[string]int{"interval_type": stats.ByInterval, "report_type": stats.ByType} {
		rows, err := p.pool.Query(ctx,
			fmt.Sprintf("SELECT %s, COUNT(*) FROM reports %s GROUP BY %s", col, where, col), args...)
		if err != nil {
			return nil, fmt.Errorf("group reports by %s: %w", col, err)
		}
		for rows.Next() {
			var key string
			var n int
			if err := rows.Scan(&key, &n); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan %s bucket: %w", col, err)
			}
			dst[key] = n
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

func (p *PostgresReports) PendingBefore(ctx context.Context, before time.Time) ([]models.Report, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+reportColumns+` FROM reports
		WHERE status = $1 AND deleted_at IS NULL AND created_at < $2
		ORDER BY created_at
	`, string(workflow.StatusPending), before)
	if err != nil {
		return nil, fmt.Errorf("list stale pending reports: %w", err)
	}
	return collectReports(rows)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
