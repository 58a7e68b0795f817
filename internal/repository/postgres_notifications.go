package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"redas-backend/internal/models"
)

const notificationColumns = `id, user_id, type, title, message, action_url, entity_type, entity_id, is_read, read_at, created_at`

// PostgresNotifications is the pgx-backed NotificationRepository.
type PostgresNotifications struct {
	pool *pgxpool.Pool
}

func NewPostgresNotifications(pool *pgxpool.Pool) *PostgresNotifications {
	return &PostgresNotifications{pool: pool}
}

// Insert writes all notifications in one batch.
func (p *PostgresNotifications) Insert(ctx context.Context, ns ...models.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, n := range ns {
		batch.Queue(`
			INSERT INTO notifications (user_id, type, title, message, action_url, entity_type, entity_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, n.UserID, n.Type, n.Title, n.Message, n.ActionURL, n.EntityType, n.EntityID)
	}
	if err := p.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert notifications: %w", err)
	}
	return nil
}

// SentOn reports whether a notification of nType for the entity already
// reached the user on the given day.
func (p *PostgresNotifications) SentOn(ctx context.Context, userID int64, nType string, entityID int64, day time.Time) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM notifications
			WHERE user_id   = $1
			  AND type      = $2
			  AND entity_id = $3
			  AND created_at::date = $4::date
		)
	`, userID, nType, entityID, day.Format(models.DateLayout)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check notification: %w", err)
	}
	return exists, nil
}

func (p *PostgresNotifications) List(ctx context.Context, userID int64, f models.NotificationFilter) (*models.NotificationPage, error) {
	f.Normalize()

	where := "WHERE user_id = $1"
	args := []any{userID}
	argIdx := 2
	switch f.Status {
	case "read":
		where += " AND is_read = TRUE"
	case "unread":
		where += " AND is_read = FALSE"
	}
	if f.Type != "" {
		where += fmt.Sprintf(" AND type = $%d", argIdx)
		args = append(args, f.Type)
		argIdx++
	}

	page := &models.NotificationPage{Page: f.Page, PerPage: f.PerPage, Data: []models.Notification{}}
	if err := p.pool.QueryRow(ctx, "SELECT COUNT(*) FROM notifications "+where, args...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("count notifications: %w", err)
	}
	unread, err := p.UnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}
	page.Unread = unread
	page.LastPage = models.LastPageFor(page.Total, f.PerPage)

	query := fmt.Sprintf("SELECT %s FROM notifications %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		notificationColumns, where, argIdx, argIdx+1)
	args = append(args, f.PerPage, (f.Page-1)*f.PerPage)

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message,
			&n.ActionURL, &n.EntityType, &n.EntityID, &n.IsRead, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		page.Data = append(page.Data, n)
	}
	return page, rows.Err()
}

func (p *PostgresNotifications) UnreadCount(ctx context.Context, userID int64) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

func (p *PostgresNotifications) MarkRead(ctx context.Context, userID, id int64) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE notifications SET is_read = TRUE, read_at = COALESCE(read_at, NOW())
		WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (p *PostgresNotifications) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	tag, err := p.pool.Exec(ctx, `
		UPDATE notifications SET is_read = TRUE, read_at = NOW()
		WHERE user_id = $1 AND is_read = FALSE
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *PostgresNotifications) Delete(ctx context.Context, userID, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (p *PostgresNotifications) DeleteAll(ctx context.Context, userID int64, onlyRead bool) (int64, error) {
	query := `DELETE FROM notifications WHERE user_id = $1`
	if onlyRead {
		query += ` AND is_read = TRUE`
	}
	tag, err := p.pool.Exec(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("delete notifications: %w", err)
	}
	return tag.RowsAffected(), nil
}
