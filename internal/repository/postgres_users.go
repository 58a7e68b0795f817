package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"redas-backend/internal/models"
	"redas-backend/internal/workflow"
)

const userColumns = `id, email, password_hash, first_name, last_name, role, created_at, updated_at`

// PostgresUsers is the pgx-backed UserRepository.
type PostgresUsers struct {
	pool *pgxpool.Pool
}

func NewPostgresUsers(pool *pgxpool.Pool) *PostgresUsers {
	return &PostgresUsers{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var role string
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = workflow.Role(role)
	return &u, nil
}

func roleStrings(roles []workflow.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

// isDuplicateKeyError checks if a PostgreSQL error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (p *PostgresUsers) Create(ctx context.Context, u *models.User) (*models.User, error) {
	created, err := scanUser(p.pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, first_name, last_name, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		u.Email, u.PasswordHash, u.FirstName, u.LastName, string(u.Role)))
	if isDuplicateKeyError(err) {
		return nil, ErrDuplicateEmail
	}
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

func (p *PostgresUsers) get(ctx context.Context, where string, arg any) (*models.User, error) {
	u, err := scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (p *PostgresUsers) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return p.get(ctx, "id = $1", id)
}

func (p *PostgresUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return p.get(ctx, "LOWER(email) = LOWER($1)", email)
}

func (p *PostgresUsers) FindByIDs(ctx context.Context, ids []int64) (map[int64]models.UserSummary, error) {
	out := make(map[int64]models.UserSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := p.pool.Query(ctx,
		`SELECT id, email, first_name, last_name, role FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s models.UserSummary
		var role string
		if err := rows.Scan(&s.ID, &s.Email, &s.FirstName, &s.LastName, &role); err != nil {
			return nil, fmt.Errorf("scan user summary: %w", err)
		}
		s.Role = workflow.Role(role)
		out[s.ID] = s
	}
	return out, rows.Err()
}

func (p *PostgresUsers) IDsByRoles(ctx context.Context, roles []workflow.Role) ([]int64, error) {
	rows, err := p.pool.Query(ctx, `SELECT id FROM users WHERE role = ANY($1) ORDER BY id`, roleStrings(roles))
	if err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// List returns users ordered newest first. An empty roles slice means all roles.
func (p *PostgresUsers) List(ctx context.Context, roles []workflow.Role) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	args := []any{}
	if len(roles) > 0 {
		query += ` WHERE role = ANY($1)`
		args = append(args, roleStrings(roles))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (p *PostgresUsers) UpdateRole(ctx context.Context, id int64, role workflow.Role) (*models.User, error) {
	u, err := scanUser(p.pool.QueryRow(ctx, `
		UPDATE users SET role = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+userColumns, string(role), id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}
	return u, nil
}
