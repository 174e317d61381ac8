package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medcore/hms/internal/platform/apperr"
	"github.com/medcore/hms/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const userCols = `id, username, password_hash, role, staff_id, active, last_login_at, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.StaffID, &u.Active, &u.LastLoginAt,
		&u.CreatedAt, &u.UpdatedAt)
	return &u, err
}

func (r *repoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO users (id, username, password_hash, role, staff_id, active)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`,
		u.ID, u.Username, u.PasswordHash, u.Role, u.StaffID, u.Active).Scan(&u.CreatedAt, &u.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return ErrUsernameTaken
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := scanUser(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, apperr.FromRow(err, ErrNotFound, "get user")
	}
	return u, nil
}

func (r *repoPG) GetByUsername(ctx context.Context, username string) (*User, error) {
	u, err := scanUser(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE username = $1`, username))
	if err != nil {
		return nil, apperr.FromRow(err, ErrNotFound, "get user by username")
	}
	return u, nil
}

func (r *repoPG) Update(ctx context.Context, u *User) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE users SET role=$2, staff_id=$3, active=$4, updated_at=NOW() WHERE id = $1`,
		u.ID, u.Role, u.StaffID, u.Active)
	return db.ExpectRows(tag, err, ErrNotFound, "update user")
}

func (r *repoPG) SetPassword(ctx context.Context, id uuid.UUID, hash string) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id = $1`, id, hash)
	return db.ExpectRows(tag, err, ErrNotFound, "set password")
}

func (r *repoPG) TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE users SET last_login_at=$2 WHERE id = $1`, id, at)
	return db.ExpectRows(tag, err, ErrNotFound, "touch login")
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	return db.ExpectRows(tag, err, ErrNotFound, "delete user")
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	rows, err := conn.Query(ctx, `SELECT `+userCols+` FROM users ORDER BY username LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	var items []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, u)
	}
	return items, total, rows.Err()
}
