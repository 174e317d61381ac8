package asset

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medcore/hms/internal/platform/apperr"
	"github.com/medcore/hms/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const assetCols = `id, tag, name, category, serial_number, location, status, department_id, assigned_at,
	purchased_at, last_serviced_at, notes, created_at, updated_at`

func scanAsset(row pgx.Row) (*Asset, error) {
	var a Asset
	err := row.Scan(&a.ID, &a.Tag, &a.Name, &a.Category, &a.SerialNumber, &a.Location, &a.Status,
		&a.DepartmentID, &a.AssignedAt, &a.PurchasedAt, &a.LastServicedAt, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, a *Asset) error {
	a.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO assets (id, tag, name, category, serial_number, location, status, department_id,
			assigned_at, purchased_at, last_serviced_at, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at`,
		a.ID, a.Tag, a.Name, a.Category, a.SerialNumber, a.Location, a.Status, a.DepartmentID,
		a.AssignedAt, a.PurchasedAt, a.LastServicedAt, a.Notes).Scan(&a.CreatedAt, &a.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateTag
	}
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Asset, error) {
	a, err := scanAsset(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+assetCols+` FROM assets WHERE id = $1`, id))
	if err != nil {
		return nil, apperr.FromRow(err, ErrNotFound, "get asset")
	}
	return a, nil
}

func (r *repoPG) GetByTag(ctx context.Context, tag string) (*Asset, error) {
	a, err := scanAsset(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+assetCols+` FROM assets WHERE tag = $1`, tag))
	if err != nil {
		return nil, apperr.FromRow(err, ErrNotFound, "get asset by tag")
	}
	return a, nil
}

func (r *repoPG) Update(ctx context.Context, a *Asset) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE assets SET tag=$2, name=$3, category=$4, serial_number=$5, location=$6, status=$7,
			department_id=$8, assigned_at=$9, purchased_at=$10, last_serviced_at=$11, notes=$12, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.Tag, a.Name, a.Category, a.SerialNumber, a.Location, a.Status, a.DepartmentID,
		a.AssignedAt, a.PurchasedAt, a.LastServicedAt, a.Notes)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateTag
	}
	return db.ExpectRows(tag, err, ErrNotFound, "update asset")
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM assets WHERE id = $1`, id)
	return db.ExpectRows(tag, err, ErrNotFound, "delete asset")
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Asset, int, error) {
	conn := db.Conn(ctx, r.pool)
	where := ` WHERE ($1 = '' OR status = $1) AND ($2 = '' OR category = $2)
		AND ($3::uuid IS NULL OR department_id = $3)`

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM assets`+where, f.Status, f.Category, f.DepartmentID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count assets: %w", err)
	}
	rows, err := conn.Query(ctx, `SELECT `+assetCols+` FROM assets`+where+` ORDER BY tag LIMIT $4 OFFSET $5`,
		f.Status, f.Category, f.DepartmentID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()
	var items []*Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan asset: %w", err)
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}
