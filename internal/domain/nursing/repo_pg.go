package nursing

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

// =========== Nurse Repository ===========

type nurseRepoPG struct{ pool *pgxpool.Pool }

func NewNurseRepoPG(pool *pgxpool.Pool) NurseRepository { return &nurseRepoPG{pool: pool} }

const nurseCols = `id, first_name, last_name, department_id, license_number, phone, active, created_at, updated_at`

func scanNurse(row pgx.Row) (*Nurse, error) {
	var n Nurse
	err := row.Scan(&n.ID, &n.FirstName, &n.LastName, &n.DepartmentID, &n.LicenseNumber, &n.Phone,
		&n.Active, &n.CreatedAt, &n.UpdatedAt)
	return &n, err
}

func (r *nurseRepoPG) Create(ctx context.Context, n *Nurse) error {
	n.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO nurses (id, first_name, last_name, department_id, license_number, phone, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		n.ID, n.FirstName, n.LastName, n.DepartmentID, n.LicenseNumber, n.Phone, n.Active).
		Scan(&n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert nurse: %w", err)
	}
	return nil
}

func (r *nurseRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Nurse, error) {
	n, err := scanNurse(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+nurseCols+` FROM nurses WHERE id = $1`, id))
	if err != nil {
		return nil, apperr.FromRow(err, ErrNurseNotFound, "get nurse")
	}
	return n, nil
}

func (r *nurseRepoPG) Update(ctx context.Context, n *Nurse) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE nurses SET first_name=$2, last_name=$3, department_id=$4, license_number=$5, phone=$6,
			active=$7, updated_at=NOW()
		WHERE id = $1`,
		n.ID, n.FirstName, n.LastName, n.DepartmentID, n.LicenseNumber, n.Phone, n.Active)
	return db.ExpectRows(tag, err, ErrNurseNotFound, "update nurse")
}

func (r *nurseRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM nurses WHERE id = $1`, id)
	return db.ExpectRows(tag, err, ErrNurseNotFound, "delete nurse")
}

func (r *nurseRepoPG) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*Nurse, int, error) {
	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM nurses WHERE (NOT $1 OR active)`, activeOnly).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count nurses: %w", err)
	}
	rows, err := conn.Query(ctx, `SELECT `+nurseCols+` FROM nurses WHERE (NOT $1 OR active)
		ORDER BY last_name, first_name LIMIT $2 OFFSET $3`, activeOnly, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list nurses: %w", err)
	}
	items, err := collectNurses(rows)
	return items, total, err
}

func (r *nurseRepoPG) ListActive(ctx context.Context) ([]*Nurse, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+nurseCols+` FROM nurses WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list active nurses: %w", err)
	}
	return collectNurses(rows)
}

func collectNurses(rows pgx.Rows) ([]*Nurse, error) {
	defer rows.Close()
	var items []*Nurse
	for rows.Next() {
		n, err := scanNurse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan nurse: %w", err)
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

// =========== Shift Repository ===========

type shiftRepoPG struct{ pool *pgxpool.Pool }

func NewShiftRepoPG(pool *pgxpool.Pool) ShiftRepository { return &shiftRepoPG{pool: pool} }

const shiftCols = `id, nurse_id, department_id, shift_date, shift_type, starts_at, ends_at, notes, created_at`

func scanShift(row pgx.Row) (*Shift, error) {
	var s Shift
	err := row.Scan(&s.ID, &s.NurseID, &s.DepartmentID, &s.ShiftDate, &s.ShiftType, &s.StartsAt, &s.EndsAt,
		&s.Notes, &s.CreatedAt)
	return &s, err
}

const insertShift = `
	INSERT INTO shifts (id, nurse_id, department_id, shift_date, shift_type, starts_at, ends_at, notes)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	RETURNING created_at`

func (r *shiftRepoPG) Create(ctx context.Context, s *Shift) error {
	s.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, insertShift,
		s.ID, s.NurseID, s.DepartmentID, s.ShiftDate, s.ShiftType, s.StartsAt, s.EndsAt, s.Notes).Scan(&s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert shift: %w", err)
	}
	return nil
}

func (r *shiftRepoPG) CreateBatch(ctx context.Context, shifts []*Shift) error {
	batch := &pgx.Batch{}
	for _, s := range shifts {
		s.ID = uuid.New()
		batch.Queue(insertShift, s.ID, s.NurseID, s.DepartmentID, s.ShiftDate, s.ShiftType, s.StartsAt, s.EndsAt, s.Notes)
	}
	br := db.SendBatch(ctx, r.pool, batch)
	defer br.Close()
	for _, s := range shifts {
		if err := br.QueryRow().Scan(&s.CreatedAt); err != nil {
			return fmt.Errorf("insert shift: %w", err)
		}
	}
	return nil
}

func (r *shiftRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Shift, error) {
	s, err := scanShift(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+shiftCols+` FROM shifts WHERE id = $1`, id))
	if err != nil {
		return nil, apperr.FromRow(err, ErrShiftNotFound, "get shift")
	}
	return s, nil
}

func (r *shiftRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM shifts WHERE id = $1`, id)
	return db.ExpectRows(tag, err, ErrShiftNotFound, "delete shift")
}

func (r *shiftRepoPG) List(ctx context.Context, f ShiftFilter, limit, offset int) ([]*Shift, int, error) {
	conn := db.Conn(ctx, r.pool)
	where := ` WHERE ($1::uuid IS NULL OR nurse_id = $1)
		AND ($2::timestamptz IS NULL OR starts_at >= $2)
		AND ($3::timestamptz IS NULL OR starts_at <= $3)`

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM shifts`+where, f.NurseID, f.From, f.To).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count shifts: %w", err)
	}
	rows, err := conn.Query(ctx, `SELECT `+shiftCols+` FROM shifts`+where+` ORDER BY starts_at, nurse_id
		LIMIT $4 OFFSET $5`, f.NurseID, f.From, f.To, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list shifts: %w", err)
	}
	items, err := collectShifts(rows)
	return items, total, err
}

func (r *shiftRepoPG) Overlapping(ctx context.Context, nurseID uuid.UUID, start, end time.Time) (bool, error) {
	var exists bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM shifts WHERE nurse_id = $1 AND starts_at < $3 AND ends_at > $2)`,
		nurseID, start, end).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check shift overlap: %w", err)
	}
	return exists, nil
}

func (r *shiftRepoPG) Between(ctx context.Context, from, to time.Time) ([]*Shift, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+shiftCols+` FROM shifts
		WHERE starts_at >= $1 AND starts_at < $2 ORDER BY starts_at`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list shifts between: %w", err)
	}
	return collectShifts(rows)
}

func collectShifts(rows pgx.Rows) ([]*Shift, error) {
	defer rows.Close()
	var items []*Shift
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shift: %w", err)
		}
		items = append(items, s)
	}
	return items, rows.Err()
}
