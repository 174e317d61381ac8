package staff

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medcore/hms/internal/platform/apperr"
	"github.com/medcore/hms/internal/platform/db"
)

// =========== Department Repository ===========

type departmentRepoPG struct{ pool *pgxpool.Pool }

func NewDepartmentRepoPG(pool *pgxpool.Pool) DepartmentRepository {
	return &departmentRepoPG{pool: pool}
}

const deptCols = `id, name, description, floor, created_at, updated_at`

func scanDepartment(row pgx.Row) (*Department, error) {
	var d Department
	err := row.Scan(&d.ID, &d.Name, &d.Description, &d.Floor, &d.CreatedAt, &d.UpdatedAt)
	return &d, err
}

func (r *departmentRepoPG) Create(ctx context.Context, d *Department) error {
	d.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO departments (id, name, description, floor) VALUES ($1,$2,$3,$4)
		RETURNING created_at, updated_at`,
		d.ID, d.Name, d.Description, d.Floor).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert department: %w", err)
	}
	return nil
}

func (r *departmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Department, error) {
	d, err := scanDepartment(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+deptCols+` FROM departments WHERE id = $1`, id))
	if err != nil {
		return nil, apperr.FromRow(err, ErrDepartmentNotFound, "get department")
	}
	return d, nil
}

func (r *departmentRepoPG) Update(ctx context.Context, d *Department) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE departments SET name=$2, description=$3, floor=$4, updated_at=NOW() WHERE id = $1`,
		d.ID, d.Name, d.Description, d.Floor)
	return db.ExpectRows(tag, err, ErrDepartmentNotFound, "update department")
}

func (r *departmentRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM departments WHERE id = $1`, id)
	return db.ExpectRows(tag, err, ErrDepartmentNotFound, "delete department")
}

func (r *departmentRepoPG) List(ctx context.Context, limit, offset int) ([]*Department, int, error) {
	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM departments`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count departments: %w", err)
	}
	rows, err := conn.Query(ctx, `SELECT `+deptCols+` FROM departments ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list departments: %w", err)
	}
	defer rows.Close()
	var items []*Department
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan department: %w", err)
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

// =========== Doctor Repository ===========

type doctorRepoPG struct{ pool *pgxpool.Pool }

func NewDoctorRepoPG(pool *pgxpool.Pool) DoctorRepository { return &doctorRepoPG{pool: pool} }

const doctorCols = `id, first_name, last_name, specialization, department_id, phone, email, active,
	created_at, updated_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.FirstName, &d.LastName, &d.Specialization, &d.DepartmentID,
		&d.Phone, &d.Email, &d.Active, &d.CreatedAt, &d.UpdatedAt)
	return &d, err
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO doctors (id, first_name, last_name, specialization, department_id, phone, email, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		d.ID, d.FirstName, d.LastName, d.Specialization, d.DepartmentID, d.Phone, d.Email, d.Active,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert doctor: %w", err)
	}
	return nil
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := scanDoctor(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctors WHERE id = $1`, id))
	if err != nil {
		return nil, apperr.FromRow(err, ErrDoctorNotFound, "get doctor")
	}
	return d, nil
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE doctors SET first_name=$2, last_name=$3, specialization=$4, department_id=$5,
			phone=$6, email=$7, active=$8, updated_at=NOW()
		WHERE id = $1`,
		d.ID, d.FirstName, d.LastName, d.Specialization, d.DepartmentID, d.Phone, d.Email, d.Active)
	return db.ExpectRows(tag, err, ErrDoctorNotFound, "update doctor")
}

func (r *doctorRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM doctors WHERE id = $1`, id)
	return db.ExpectRows(tag, err, ErrDoctorNotFound, "delete doctor")
}

func (r *doctorRepoPG) List(ctx context.Context, departmentID *uuid.UUID, limit, offset int) ([]*Doctor, int, error) {
	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM doctors WHERE ($1::uuid IS NULL OR department_id = $1)`,
		departmentID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count doctors: %w", err)
	}
	rows, err := conn.Query(ctx, `SELECT `+doctorCols+` FROM doctors
		WHERE ($1::uuid IS NULL OR department_id = $1)
		ORDER BY last_name, first_name LIMIT $2 OFFSET $3`, departmentID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()
	var items []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan doctor: %w", err)
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

// =========== Visit Type Repository ===========

type visitTypeRepoPG struct{ pool *pgxpool.Pool }

func NewVisitTypeRepoPG(pool *pgxpool.Pool) VisitTypeRepository { return &visitTypeRepoPG{pool: pool} }

const visitTypeCols = `id, name, duration_minutes, description, created_at`

func scanVisitType(row pgx.Row) (*VisitType, error) {
	var v VisitType
	err := row.Scan(&v.ID, &v.Name, &v.DurationMinutes, &v.Description, &v.CreatedAt)
	return &v, err
}

func (r *visitTypeRepoPG) Create(ctx context.Context, v *VisitType) error {
	v.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO visit_types (id, name, duration_minutes, description) VALUES ($1,$2,$3,$4)
		RETURNING created_at`,
		v.ID, v.Name, v.DurationMinutes, v.Description).Scan(&v.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert visit type: %w", err)
	}
	return nil
}

func (r *visitTypeRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*VisitType, error) {
	v, err := scanVisitType(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+visitTypeCols+` FROM visit_types WHERE id = $1`, id))
	if err != nil {
		return nil, apperr.FromRow(err, ErrVisitTypeNotFound, "get visit type")
	}
	return v, nil
}

func (r *visitTypeRepoPG) Update(ctx context.Context, v *VisitType) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE visit_types SET name=$2, duration_minutes=$3, description=$4 WHERE id = $1`,
		v.ID, v.Name, v.DurationMinutes, v.Description)
	return db.ExpectRows(tag, err, ErrVisitTypeNotFound, "update visit type")
}

func (r *visitTypeRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM visit_types WHERE id = $1`, id)
	return db.ExpectRows(tag, err, ErrVisitTypeNotFound, "delete visit type")
}

func (r *visitTypeRepoPG) List(ctx context.Context) ([]*VisitType, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+visitTypeCols+` FROM visit_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list visit types: %w", err)
	}
	defer rows.Close()
	var items []*VisitType
	for rows.Next() {
		v, err := scanVisitType(rows)
		if err != nil {
			return nil, fmt.Errorf("scan visit type: %w", err)
		}
		items = append(items, v)
	}
	return items, rows.Err()
}
