package patient

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medcore/hms/internal/platform/apperr"
	"github.com/medcore/hms/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const patientCols = `id, mrn, first_name, last_name, birth_date, gender, blood_type, phone, email,
	address, emergency_contact, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.MRN, &p.FirstName, &p.LastName, &p.BirthDate, &p.Gender, &p.BloodType,
		&p.Phone, &p.Email, &p.Address, &p.EmergencyContact, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patients (id, mrn, first_name, last_name, birth_date, gender, blood_type, phone, email,
			address, emergency_contact)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		p.ID, p.MRN, p.FirstName, p.LastName, p.BirthDate, p.Gender, p.BloodType, p.Phone, p.Email,
		p.Address, p.EmergencyContact).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
	if err != nil {
		return nil, apperr.FromRow(err, ErrNotFound, "get patient")
	}
	return p, nil
}

func (r *repoPG) GetByMRN(ctx context.Context, mrn string) (*Patient, error) {
	p, err := scanPatient(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE mrn = $1`, mrn))
	if err != nil {
		return nil, apperr.FromRow(err, ErrNotFound, "get patient by mrn")
	}
	return p, nil
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE patients SET first_name=$2, last_name=$3, birth_date=$4, gender=$5, blood_type=$6,
			phone=$7, email=$8, address=$9, emergency_contact=$10, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.FirstName, p.LastName, p.BirthDate, p.Gender, p.BloodType,
		p.Phone, p.Email, p.Address, p.EmergencyContact)
	return db.ExpectRows(tag, err, ErrNotFound, "update patient")
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	return db.ExpectRows(tag, err, ErrNotFound, "delete patient")
}

func (r *repoPG) Search(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	conn := db.Conn(ctx, r.pool)
	where := ""
	var args []interface{}
	if q := strings.TrimSpace(query); q != "" {
		where = ` WHERE mrn = $1 OR first_name ILIKE $2 OR last_name ILIKE $2
			OR (first_name || ' ' || last_name) ILIKE $2`
		args = append(args, strings.ToUpper(q), "%"+q+"%")
	}

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM patients`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	n := len(args)
	rows, err := conn.Query(ctx, fmt.Sprintf(`SELECT %s FROM patients%s ORDER BY last_name, first_name LIMIT $%d OFFSET $%d`,
		patientCols, where, n+1, n+2), append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("search patients: %w", err)
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan patient: %w", err)
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}
