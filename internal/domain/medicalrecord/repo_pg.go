package medicalrecord

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

const recordCols = `id, patient_id, doctor_id, appointment_id, diagnosis, symptoms, treatment, notes,
	recorded_at, created_at, updated_at`

func scanRecord(row pgx.Row) (*MedicalRecord, error) {
	var m MedicalRecord
	err := row.Scan(&m.ID, &m.PatientID, &m.DoctorID, &m.AppointmentID, &m.Diagnosis, &m.Symptoms,
		&m.Treatment, &m.Notes, &m.RecordedAt, &m.CreatedAt, &m.UpdatedAt)
	return &m, err
}

func (r *repoPG) Create(ctx context.Context, m *MedicalRecord) error {
	m.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO medical_records (id, patient_id, doctor_id, appointment_id, diagnosis, symptoms,
			treatment, notes, recorded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		m.ID, m.PatientID, m.DoctorID, m.AppointmentID, m.Diagnosis, m.Symptoms,
		m.Treatment, m.Notes, m.RecordedAt).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert medical record: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error) {
	m, err := scanRecord(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+recordCols+` FROM medical_records WHERE id = $1`, id))
	if err != nil {
		return nil, apperr.FromRow(err, ErrNotFound, "get medical record")
	}
	return m, nil
}

func (r *repoPG) Update(ctx context.Context, m *MedicalRecord) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE medical_records SET diagnosis=$2, symptoms=$3, treatment=$4, notes=$5, updated_at=NOW()
		WHERE id = $1`,
		m.ID, m.Diagnosis, m.Symptoms, m.Treatment, m.Notes)
	return db.ExpectRows(tag, err, ErrNotFound, "update medical record")
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM medical_records WHERE id = $1`, id)
	return db.ExpectRows(tag, err, ErrNotFound, "delete medical record")
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error) {
	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM medical_records WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count medical records: %w", err)
	}
	rows, err := conn.Query(ctx, `SELECT `+recordCols+` FROM medical_records WHERE patient_id = $1
		ORDER BY recorded_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list medical records: %w", err)
	}
	defer rows.Close()
	var items []*MedicalRecord
	for rows.Next() {
		m, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan medical record: %w", err)
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}
