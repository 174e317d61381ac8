package pharmacy

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medcore/hms/internal/platform/apperr"
	"github.com/medcore/hms/internal/platform/db"
)

// =========== Medicine Repository ===========

type medicineRepoPG struct{ pool *pgxpool.Pool }

func NewMedicineRepoPG(pool *pgxpool.Pool) MedicineRepository { return &medicineRepoPG{pool: pool} }

const medicineCols = `id, name, generic_name, form, unit, stock, reorder_level, price, created_at, updated_at`

func scanMedicine(row pgx.Row) (*Medicine, error) {
	var m Medicine
	err := row.Scan(&m.ID, &m.Name, &m.GenericName, &m.Form, &m.Unit, &m.Stock, &m.ReorderLevel,
		&m.Price, &m.CreatedAt, &m.UpdatedAt)
	return &m, err
}

func (r *medicineRepoPG) Create(ctx context.Context, m *Medicine) error {
	m.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO medicines (id, name, generic_name, form, unit, stock, reorder_level, price)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		m.ID, m.Name, m.GenericName, m.Form, m.Unit, m.Stock, m.ReorderLevel, m.Price).
		Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert medicine: %w", err)
	}
	return nil
}

func (r *medicineRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	m, err := scanMedicine(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+medicineCols+` FROM medicines WHERE id = $1`, id))
	if err != nil {
		return nil, apperr.FromRow(err, ErrMedicineNotFound, "get medicine")
	}
	return m, nil
}

// Update leaves stock alone; stock only moves through AdjustStock.
func (r *medicineRepoPG) Update(ctx context.Context, m *Medicine) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE medicines SET name=$2, generic_name=$3, form=$4, unit=$5, reorder_level=$6, price=$7,
			updated_at=NOW()
		WHERE id = $1`,
		m.ID, m.Name, m.GenericName, m.Form, m.Unit, m.ReorderLevel, m.Price)
	return db.ExpectRows(tag, err, ErrMedicineNotFound, "update medicine")
}

func (r *medicineRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM medicines WHERE id = $1`, id)
	return db.ExpectRows(tag, err, ErrMedicineNotFound, "delete medicine")
}

func (r *medicineRepoPG) List(ctx context.Context, query string, lowStock bool, limit, offset int) ([]*Medicine, int, error) {
	conn := db.Conn(ctx, r.pool)
	where := ` WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR generic_name ILIKE '%' || $1 || '%')
		AND (NOT $2 OR stock <= reorder_level)`

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM medicines`+where, query, lowStock).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count medicines: %w", err)
	}
	rows, err := conn.Query(ctx, `SELECT `+medicineCols+` FROM medicines`+where+` ORDER BY name LIMIT $3 OFFSET $4`,
		query, lowStock, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list medicines: %w", err)
	}
	defer rows.Close()
	var items []*Medicine
	for rows.Next() {
		m, err := scanMedicine(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan medicine: %w", err)
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}

func (r *medicineRepoPG) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*Medicine, error) {
	conn := db.Conn(ctx, r.pool)
	m, err := scanMedicine(conn.QueryRow(ctx, `
		UPDATE medicines SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1 AND stock + $2 >= 0
		RETURNING `+medicineCols, id, delta))
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("adjust stock: %w", err)
	}
	// Nothing updated: either the medicine is gone or there is not enough stock.
	var exists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM medicines WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("adjust stock: %w", err)
	}
	if !exists {
		return nil, ErrMedicineNotFound
	}
	return nil, ErrInsufficientStock
}

// =========== Prescription Repository ===========

type prescriptionRepoPG struct{ pool *pgxpool.Pool }

func NewPrescriptionRepoPG(pool *pgxpool.Pool) PrescriptionRepository {
	return &prescriptionRepoPG{pool: pool}
}

const prescriptionCols = `id, patient_id, doctor_id, medical_record_id, status, notes, dispensed_at, dispensed_by,
	created_at, updated_at`

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.PatientID, &p.DoctorID, &p.MedicalRecordID, &p.Status, &p.Notes,
		&p.DispensedAt, &p.DispensedBy, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

// Create inserts the prescription and its items. Callers run it inside a
// transaction so a failing item leaves nothing behind.
func (r *prescriptionRepoPG) Create(ctx context.Context, p *Prescription) error {
	conn := db.Conn(ctx, r.pool)
	p.ID = uuid.New()
	err := conn.QueryRow(ctx, `
		INSERT INTO prescriptions (id, patient_id, doctor_id, medical_record_id, status, notes)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`,
		p.ID, p.PatientID, p.DoctorID, p.MedicalRecordID, p.Status, p.Notes).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert prescription: %w", err)
	}
	for i := range p.Items {
		it := &p.Items[i]
		it.ID = uuid.New()
		it.PrescriptionID = p.ID
		_, err := conn.Exec(ctx, `
			INSERT INTO prescription_items (id, prescription_id, medicine_id, quantity, dosage, frequency, duration_days)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			it.ID, it.PrescriptionID, it.MedicineID, it.Quantity, it.Dosage, it.Frequency, it.DurationDays)
		if err != nil {
			return fmt.Errorf("insert prescription item: %w", err)
		}
	}
	return nil
}

func (r *prescriptionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	conn := db.Conn(ctx, r.pool)
	p, err := scanPrescription(conn.QueryRow(ctx, `SELECT `+prescriptionCols+` FROM prescriptions WHERE id = $1`, id))
	if err != nil {
		return nil, apperr.FromRow(err, ErrPrescriptionNotFound, "get prescription")
	}
	if p.Items, err = r.items(ctx, conn, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *prescriptionRepoPG) items(ctx context.Context, conn db.Querier, prescriptionID uuid.UUID) ([]PrescriptionItem, error) {
	rows, err := conn.Query(ctx, `
		SELECT id, prescription_id, medicine_id, quantity, dosage, frequency, duration_days
		FROM prescription_items WHERE prescription_id = $1 ORDER BY id`, prescriptionID)
	if err != nil {
		return nil, fmt.Errorf("list prescription items: %w", err)
	}
	defer rows.Close()
	items := []PrescriptionItem{}
	for rows.Next() {
		var it PrescriptionItem
		if err := rows.Scan(&it.ID, &it.PrescriptionID, &it.MedicineID, &it.Quantity, &it.Dosage,
			&it.Frequency, &it.DurationDays); err != nil {
			return nil, fmt.Errorf("scan prescription item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *prescriptionRepoPG) UpdateStatus(ctx context.Context, p *Prescription, from string) error {
	// A concurrent writer holding the row lock makes this wait and then
	// re-evaluate the status predicate against the committed row.
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE prescriptions SET status=$2, dispensed_at=$3, dispensed_by=$4, updated_at=NOW()
		WHERE id = $1 AND status = $5`,
		p.ID, p.Status, p.DispensedAt, p.DispensedBy, from)
	return db.ExpectRows(tag, err, ErrPrescriptionChanged, "update prescription")
}

func (r *prescriptionRepoPG) List(ctx context.Context, f PrescriptionFilter, limit, offset int) ([]*Prescription, int, error) {
	conn := db.Conn(ctx, r.pool)
	where := ` WHERE ($1::uuid IS NULL OR patient_id = $1) AND ($2 = '' OR status = $2)`

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM prescriptions`+where, f.PatientID, f.Status).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count prescriptions: %w", err)
	}
	rows, err := conn.Query(ctx, `SELECT `+prescriptionCols+` FROM prescriptions`+where+`
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`, f.PatientID, f.Status, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list prescriptions: %w", err)
	}
	var items []*Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("scan prescription: %w", err)
		}
		items = append(items, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list prescriptions: %w", err)
	}
	for _, p := range items {
		if p.Items, err = r.items(ctx, conn, p.ID); err != nil {
			return nil, 0, err
		}
	}
	return items, total, nil
}
