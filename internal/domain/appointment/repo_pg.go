package appointment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medcore/hms/internal/platform/apperr"
	"github.com/medcore/hms/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const apptCols = `id, patient_id, doctor_id, visit_type_id, appointment_date, status,
	reason, notes, queue_number, checked_in_at, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.VisitTypeID, &a.AppointmentDate, &a.Status,
		&a.Reason, &a.Notes, &a.QueueNumber, &a.CheckedInAt, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

// slotConstraint is the partial unique index on live bookings.
const slotConstraint = "uq_appointments_doctor_slot"

// writeErr maps a failed INSERT or UPDATE, turning a lost race for a slot
// into ErrDoubleBook.
func writeErr(err error, op string) error {
	if db.IsUniqueViolation(err, slotConstraint) {
		return ErrDoubleBook
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, visit_type_id, appointment_date, status, reason, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.VisitTypeID, a.AppointmentDate, a.Status, a.Reason, a.Notes,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return writeErr(err, "insert appointment")
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.get(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1`, id)
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.get(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1 FOR UPDATE`, id)
}

func (r *repoPG) get(ctx context.Context, query string, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(db.Conn(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		return nil, apperr.FromRow(err, ErrNotFound, "get appointment")
	}
	return a, nil
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE appointments SET visit_type_id=$2, appointment_date=$3, status=$4, reason=$5, notes=$6,
			queue_number=$7, checked_in_at=$8, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.VisitTypeID, a.AppointmentDate, a.Status, a.Reason, a.Notes, a.QueueNumber, a.CheckedInAt)
	if err != nil {
		return writeErr(err, "update appointment")
	}
	return db.ExpectRows(tag, nil, ErrNotFound, "update appointment")
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	return db.ExpectRows(tag, err, ErrNotFound, "delete appointment")
}

// whereClause renders f as a WHERE clause over the appointments alias a.
// Positional arguments start at $1.
func whereClause(f Filter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("a.status = $%d", strings.ToLower(f.Status))
	}
	if f.DoctorID != nil {
		add("a.doctor_id = $%d", *f.DoctorID)
	}
	if f.PatientID != nil {
		add("a.patient_id = $%d", *f.PatientID)
	}
	if f.DateFrom != nil {
		add("a.appointment_date >= $%d", *f.DateFrom)
	}
	if f.DateTo != nil {
		add("a.appointment_date <= $%d", *f.DateTo)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	where, args := whereClause(f)
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM appointments a`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT `+prefixCols("a", apptCols)+` FROM appointments a%s
		ORDER BY a.appointment_date DESC LIMIT $%d OFFSET $%d`, where, n+1, n+2)
	rows, err := conn.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan appointment: %w", err)
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func prefixCols(alias, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func (r *repoPG) DoctorBusyAt(ctx context.Context, doctorID uuid.UUID, at time.Time, exclude uuid.UUID) (bool, error) {
	var busy bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1 AND appointment_date = $2 AND status <> 'cancelled' AND id <> $3
		)`, doctorID, at, exclude).Scan(&busy)
	if err != nil {
		return false, fmt.Errorf("check doctor availability: %w", err)
	}
	return busy, nil
}

func (r *repoPG) AssignQueueNumber(ctx context.Context, a *Appointment, dayStart time.Time) error {
	conn := db.Conn(ctx, r.pool)
	day := dayStart.Format(time.DateOnly)

	// Held until commit, so the MAX below sees every earlier check-in.
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text || '/' || $2::text, 0))`,
		a.DoctorID.String(), day); err != nil {
		return fmt.Errorf("lock queue: %w", err)
	}

	var n int
	err := conn.QueryRow(ctx, `
		UPDATE appointments SET
			queue_number = (
				SELECT COALESCE(MAX(queue_number), 0) + 1 FROM appointments
				WHERE doctor_id = $2 AND queue_day = $3::date
			),
			queue_day = $3::date, checked_in_at = $4, updated_at = NOW()
		WHERE id = $1 AND queue_number IS NULL
		RETURNING queue_number`,
		a.ID, a.DoctorID, day, a.CheckedInAt).Scan(&n)
	if err != nil {
		return apperr.FromRow(err, ErrCheckedIn, "assign queue number")
	}
	a.QueueNumber = &n
	return nil
}

func (r *repoPG) ListQueue(ctx context.Context, doctorID uuid.UUID, dayStart time.Time) ([]*Appointment, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+apptCols+` FROM appointments
		WHERE doctor_id = $1 AND queue_day = $2::date AND queue_number IS NOT NULL
		ORDER BY queue_number`, doctorID, dayStart.Format(time.DateOnly))
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

const statsQuery = `
	SELECT a.id, a.appointment_date, a.status, a.patient_id,
		d.id, d.first_name, d.last_name, dep.name,
		vt.id, vt.name
	FROM appointments a
	LEFT JOIN doctors d ON d.id = a.doctor_id
	LEFT JOIN departments dep ON dep.id = d.department_id
	LEFT JOIN visit_types vt ON vt.id = a.visit_type_id`

// ListForStats loads the records with patient, doctor, department and visit
// type resolved, oldest first.
func (r *repoPG) ListForStats(ctx context.Context, f Filter) ([]AppointmentRecord, error) {
	where, args := whereClause(f)
	rows, err := db.Conn(ctx, r.pool).Query(ctx, statsQuery+where+` ORDER BY a.appointment_date`, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments for stats: %w", err)
	}
	defer rows.Close()

	records := []AppointmentRecord{}
	for rows.Next() {
		var (
			rec                 AppointmentRecord
			date                *time.Time
			patientID, doctorID *uuid.UUID
			first, last, dept   *string
			visitID             *uuid.UUID
			visitName           *string
		)
		if err := rows.Scan(&rec.ID, &date, &rec.Status, &patientID,
			&doctorID, &first, &last, &dept, &visitID, &visitName); err != nil {
			return nil, fmt.Errorf("scan stats record: %w", err)
		}
		if date != nil {
			rec.AppointmentDate = *date
		}
		if patientID != nil {
			rec.Patient = &PatientRef{ID: *patientID}
		}
		if doctorID != nil {
			rec.Doctor = &DoctorRef{ID: *doctorID, FirstName: deref(first), LastName: deref(last)}
			if dept != nil {
				rec.Doctor.Department = &DepartmentRef{Name: *dept}
			}
		}
		if visitID != nil {
			rec.VisitType = &VisitTypeRef{ID: *visitID, Name: deref(visitName)}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
