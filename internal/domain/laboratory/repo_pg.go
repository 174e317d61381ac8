package laboratory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medcore/hms/internal/platform/apperr"
	"github.com/medcore/hms/internal/platform/db"
)

// =========== LabRequest Repository ===========

type requestRepoPG struct{ pool *pgxpool.Pool }

func NewRequestRepoPG(pool *pgxpool.Pool) RequestRepository { return &requestRepoPG{pool: pool} }

const requestCols = `id, patient_id, doctor_id, test_name, priority, status, notes, requested_at, completed_at,
	created_at, updated_at`

func scanRequest(row pgx.Row) (*LabRequest, error) {
	var r LabRequest
	err := row.Scan(&r.ID, &r.PatientID, &r.DoctorID, &r.TestName, &r.Priority, &r.Status, &r.Notes,
		&r.RequestedAt, &r.CompletedAt, &r.CreatedAt, &r.UpdatedAt)
	return &r, err
}

func (r *requestRepoPG) Create(ctx context.Context, lr *LabRequest) error {
	lr.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO lab_requests (id, patient_id, doctor_id, test_name, priority, status, notes, requested_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		lr.ID, lr.PatientID, lr.DoctorID, lr.TestName, lr.Priority, lr.Status, lr.Notes, lr.RequestedAt).
		Scan(&lr.CreatedAt, &lr.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert lab request: %w", err)
	}
	return nil
}

func (r *requestRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*LabRequest, error) {
	lr, err := scanRequest(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+requestCols+` FROM lab_requests WHERE id = $1`, id))
	if err != nil {
		return nil, apperr.FromRow(err, ErrRequestNotFound, "get lab request")
	}
	return lr, nil
}

func (r *requestRepoPG) UpdateStatus(ctx context.Context, lr *LabRequest) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE lab_requests SET status=$2, completed_at=$3, updated_at=NOW() WHERE id = $1`,
		lr.ID, lr.Status, lr.CompletedAt)
	return db.ExpectRows(tag, err, ErrRequestNotFound, "update lab request")
}

// List orders stat before urgent before routine, oldest first within a
// priority, which is the order the lab works the queue.
func (r *requestRepoPG) List(ctx context.Context, f RequestFilter, limit, offset int) ([]*LabRequest, int, error) {
	conn := db.Conn(ctx, r.pool)
	where := ` WHERE ($1::uuid IS NULL OR patient_id = $1) AND ($2 = '' OR status = $2) AND ($3 = '' OR priority = $3)`

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM lab_requests`+where, f.PatientID, f.Status, f.Priority).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count lab requests: %w", err)
	}
	rows, err := conn.Query(ctx, `SELECT `+requestCols+` FROM lab_requests`+where+`
		ORDER BY CASE priority WHEN 'stat' THEN 0 WHEN 'urgent' THEN 1 ELSE 2 END, requested_at
		LIMIT $4 OFFSET $5`, f.PatientID, f.Status, f.Priority, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list lab requests: %w", err)
	}
	defer rows.Close()
	var items []*LabRequest
	for rows.Next() {
		lr, err := scanRequest(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan lab request: %w", err)
		}
		items = append(items, lr)
	}
	return items, total, rows.Err()
}

// =========== LabResult Repository ===========

type resultRepoPG struct{ pool *pgxpool.Pool }

func NewResultRepoPG(pool *pgxpool.Pool) ResultRepository { return &resultRepoPG{pool: pool} }

func (r *resultRepoPG) CreateBatch(ctx context.Context, results []*LabResult) error {
	batch := &pgx.Batch{}
	for _, res := range results {
		res.ID = uuid.New()
		batch.Queue(`
			INSERT INTO lab_results (id, request_id, parameter, value, unit, reference_range, abnormal,
				performed_by, recorded_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			res.ID, res.RequestID, res.Parameter, res.Value, res.Unit, res.ReferenceRange, res.Abnormal,
			res.PerformedBy, res.RecordedAt)
	}
	br := db.SendBatch(ctx, r.pool, batch)
	defer br.Close()
	for range results {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert lab result: %w", err)
		}
	}
	return nil
}

func (r *resultRepoPG) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*LabResult, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT id, request_id, parameter, value, unit, reference_range, abnormal, performed_by, recorded_at
		FROM lab_results WHERE request_id = $1 ORDER BY recorded_at, parameter`, requestID)
	if err != nil {
		return nil, fmt.Errorf("list lab results: %w", err)
	}
	defer rows.Close()
	items := []*LabResult{}
	for rows.Next() {
		var res LabResult
		if err := rows.Scan(&res.ID, &res.RequestID, &res.Parameter, &res.Value, &res.Unit,
			&res.ReferenceRange, &res.Abnormal, &res.PerformedBy, &res.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan lab result: %w", err)
		}
		items = append(items, &res)
	}
	return items, rows.Err()
}
