// Package reporting evaluates predefined operational reports straight from SQL.
package reporting

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/medcore/hms/internal/platform/auth"
)

// Parameter kinds.
const (
	KindDateFrom = "date_from"
	KindDateTo   = "date_to"
	KindUUID     = "uuid"
)

type Parameter struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// Report is a named query. Its SQL takes the parameters positionally, in
// declaration order, and must accept NULL for an omitted one.
type Report struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	SQL         string      `json:"-"`
	Parameters  []Parameter `json:"parameters"`
}

// Result holds the rows of one evaluation.
type Result struct {
	ReportID    string                   `json:"report_id"`
	ReportName  string                   `json:"report_name"`
	GeneratedAt time.Time                `json:"generated_at"`
	Parameters  map[string]string        `json:"parameters,omitempty"`
	Rows        []map[string]interface{} `json:"rows"`
}

var dateRange = []Parameter{{Name: "date_from", Kind: KindDateFrom}, {Name: "date_to", Kind: KindDateTo}}

// Reports is the catalogue served by the API.
var Reports = []Report{
	{
		ID:          "patient-registrations",
		Name:        "Patient Registrations",
		Description: "New patients per month",
		SQL: `SELECT date_trunc('month', created_at)::date AS month, COUNT(*) AS total
			FROM patients
			WHERE ($1::timestamptz IS NULL OR created_at >= $1) AND ($2::timestamptz IS NULL OR created_at <= $2)
			GROUP BY 1 ORDER BY 1`,
		Parameters: dateRange,
	},
	{
		ID:          "appointments-by-department",
		Name:        "Appointments by Department",
		Description: "Appointment counts per department and status",
		SQL: `SELECT COALESCE(dep.name, 'Unknown') AS department, a.status, COUNT(*) AS total
			FROM appointments a
			LEFT JOIN doctors d ON d.id = a.doctor_id
			LEFT JOIN departments dep ON dep.id = d.department_id
			WHERE ($1::timestamptz IS NULL OR a.appointment_date >= $1)
				AND ($2::timestamptz IS NULL OR a.appointment_date <= $2)
			GROUP BY 1, 2 ORDER BY 1, 2`,
		Parameters: dateRange,
	},
	{
		ID:          "doctor-workload",
		Name:        "Doctor Workload",
		Description: "Booked and completed appointments per doctor",
		SQL: `SELECT d.id AS doctor_id, d.first_name || ' ' || d.last_name AS doctor,
				COUNT(a.id) AS booked,
				COUNT(a.id) FILTER (WHERE a.status = 'completed') AS completed
			FROM doctors d
			LEFT JOIN appointments a ON a.doctor_id = d.id
				AND ($1::timestamptz IS NULL OR a.appointment_date >= $1)
				AND ($2::timestamptz IS NULL OR a.appointment_date <= $2)
			WHERE ($3::uuid IS NULL OR d.department_id = $3)
			GROUP BY d.id, d.first_name, d.last_name
			ORDER BY booked DESC, doctor`,
		Parameters: append(append([]Parameter{}, dateRange...), Parameter{Name: "department_id", Kind: KindUUID}),
	},
	{
		ID:          "low-stock-medicines",
		Name:        "Low Stock Medicines",
		Description: "Medicines at or below their reorder level",
		SQL: `SELECT id, name, unit, stock, reorder_level
			FROM medicines WHERE stock <= reorder_level ORDER BY stock, name`,
	},
	{
		ID:          "prescription-status",
		Name:        "Prescription Status",
		Description: "Prescriptions by status",
		SQL: `SELECT status, COUNT(*) AS total FROM prescriptions
			WHERE ($1::timestamptz IS NULL OR created_at >= $1) AND ($2::timestamptz IS NULL OR created_at <= $2)
			GROUP BY status ORDER BY total DESC`,
		Parameters: dateRange,
	},
	{
		ID:          "lab-turnaround",
		Name:        "Lab Turnaround",
		Description: "Completed lab requests and mean hours to completion by priority",
		SQL: `SELECT priority, COUNT(*) AS completed,
				ROUND(AVG(EXTRACT(EPOCH FROM completed_at - requested_at) / 3600)::numeric, 1)::float8 AS avg_hours
			FROM lab_requests
			WHERE status = 'completed'
				AND ($1::timestamptz IS NULL OR requested_at >= $1) AND ($2::timestamptz IS NULL OR requested_at <= $2)
			GROUP BY priority ORDER BY priority`,
		Parameters: dateRange,
	},
	{
		ID:          "nurse-shift-load",
		Name:        "Nurse Shift Load",
		Description: "Shifts per nurse and shift type",
		SQL: `SELECT n.id AS nurse_id, n.first_name || ' ' || n.last_name AS nurse,
				COUNT(s.id) FILTER (WHERE s.shift_type = 'morning') AS morning,
				COUNT(s.id) FILTER (WHERE s.shift_type = 'evening') AS evening,
				COUNT(s.id) FILTER (WHERE s.shift_type = 'night') AS night,
				COUNT(s.id) AS total
			FROM nurses n
			LEFT JOIN shifts s ON s.nurse_id = n.id
				AND ($1::timestamptz IS NULL OR s.starts_at >= $1)
				AND ($2::timestamptz IS NULL OR s.starts_at <= $2)
			WHERE n.active
			GROUP BY n.id, n.first_name, n.last_name
			ORDER BY total DESC, nurse`,
		Parameters: dateRange,
	},
	{
		ID:          "asset-status",
		Name:        "Asset Status",
		Description: "Assets by category and status",
		SQL: `SELECT category, status, COUNT(*) AS total FROM assets
			GROUP BY category, status ORDER BY category, status`,
	},
}

// FindReport looks a report up by id.
func FindReport(id string) *Report {
	for i := range Reports {
		if Reports[i].ID == id {
			return &Reports[i]
		}
	}
	return nil
}

// Args converts raw query values into positional SQL arguments. Missing
// values become NULL. A date_to covers its whole day in loc.
func (r *Report) Args(raw map[string]string, loc *time.Location) ([]interface{}, error) {
	args := make([]interface{}, len(r.Parameters))
	for i, p := range r.Parameters {
		v, ok := raw[p.Name]
		if !ok || v == "" {
			continue
		}
		switch p.Kind {
		case KindDateFrom, KindDateTo:
			t, err := time.ParseInLocation("2006-01-02", v, loc)
			if err != nil {
				return nil, fmt.Errorf("%s must be YYYY-MM-DD", p.Name)
			}
			if p.Kind == KindDateTo {
				t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
			}
			args[i] = t
		case KindUUID:
			id, err := uuid.Parse(v)
			if err != nil {
				return nil, fmt.Errorf("%s must be a uuid", p.Name)
			}
			args[i] = id
		default:
			args[i] = v
		}
	}
	return args, nil
}

// Querier runs a read query. *pgxpool.Pool satisfies it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

type Handler struct {
	db  Querier
	loc *time.Location
	now func() time.Time
}

func NewHandler(db Querier, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.Local
	}
	return &Handler{db: db, loc: loc, now: time.Now}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/reports", auth.RequireRole(auth.RoleAdmin))
	g.GET("", h.List)
	g.GET("/:id", h.Evaluate)
}

func (h *Handler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, Reports)
}

// Evaluate runs the report with parameters taken from the query string.
func (h *Handler) Evaluate(c echo.Context) error {
	report := FindReport(c.Param("id"))
	if report == nil {
		return echo.NewHTTPError(http.StatusNotFound, "report not found")
	}

	raw := map[string]string{}
	for _, p := range report.Parameters {
		if v := c.QueryParam(p.Name); v != "" {
			raw[p.Name] = v
		}
	}
	args, err := report.Args(raw, h.loc)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	rows, err := h.run(c.Request().Context(), report.SQL, args)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("report %s failed", report.ID))
	}
	return c.JSON(http.StatusOK, Result{
		ReportID:    report.ID,
		ReportName:  report.Name,
		GeneratedAt: h.now(),
		Parameters:  raw,
		Rows:        rows,
	})
}

func (h *Handler) run(ctx context.Context, sql string, args []interface{}) ([]map[string]interface{}, error) {
	rows, err := h.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	results := []map[string]interface{}{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(fields))
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}
		results = append(results, row)
	}
	return results, rows.Err()
}
