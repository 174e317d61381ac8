package appointment

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medcore/hms/internal/platform/apperr"
	"github.com/medcore/hms/internal/platform/auth"
	"github.com/medcore/hms/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("/appointments", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse, auth.RoleReceptionist))
	read.GET("", h.List)
	read.GET("/:id", h.Get)
	read.GET("/queue/:doctor_id", h.Queue)
	read.GET("/availability/:doctor_id", h.Availability)

	stats := api.Group("/appointments/stats", auth.RequireRole(auth.RoleDoctor, auth.RoleReceptionist))
	stats.GET("", h.Stats)

	write := api.Group("/appointments", auth.RequireRole(auth.RoleReceptionist, auth.RoleDoctor))
	write.POST("", h.Create)
	write.PUT("/:id", h.Reschedule)
	write.PATCH("/:id/status", h.UpdateStatus)
	write.POST("/:id/check-in", h.CheckIn)

	admin := api.Group("/appointments", auth.RequireRole(auth.RoleAdmin))
	admin.DELETE("/:id", h.Delete)
}

func (h *Handler) Create(c echo.Context) error {
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Create(c.Request().Context(), &a); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) List(c echo.Context) error {
	f, err := h.parseFilter(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c.Request().URL))
}

func (h *Handler) Reschedule(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in Appointment
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.Reschedule(c.Request().Context(), id, &in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body StatusUpdate
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.UpdateStatus(c.Request().Context(), id, body.Status)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) CheckIn(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.CheckIn(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Queue returns a doctor's check-in queue for ?date=YYYY-MM-DD, today by default.
func (h *Handler) Queue(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("doctor_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
	}
	day := h.svc.now()
	if v := c.QueryParam("date"); v != "" {
		day, err = time.ParseInLocation(dateLayout, v, h.svc.location())
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		}
	}
	items, err := h.svc.Queue(c.Request().Context(), doctorID, day)
	if err != nil {
		return apperr.HTTP(err)
	}
	if items == nil {
		items = []*Appointment{}
	}
	return c.JSON(http.StatusOK, items)
}

// Availability lists free slots for ?date= (default today) of ?duration=
// minutes.
func (h *Handler) Availability(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("doctor_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
	}
	day := h.svc.now()
	if v := c.QueryParam("date"); v != "" {
		day, err = time.ParseInLocation(dateLayout, v, h.svc.location())
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		}
	}
	minutes := 0
	if v := c.QueryParam("duration"); v != "" {
		if minutes, err = strconv.Atoi(v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "duration must be a number of minutes")
		}
	}
	slots, err := h.svc.Availability(c.Request().Context(), doctorID, day, minutes)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, slots)
}

// Stats returns the dashboard summary for the records matching the query
// filters status, doctor_id, patient_id, date_from and date_to.
func (h *Handler) Stats(c echo.Context) error {
	f, err := h.parseFilter(c)
	if err != nil {
		return err
	}
	summary, err := h.svc.Stats(c.Request().Context(), f)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, summary)
}

const dateLayout = "2006-01-02"

func (h *Handler) parseFilter(c echo.Context) (Filter, error) {
	var f Filter
	if v := c.QueryParam("status"); v != "" {
		f.Status = v
	}
	for _, p := range []struct {
		name string
		dst  **uuid.UUID
	}{
		{"doctor_id", &f.DoctorID},
		{"patient_id", &f.PatientID},
	} {
		v := c.QueryParam(p.name)
		if v == "" {
			continue
		}
		id, err := uuid.Parse(v)
		if err != nil {
			return Filter{}, echo.NewHTTPError(http.StatusBadRequest, "invalid "+p.name)
		}
		*p.dst = &id
	}

	loc := h.svc.location()
	if v := c.QueryParam("date_from"); v != "" {
		t, _, err := parseDate(v, loc)
		if err != nil {
			return Filter{}, echo.NewHTTPError(http.StatusBadRequest, "invalid date_from")
		}
		f.DateFrom = &t
	}
	if v := c.QueryParam("date_to"); v != "" {
		t, dateOnly, err := parseDate(v, loc)
		if err != nil {
			return Filter{}, echo.NewHTTPError(http.StatusBadRequest, "invalid date_to")
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		f.DateTo = &t
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateTo.Before(*f.DateFrom) {
		return Filter{}, echo.NewHTTPError(http.StatusBadRequest, "date_to is before date_from")
	}
	return f, nil
}

// parseDate accepts YYYY-MM-DD (midnight in loc) or RFC 3339.
func parseDate(v string, loc *time.Location) (time.Time, bool, error) {
	if t, err := time.ParseInLocation(dateLayout, v, loc); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	return t, false, err
}
