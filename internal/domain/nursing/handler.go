package nursing

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
	read := api.Group("", auth.RequireRole(auth.RoleNurse, auth.RoleDoctor))
	read.GET("/nurses", h.ListNurses)
	read.GET("/nurses/:id", h.GetNurse)
	read.GET("/nursing/shifts", h.ListShifts)
	read.GET("/nursing/shifts/:id", h.GetShift)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/nurses", h.CreateNurse)
	admin.PUT("/nurses/:id", h.UpdateNurse)
	admin.DELETE("/nurses/:id", h.DeleteNurse)
	admin.POST("/nursing/shifts", h.CreateShift)
	admin.DELETE("/nursing/shifts/:id", h.DeleteShift)
	admin.POST("/nursing/shifts/generate", h.GenerateShifts)
}

func paramID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func parseDay(v, name string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, name+" must be YYYY-MM-DD")
	}
	return t, nil
}

// -- Nurse Handlers --

func (h *Handler) CreateNurse(c echo.Context) error {
	var n Nurse
	if err := c.Bind(&n); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateNurse(c.Request().Context(), &n); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, n)
}

func (h *Handler) GetNurse(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	n, err := h.svc.GetNurse(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) UpdateNurse(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var n Nurse
	if err := c.Bind(&n); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	n.ID = id
	if err := h.svc.UpdateNurse(c.Request().Context(), &n); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) DeleteNurse(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteNurse(c.Request().Context(), id); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListNurses(c echo.Context) error {
	pg := pagination.FromContext(c)
	activeOnly, _ := strconv.ParseBool(c.QueryParam("active"))
	items, total, err := h.svc.ListNurses(c.Request().Context(), activeOnly, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c.Request().URL))
}

// -- Shift Handlers --

type shiftRequest struct {
	NurseID      uuid.UUID  `json:"nurse_id"`
	DepartmentID *uuid.UUID `json:"department_id"`
	ShiftDate    string     `json:"shift_date"`
	ShiftType    string     `json:"shift_type"`
	Notes        *string    `json:"notes"`
}

func (h *Handler) CreateShift(c echo.Context) error {
	var req shiftRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	day, err := parseDay(req.ShiftDate, "shift_date")
	if err != nil {
		return err
	}
	sh := &Shift{
		NurseID:      req.NurseID,
		DepartmentID: req.DepartmentID,
		ShiftDate:    day,
		ShiftType:    req.ShiftType,
		Notes:        req.Notes,
	}
	if err := h.svc.CreateShift(c.Request().Context(), sh); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, sh)
}

func (h *Handler) GetShift(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	sh, err := h.svc.GetShift(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, sh)
}

func (h *Handler) DeleteShift(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteShift(c.Request().Context(), id); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListShifts supports ?nurse_id= and a ?from=/&to= day range.
func (h *Handler) ListShifts(c echo.Context) error {
	pg := pagination.FromContext(c)
	var f ShiftFilter
	if v := c.QueryParam("nurse_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid nurse_id")
		}
		f.NurseID = &id
	}
	if v := c.QueryParam("from"); v != "" {
		d, err := parseDay(v, "from")
		if err != nil {
			return err
		}
		from := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, h.svc.loc)
		f.From = &from
	}
	if v := c.QueryParam("to"); v != "" {
		d, err := parseDay(v, "to")
		if err != nil {
			return err
		}
		to := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, h.svc.loc).AddDate(0, 0, 1).Add(-time.Nanosecond)
		f.To = &to
	}
	items, total, err := h.svc.ListShifts(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c.Request().URL))
}

type generateRequest struct {
	NurseIDs             []uuid.UUID    `json:"nurse_ids"`
	From                 string         `json:"from"`
	To                   string         `json:"to"`
	PerShift             map[string]int `json:"per_shift"`
	MaxConsecutiveNights int            `json:"max_consecutive_nights"`
	Seed                 *int64         `json:"seed"`
	DepartmentID         *uuid.UUID     `json:"department_id"`
	DryRun               bool           `json:"dry_run"`
}

// GenerateShifts builds a roster. Without a seed the current time is used
// and echoed back so the roster can be reproduced.
func (h *Handler) GenerateShifts(c echo.Context) error {
	var body generateRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	from, err := parseDay(body.From, "from")
	if err != nil {
		return err
	}
	to, err := parseDay(body.To, "to")
	if err != nil {
		return err
	}
	seed := time.Now().UnixNano()
	if body.Seed != nil {
		seed = *body.Seed
	}
	req := GenerateRequest{
		NurseIDs:             body.NurseIDs,
		From:                 from,
		To:                   to,
		PerShift:             body.PerShift,
		MaxConsecutiveNights: body.MaxConsecutiveNights,
		Seed:                 seed,
		DepartmentID:         body.DepartmentID,
	}
	roster, err := h.svc.GenerateShifts(c.Request().Context(), req, body.DryRun)
	if err != nil {
		return apperr.HTTP(err)
	}
	status := http.StatusCreated
	if body.DryRun {
		status = http.StatusOK
	}
	return c.JSON(status, roster)
}
