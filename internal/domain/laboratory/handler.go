package laboratory

import (
	"net/http"

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
	read := api.Group("/lab-requests", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse, auth.RoleLabTechnician))
	read.GET("", h.List)
	read.GET("/:id", h.Get)

	order := api.Group("/lab-requests", auth.RequireRole(auth.RoleDoctor))
	order.POST("", h.Create)

	lab := api.Group("/lab-requests", auth.RequireRole(auth.RoleLabTechnician))
	lab.PATCH("/:id/status", h.UpdateStatus)
	lab.POST("/:id/results", h.RecordResults)
}

func paramID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) Create(c echo.Context) error {
	var r LabRequest
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateRequest(c.Request().Context(), &r); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	r, err := h.svc.GetRequest(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, r)
}

// List supports ?patient_id=, ?status= and ?priority=.
func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := RequestFilter{Status: c.QueryParam("status"), Priority: c.QueryParam("priority")}
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		f.PatientID = &id
	}
	items, total, err := h.svc.ListRequests(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c.Request().URL))
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r, err := h.svc.UpdateStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, r)
}

type resultsRequest struct {
	Results []*LabResult `json:"results"`
}

func (h *Handler) RecordResults(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var req resultsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r, err := h.svc.RecordResults(c.Request().Context(), id, req.Results, auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, r)
}
