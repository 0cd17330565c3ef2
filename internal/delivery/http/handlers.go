package http

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/roadwatch/console/internal/domain"
	"github.com/roadwatch/console/internal/service"
)

// Handler contains all HTTP handlers
type Handler struct {
	views        *service.ViewRegistry
	dashboardSvc *service.DashboardService
	repo         service.DataRepository
}

// NewHandler creates a new handler
func NewHandler(views *service.ViewRegistry, dashboardSvc *service.DashboardService, repo service.DataRepository) *Handler {
	return &Handler{
		views:        views,
		dashboardSvc: dashboardSvc,
		repo:         repo,
	}
}

type tabRequest struct {
	Tab string `json:"tab"`
}

type pointRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type zoomRequest struct {
	Delta int `json:"delta"`
}

type searchRequest struct {
	Query string `json:"query"`
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	database := "ok"
	if h.repo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := h.repo.Health(ctx); err != nil {
			log.Printf("[http] database health check failed: %v", err)
			database = "unavailable"
		}
	}

	return c.JSON(fiber.Map{
		"status":   "ok",
		"service":  "roadwatch-console",
		"version":  "1.0.0",
		"database": database,
		"views":    h.views.Len(),
	})
}

// GetDashboard returns the report overview
func (h *Handler) GetDashboard(c *fiber.Ctx) error {
	data, err := h.dashboardSvc.GetDashboardData(c.Context())
	if err != nil {
		return fail(err, "Failed to fetch dashboard data")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

// GetRecentQueries returns the latest location queries of all views
func (h *Handler) GetRecentQueries(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 200 {
		limit = 20
	}

	data, err := h.repo.RecentQueries(c.Context(), limit)
	if err != nil {
		log.Printf("[http] recent queries failed: %v", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch query history")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
		"count":   len(data),
	})
}

// CreateView opens a new predictions view
func (h *Handler) CreateView(c *fiber.Ctx) error {
	v := h.views.Create()
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"id": v.ID.String()},
	})
}

// ReleaseView closes a view and its map
func (h *Handler) ReleaseView(c *fiber.Ctx) error {
	if err := h.views.Release(c.Params("id")); err != nil {
		return fail(err, "")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetView returns the display state of a view
func (h *Handler) GetView(c *fiber.Ctx) error {
	v, err := h.view(c)
	if err != nil {
		return err
	}
	return snapshot(c, v)
}

// GetMap returns the bound map as GeoJSON
func (h *Handler) GetMap(c *fiber.Ctx) error {
	v, err := h.view(c)
	if err != nil {
		return err
	}
	state, ok := v.MapState()
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "The map is not loaded")
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    state,
	})
}

// ActivateTab switches the panel of a view
func (h *Handler) ActivateTab(c *fiber.Ctx) error {
	v, err := h.view(c)
	if err != nil {
		return err
	}

	var req tabRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	tab, err := service.ParseTab(req.Tab)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if err := v.ActivateTab(c.Context(), tab); err != nil {
		return fail(err, "Failed to switch tab")
	}
	return snapshot(c, v)
}

// SetLocation changes the location query of a view
func (h *Handler) SetLocation(c *fiber.Ctx) error {
	v, err := h.view(c)
	if err != nil {
		return err
	}

	var req service.LocationUpdate
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	q, err := v.SetLocation(req)
	if errors.Is(err, domain.ErrViewNotFound) {
		return fail(err, "")
	}
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    q,
	})
}

// ClickMap forwards a click on the map of a view
func (h *Handler) ClickMap(c *fiber.Ctx) error {
	v, err := h.view(c)
	if err != nil {
		return err
	}

	var req pointRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if !domain.ValidLatLon(req.Latitude, req.Longitude) {
		return fiber.NewError(fiber.StatusBadRequest, "Coordinates out of range")
	}

	if !v.Click(req.Latitude, req.Longitude) {
		return fiber.NewError(fiber.StatusConflict, "The map is not loaded")
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    v.Query(),
	})
}

// ZoomMap changes the zoom level of a view
func (h *Handler) ZoomMap(c *fiber.Ctx) error {
	v, err := h.view(c)
	if err != nil {
		return err
	}

	var req zoomRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"zoom": v.Zoom(req.Delta)},
	})
}

// ToggleStyle switches the base tiles of a view
func (h *Handler) ToggleStyle(c *fiber.Ctx) error {
	v, err := h.view(c)
	if err != nil {
		return err
	}

	style, applied := v.ToggleStyle()
	return c.JSON(fiber.Map{
		"success": applied,
		"data":    fiber.Map{"style": style},
	})
}

// DetectLocation moves a view to the device position
func (h *Handler) DetectLocation(c *fiber.Ctx) error {
	v, err := h.view(c)
	if err != nil {
		return err
	}

	res := v.DetectLocation(c.Context())
	return c.JSON(fiber.Map{
		"success": res.Status == service.LocationOK,
		"data":    res,
	})
}

// SearchAddress moves a view to a geocoded address
func (h *Handler) SearchAddress(c *fiber.Ctx) error {
	v, err := h.view(c)
	if err != nil {
		return err
	}

	var req searchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	res := v.SearchAddress(c.Context(), req.Query)
	return c.JSON(fiber.Map{
		"success": res.Status == service.AddressFound,
		"data":    res,
	})
}

// FetchIncidents reloads the incidents of a view
func (h *Handler) FetchIncidents(c *fiber.Ctx) error {
	v, err := h.view(c)
	if err != nil {
		return err
	}
	if err := v.FetchIncidents(c.Context()); err != nil {
		return fail(err, "Failed to fetch incidents")
	}
	return snapshot(c, v)
}

// Predict fetches incident predictions for a view
func (h *Handler) Predict(c *fiber.Ctx) error {
	v, err := h.view(c)
	if err != nil {
		return err
	}
	if err := v.Predict(c.Context()); err != nil {
		return fail(err, "Failed to predict incidents")
	}
	return snapshot(c, v)
}

// PeakTimes fetches peak hours and days for a view
func (h *Handler) PeakTimes(c *fiber.Ctx) error {
	v, err := h.view(c)
	if err != nil {
		return err
	}
	if err := v.PeakTimes(c.Context()); err != nil {
		return fail(err, "Failed to fetch peak times")
	}
	return snapshot(c, v)
}

// GetLibraryScript serves the map library script loaded into a view
func (h *Handler) GetLibraryScript(c *fiber.Ctx) error {
	v, err := h.view(c)
	if err != nil {
		return err
	}
	res, ok := v.LibraryScript()
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "The map library is not loaded")
	}
	c.Type("js")
	return c.Send(res.Body)
}

// GetLibraryStylesheet serves the map library stylesheet loaded into a view
func (h *Handler) GetLibraryStylesheet(c *fiber.Ctx) error {
	v, err := h.view(c)
	if err != nil {
		return err
	}
	res, ok := v.LibraryStylesheet()
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "The map library is not loaded")
	}
	c.Type("css")
	return c.Send(res.Body)
}

func (h *Handler) view(c *fiber.Ctx) (*service.PredictionsView, error) {
	v, err := h.views.Get(c.Params("id"))
	if err != nil {
		return nil, fail(err, "")
	}
	return v, nil
}

func snapshot(c *fiber.Ctx, v *service.PredictionsView) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    v.Snapshot(),
	})
}

// fail maps service errors to HTTP errors carrying the user message
func fail(err error, fallback string) error {
	var fe *domain.FetchError
	var rl *domain.ResourceLoadError
	switch {
	case errors.Is(err, domain.ErrViewNotFound):
		return fiber.NewError(fiber.StatusNotFound, "View not found")
	case errors.Is(err, domain.ErrSessionExpired):
		return fiber.NewError(fiber.StatusUnauthorized, domain.UserMessage(err, fallback))
	case errors.As(err, &fe):
		return fiber.NewError(fiber.StatusBadGateway, domain.UserMessage(err, fallback))
	case errors.As(err, &rl):
		return fiber.NewError(fiber.StatusServiceUnavailable, domain.UserMessage(err, fallback))
	default:
		log.Printf("[http] unexpected error: %v", err)
		if fallback == "" {
			fallback = "Internal Server Error"
		}
		return fiber.NewError(fiber.StatusInternalServerError, fallback)
	}
}
