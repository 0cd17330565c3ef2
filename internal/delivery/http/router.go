package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/roadwatch/console/internal/service"
)

// SetupRoutes configures all HTTP routes
func SetupRoutes(app *fiber.App, views *service.ViewRegistry, dashboardSvc *service.DashboardService, repo service.DataRepository) {
	handler := NewHandler(views, dashboardSvc, repo)

	// Health check
	app.Get("/health", handler.HealthCheck)

	// Browser page and the map library it loads
	pages := app.Group("/views/:id")
	{
		pages.Get("/", handler.ViewPage)
		pages.Get("/assets/leaflet.js", handler.GetLibraryScript)
		pages.Get("/assets/leaflet.css", handler.GetLibraryStylesheet)
	}

	// API v1 routes
	api := app.Group("/api/v1")
	{
		api.Get("/dashboard", handler.GetDashboard)
		api.Get("/queries", handler.GetRecentQueries)

		api.Post("/views", handler.CreateView)
		api.Get("/views/:id", handler.GetView)
		api.Delete("/views/:id", handler.ReleaseView)

		// Map surface
		api.Get("/views/:id/map", handler.GetMap)
		api.Post("/views/:id/map/click", handler.ClickMap)
		api.Post("/views/:id/map/zoom", handler.ZoomMap)
		api.Post("/views/:id/map/style", handler.ToggleStyle)

		// Location and panels
		api.Post("/views/:id/tab", handler.ActivateTab)
		api.Put("/views/:id/location", handler.SetLocation)
		api.Post("/views/:id/detect", handler.DetectLocation)
		api.Post("/views/:id/search", handler.SearchAddress)
		api.Post("/views/:id/incidents", handler.FetchIncidents)
		api.Post("/views/:id/predictions", handler.Predict)
		api.Post("/views/:id/peak-times", handler.PeakTimes)
	}
}
