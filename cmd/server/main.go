package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roadwatch/console/internal/analytics"
	"github.com/roadwatch/console/internal/config"
	"github.com/roadwatch/console/internal/delivery/http"
	"github.com/roadwatch/console/internal/domain"
	"github.com/roadwatch/console/internal/locator"
	"github.com/roadwatch/console/internal/mapview"
	"github.com/roadwatch/console/internal/repository/postgres"
	"github.com/roadwatch/console/internal/service"
)

func main() {
	// Configuration
	cfg := config.Load()

	// Database connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var dataRepo service.DataRepository
	pool, err := connectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Printf("Warning: Could not connect to database: %v", err)
		log.Println("Running with in-memory storage only")
		dataRepo = postgres.NewMockRepository()
	} else {
		defer pool.Close()
		log.Println("Connected to PostgreSQL")
		pgRepo := postgres.NewPostgresRepository(pool)
		if err := pgRepo.Migrate(ctx); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		dataRepo = pgRepo
	}

	// Device position source
	var deviceLocator locator.DeviceLocator
	switch {
	case cfg.MQTTBroker != "":
		mqttLocator := locator.NewMQTTLocator(locator.MQTTConfig{
			Broker:   cfg.MQTTBroker,
			Topic:    cfg.MQTTTopic,
			ClientID: cfg.MQTTClientID,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
		})
		if err := mqttLocator.Connect(); err != nil {
			// Requests report the classified connection error
			log.Printf("Warning: MQTT connection failed: %v", err)
		}
		defer mqttLocator.Close()
		deviceLocator = mqttLocator
	case cfg.HasDevice:
		deviceLocator = locator.StaticLocator{Latitude: cfg.DeviceLatitude, Longitude: cfg.DeviceLongitude}
	}

	// Dependency Injection: Services
	center := domain.DefaultLocationQuery().WithPosition(cfg.DefaultLatitude, cfg.DefaultLongitude)
	reports := service.NewReportClient(cfg.ReportAPIURL, service.StaticToken(cfg.ReportAPIToken), cfg.RequestTimeout)
	geo := service.NewGeoResolver(deviceLocator, cfg.GeocoderURL, cfg.UserAgent, dataRepo)
	views := service.NewViewRegistry(reports, geo, dataRepo, service.ViewOptions{
		ScriptURL: cfg.LeafletScriptURL,
		StyleURL:  cfg.LeafletStyleURL,
		Fetcher:   mapview.NewCachingFetcher(mapview.NewHTTPFetcher(cfg.UserAgent)),
		FitDelay:  cfg.FitDelay,
		Location:  time.Local,
		Locale:    cfg.DayNameLocale,
		Center:    center,
	})
	dashboardSvc := service.NewDashboardService(reports, analytics.NewProjector(time.Local, cfg.DayNameLocale), center)

	// Fiber App
	app := fiber.New(fiber.Config{
		AppName:      "RoadWatch Console v1.0",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Routes
	http.SetupRoutes(app, views, dashboardSvc, dataRepo)

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s (%s)", cfg.Port, cfg.Env)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	views.Close()
	log.Println("Server exited gracefully")
}

func connectDB(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
