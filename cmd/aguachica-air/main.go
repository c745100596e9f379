package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/jsierrab/aguachica-air/internal/airquality"
	httpapi "github.com/jsierrab/aguachica-air/internal/api/http"
	"github.com/jsierrab/aguachica-air/internal/config"
	"github.com/jsierrab/aguachica-air/internal/openweather"
	"github.com/jsierrab/aguachica-air/internal/scheduler"
	"github.com/jsierrab/aguachica-air/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: no .env file found: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.RequireAPIKey(); err != nil {
		log.Fatalf("failed to start: %v", err)
	}

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("failed to create data directory: %v", err)
		}
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	// Shared HTTP client for outbound API calls.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	owClient := openweather.NewClient(httpClient, cfg.OpenWeatherAPIKey)
	cache := airquality.NewDayCache([]airquality.HourlyWeatherSource{
		openweather.NewTimemachineV3(httpClient, cfg.OpenWeatherAPIKey),
		openweather.NewTimemachineV25(httpClient, cfg.OpenWeatherAPIKey),
	})
	collector := airquality.NewCollector(cfg.Locations, owClient, owClient, cache, st, nil)

	mode := "serve"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	switch mode {
	case "backfill":
		runBackfill(collector)
	case "collect":
		successful, failed := collector.CollectAll(context.Background())
		log.Printf("collection finished: %d ok, %d failed", successful, failed)
	case "serve":
		serve(cfg, st, collector)
	default:
		log.Fatalf("unknown mode %q; use serve, collect, or backfill", mode)
	}
}

// runBackfill performs one five-day backfill pass over all locations and
// logs the aggregate result.
func runBackfill(collector *airquality.Collector) {
	results := collector.BackfillAll(context.Background())

	total := 0
	for _, r := range results {
		if r.Result.Success {
			total += r.Result.Saved
		} else {
			log.Printf("backfill failed for %s: %v", r.LocationID, r.Result.Err)
		}
	}
	log.Printf("backfill finished: %d rows saved across %d locations", total, len(results))
}

// serve runs the periodic collector alongside the HTTP API until a
// termination signal arrives.
func serve(cfg *config.AppConfig, st *store.Store, collector *airquality.Collector) {
	sched := scheduler.New(collector, cfg.CollectEvery)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "aguachica-air",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "aguachica-air",
		})
	})

	httpapi.RegisterRoutes(app, st)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
