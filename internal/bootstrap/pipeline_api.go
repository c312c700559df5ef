package bootstrap

import (
	"strings"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"pipeline_server/adapter/in/http"
	"pipeline_server/config"
	"pipeline_server/infra/middleware"
	"pipeline_server/pkg/logger"
)

// NewAPI builds the Fiber app serving the pipeline API.
func NewAPI(cfg *config.Config, deps *Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),
		AppName:               "pipeline-api",

		ReadBufferSize:  16384,
		WriteBufferSize: 16384,

		// goccy/go-json for both directions
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		// Inbound emails with inline HTML bodies can get large.
		BodyLimit: 10 * 1024 * 1024,
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger())
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowOrigins,
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Request-ID",
	}))

	// Health check (no auth required)
	healthHandler := http.NewHealthHandler(deps.DB, deps.Redis, deps.MongoDB, deps.Index)
	healthHandler.Register(app)

	// API routes (service token auth)
	api := app.Group("/api/v1")
	api.Use(middleware.ServiceAuth(cfg.JWTSecret))

	http.NewProcessHandler(deps.Orchestrator, deps.Producer).Register(api)
	http.NewEmailHandler(deps.EmailStore, deps.DedupEngine, deps.Index).Register(api)
	http.NewLogHandler(deps.ProcessingLog).Register(api)
	http.NewAdminHandler(deps.Producer, deps.Index).Register(api)

	logger.Info("API server initialized")
	return app
}
