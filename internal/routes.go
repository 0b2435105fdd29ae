package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	"serppulse/internal/config"
	"serppulse/internal/http"
)

// apiCORSConfig is the CORS configuration shared by the report endpoints so
// dashboards hosted elsewhere can read them.
var apiCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "POST,GET,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Authorization",
}

// MountAppRoutes mounts all application routes using cartridge's route API
func MountAppRoutes(srv *cartridge.Server) {
	cfg := config.GetConfig()

	// Rate limiting only bites in production; in development and test it
	// would interfere with exercising the API.
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	apiRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(60),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	apiConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		CustomMiddleware: []fiber.Handler{apiRateLimiter},
		CORSConfig:       apiCORSConfig,
	}

	// Ingest writes are heavier; keep them on a stricter budget.
	ingestConfig := &cartridge.RouteConfig{
		EnableCORS: true,
		CustomMiddleware: []fiber.Handler{conditionalRateLimiter(cartridgemiddleware.RateLimiter(
			cartridgemiddleware.WithMax(20),
			cartridgemiddleware.WithDuration(time.Minute),
		))},
		CORSConfig: apiCORSConfig,
	}

	// Health check endpoint
	srv.Get("/_health", http.HealthIndexAction)
	srv.Head("/_health", http.HealthIndexAction)

	// === REPORT API ROUTES ===
	srv.Get("/api/v1/positions", http.PositionsIndexAction, apiConfig)
	srv.Get("/api/v1/positions/weekly", http.WeeklyPositionsAction, apiConfig)
	srv.Get("/api/v1/ctr", http.CTRAnalysisAction, apiConfig)
	srv.Get("/api/v1/trend", http.TrendAnalysisAction, apiConfig)

	// === INGEST API ROUTES ===
	srv.Post("/api/v1/metrics", http.MetricsCreateAction, ingestConfig)
}
