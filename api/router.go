package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/shelfscrape/api/handler"
	"github.com/use-agent/shelfscrape/api/middleware"
	"github.com/use-agent/shelfscrape/cache"
	"github.com/use-agent/shelfscrape/config"
)

// Deps are the services the routes are wired to.
type Deps struct {
	Scraper   handler.Scraper
	Pool      handler.PoolReporter
	Cache     *cache.Cache
	Jobs      *handler.JobStore
	StartTime time.Time
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health stays outside auth so monitoring probes always work.
func NewRouter(cfg *config.Config, deps Deps) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	if deps.Jobs == nil {
		deps.Jobs = handler.NewJobStore(cfg.Jobs.Retention)
	}

	v1 := r.Group("/api/v1")

	v1.GET("/health", handler.Health(deps.Pool, deps.StartTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.POST("/scrape", handler.Scrape(deps.Scraper, deps.Cache))

	protected.POST("/jobs", handler.PostJob(deps.Scraper, deps.Jobs))
	protected.GET("/jobs/:id", handler.GetJob(deps.Jobs))
	protected.GET("/jobs/:id/download", handler.DownloadJob(deps.Jobs))

	return r
}
