package delivery

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"adsync/internal/delivery/middleware"
	"adsync/internal/usecase"
	"adsync/pkg/logger"
)

// StatusServer exposes read-only run progress and prometheus metrics while
// a backfill is in flight.
type StatusServer struct {
	runID    string
	progress *usecase.Progress
	logger   *logger.Logger
}

func NewStatusServer(runID string, progress *usecase.Progress, logger *logger.Logger) *StatusServer {
	return &StatusServer{
		runID:    runID,
		progress: progress,
		logger:   logger,
	}
}

func (s *StatusServer) SetupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(s.logger))

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{"GET", "OPTIONS"}
	config.AllowHeaders = []string{"Content-Type", "X-Request-ID"}
	config.ExposeHeaders = []string{"X-Request-ID"}

	router.Use(cors.New(config))

	router.GET("/health", s.HealthCheck)
	router.GET("/status", s.GetStatus)

	// Prometheus metrics endpoint
	router.GET("/metrics", middleware.PrometheusHandler())

	return router
}

func (s *StatusServer) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *StatusServer) GetStatus(c *gin.Context) {
	completed := s.progress.Completed()
	total := s.progress.Total()

	percent := 0.0
	if total > 0 {
		percent = float64(completed) / float64(total) * 100
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":    s.runID,
		"completed": completed,
		"failed":    s.progress.Failed(),
		"total":     total,
		"percent":   percent,
		"elapsed":   time.Since(s.progress.Started()).String(),
	})
}

// Serve starts the status server in the background. Failures to bind are
// logged, not fatal: the run itself does not depend on the status surface.
func (s *StatusServer) Serve(addr string) {
	router := s.SetupRoutes()
	go func() {
		if err := router.Run(addr); err != nil {
			s.logger.WithError(err).Warn("Status server stopped")
		}
	}()
}
