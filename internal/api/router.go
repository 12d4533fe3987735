package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/marketpulse/scheduler/internal/logger"
)

const corsMaxAgeHours = 12

// NewRouter builds the gin engine serving the scheduler's REST surface
//. corsOrigins is read from CORS_ORIGINS; an empty list
// denies all cross-origin requests.
func NewRouter(jobs *JobsHandler, log logger.Interface, corsOrigins []string) *gin.Engine {
	if log == nil {
		log = logger.NewNop()
	}

	router := gin.New()
	router.Use(recoveryMiddleware(log))
	router.Use(loggerMiddleware(log))
	router.Use(corsMiddleware(corsOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/scheduler/jobs")
	v1.POST("", jobs.Create)
	v1.GET("", jobs.List)
	v1.GET("/:id", jobs.Get)
	v1.PUT("/:id", jobs.Update)
	v1.DELETE("/:id", jobs.Delete)
	v1.POST("/:id/pause", jobs.Pause)
	v1.POST("/:id/resume", jobs.Resume)
	v1.POST("/:id/trigger", jobs.Trigger)
	v1.GET("/:id/executions", jobs.ListExecutions)

	return router
}

func loggerMiddleware(log logger.Interface) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		log.Info("http request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

func recoveryMiddleware(log logger.Interface) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("api: panic recovered", "error", r, "path", c.Request.URL.Path)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}

// corsMiddleware denies all cross-origin requests when allowedOrigins is
// empty.
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && (allowed["*"] || allowed[origin]) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
			c.Writer.Header().Set("Access-Control-Max-Age", (corsMaxAgeHours * time.Hour).String())
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
