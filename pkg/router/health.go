package router

import (
	"os"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// setupHealthRoutes registers health check endpoints
func (r *Router) setupHealthRoutes() {
	healthHandler := func(c *gin.Context) {
		dbStatus := "ok"
		if err := r.Container.DB.Exec("SELECT 1").Error; err != nil {
			dbStatus = err.Error()
			r.Logger.Error("Database health check failed", "error", err)
		}

		redisStatus := "ok"
		if err := r.Container.SessionPersister.Ping(c.Request.Context()); err != nil {
			// Selections fall back to memory, so degraded rather than down
			redisStatus = err.Error()
			r.Logger.Warn("Redis health check failed", "error", err)
		}

		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		c.JSON(200, gin.H{
			"status":    "ok",
			"version":   os.Getenv("APP_VERSION"),
			"timestamp": time.Now().Format(time.RFC3339),
			"components": gin.H{
				"database": dbStatus,
				"redis":    redisStatus,
				"bridge": gin.H{
					"circuit": r.Container.Bridge.BreakerState(),
				},
			},
			"memory": gin.H{
				"alloc_mb":  memStats.Alloc / 1024 / 1024,
				"sys_mb":    memStats.Sys / 1024 / 1024,
				"gc_cycles": memStats.NumGC,
			},
		})
	}

	r.Engine.GET("/health", healthHandler)
	r.Engine.GET("/api/health", healthHandler)
}
