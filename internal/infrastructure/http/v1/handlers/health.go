package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"stockledger/internal/infrastructure/storage/postgres"
)

// Pinger is a dependency checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Database is the storage client as seen by the probes.
type Database interface {
	Pinger
	Stats() postgres.PoolStats
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	db      Database
	checks  map[string]Pinger
	version string
}

// NewHealthHandler creates a new health handler. extra holds optional
// dependencies such as Redis; nil entries are skipped.
func NewHealthHandler(db Database, version string, extra map[string]Pinger) *HealthHandler {
	checks := map[string]Pinger{"database": db}
	for name, p := range extra {
		if p != nil {
			checks[name] = p
		}
	}
	return &HealthHandler{db: db, checks: checks, version: version}
}

// Live handles liveness probe (is the process alive?).
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready handles readiness probe (is the service ready to accept traffic?).
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, p := range h.checks {
		if err := p.Ping(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = "unhealthy: " + err.Error()
			continue
		}
		results[name] = "healthy"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "error"
	}
	c.JSON(status, gin.H{"status": overall, "checks": results})
}

// Info returns application information.
// GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"app":      "stockledger",
		"version":  h.version,
		"database": h.db.Stats(),
	})
}
