package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Amdreaith/elearning-api/internal/service"
	"github.com/Amdreaith/elearning-api/pkg/response"
)

// SystemHandler serves health, readiness and metrics endpoints.
type SystemHandler struct {
	db      *mongo.Database
	metrics *service.MetricsService
	started time.Time
}

// NewSystemHandler constructs SystemHandler.
func NewSystemHandler(db *mongo.Database, metrics *service.MetricsService) *SystemHandler {
	return &SystemHandler{db: db, metrics: metrics, started: time.Now()}
}

// Health godoc
// @Summary Liveness probe
// @Tags System
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	response.JSON(c, http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

// Ready godoc
// @Summary Readiness probe, verifies database connectivity
// @Tags System
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /ready [get]
func (h *SystemHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Client().Ping(ctx, nil); err != nil {
		c.JSON(http.StatusServiceUnavailable, response.Envelope{Error: "database unavailable"})
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"status": "ready"})
}

// NotFound answers any unmatched route.
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, response.Envelope{
		Error: fmt.Sprintf("Cannot %s %s", c.Request.Method, c.Request.URL.Path),
	})
}

// Metrics exposes the Prometheus registry.
func (h *SystemHandler) Metrics(c *gin.Context) {
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Welcome godoc
// @Summary API landing payload
// @Tags System
// @Produce json
// @Success 200 {object} response.Envelope
// @Router / [get]
func (h *SystemHandler) Welcome(c *gin.Context) {
	response.JSON(c, http.StatusOK, gin.H{
		"message": "Welcome to the E-Learning Platform API",
		"endpoints": gin.H{
			"students":    "/api/v1/students",
			"courses":     "/api/v1/courses",
			"enrollments": "/api/v1/enrollments",
			"health":      "/health",
		},
	})
}
