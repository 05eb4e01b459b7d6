package controllers

import (
	"net/http"
	"time"

	"license-service/config"

	"github.com/gin-gonic/gin"
)

const Version = "1.0.0"

// HealthController reports configuration presence, not live connectivity.
type HealthController struct {
	services    config.ServiceStatus
	environment string
	now         func() time.Time
}

func NewHealthController(services config.ServiceStatus, environment string) *HealthController {
	return &HealthController{services: services, environment: environment, now: time.Now}
}

// Health handles GET /health
func (hc *HealthController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"timestamp":   hc.now().UTC().Format(time.RFC3339),
		"version":     Version,
		"environment": hc.environment,
		"services":    hc.services,
	})
}
