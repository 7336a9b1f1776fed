package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GET /api/healthz
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
