package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/beataims/backend/internal/infrastructure/pool"
)

// SystemHandler serves health and operational introspection endpoints.
type SystemHandler struct {
	BaseHandler
	pool *pool.Pool
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(p *pool.Pool) *SystemHandler {
	return &SystemHandler{pool: p}
}

// RegisterHealthRoute registers /health on the engine root, outside the API
// prefix, so load balancers can probe it unversioned.
func (h *SystemHandler) RegisterHealthRoute(engine *gin.Engine) {
	engine.GET("/health", h.Health)
}

// RegisterRoutes registers system routes on the API group.
func (h *SystemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/system/pool", h.PoolStats)
}

// Health reports liveness. A degraded pool still answers: the process is
// alive even when the database is not.
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// PoolStats exposes connection pool counters.
func (h *SystemHandler) PoolStats(c *gin.Context) {
	h.Success(c, h.pool.Stats())
}
