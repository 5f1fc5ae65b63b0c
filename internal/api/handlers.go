package api

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"aqstn"
	"aqstn/internal/errors"
	"aqstn/internal/logger"
	"aqstn/internal/monitoring"
	"aqstn/internal/registry"
	"aqstn/internal/version"
)

// Response represents a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// Handlers contains all API handlers
type Handlers struct {
	Health *HealthHandler
	Node   *NodeHandler
}

// About is the body of GET /api/v1/about.
type About struct {
	Name        string `json:"name"`
	ShortName   string `json:"short_name"`
	Version     string `json:"version"`
	Author      string `json:"author"`
	Description string `json:"description"`
}

// Service states reported by /health.
const (
	ServiceOK          = "ok"
	ServiceError       = "error"
	ServiceUnavailable = "unavailable"
)

// HealthHandler reports liveness and the state of the registry backend.
type HealthHandler struct {
	store registry.Store
}

// NewHealthHandler creates a health handler. store may be nil.
func NewHealthHandler(store registry.Store) *HealthHandler {
	return &HealthHandler{store: store}
}

// Health godoc
// @Summary Node health
// @Tags System
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	registryHealth := ServiceOK
	switch checker, ok := h.store.(registry.HealthChecker); {
	case h.store == nil:
		registryHealth = ServiceUnavailable
	case ok:
		if err := checker.HealthCheck(c.Request.Context()); err != nil {
			registryHealth = ServiceError
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": aqstn.Version,
		"services": gin.H{
			"registry": registryHealth,
		},
	})
}

// getVersion godoc
// @Summary Build information
// @Tags System
// @Produce json
// @Success 200 {object} version.Info
// @Router /version [get]
func getVersion(c *gin.Context) {
	c.JSON(http.StatusOK, version.FromBuild())
}

// getAbout godoc
// @Summary Release metadata
// @Tags System
// @Produce json
// @Success 200 {object} About
// @Router /about [get]
func getAbout(c *gin.Context) {
	c.JSON(http.StatusOK, About{
		Name:        aqstn.Name,
		ShortName:   aqstn.ShortName,
		Version:     aqstn.Version,
		Author:      aqstn.Author,
		Description: aqstn.Description,
	})
}

// NodeHandler serves the node registry.
type NodeHandler struct {
	store   registry.Store
	metrics *monitoring.Metrics
	log     logger.Logger
}

// NewNodeHandler builds the registry handlers. store and metrics may be nil.
func NewNodeHandler(store registry.Store, metrics *monitoring.Metrics, log logger.Logger) *NodeHandler {
	return &NodeHandler{
		store:   store,
		metrics: metrics,
		log:     log,
	}
}

// ListNodes godoc
// @Summary List live nodes
// @Description Nodes ordered by name then id
// @Tags Nodes
// @Produce json
// @Success 200 {object} Response{data=[]registry.Node}
// @Failure 503 {object} errors.ErrorResponse
// @Router /nodes [get]
func (h *NodeHandler) ListNodes(c *gin.Context) {
	if h.store == nil {
		_ = c.Error(errRegistryDisabled())
		return
	}

	nodes, err := h.store.List(c.Request.Context())
	if err != nil {
		h.log.WithContext(c.Request.Context()).Warn("Failed to list nodes", "error", err)
		_ = c.Error(errors.NewAppError(errors.ErrCodeRegistryUnavailable, "Failed to list nodes", err))
		return
	}
	if h.metrics != nil {
		h.metrics.SetRegistryNodes(len(nodes))
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    nodes,
	})
}

// GetNode godoc
// @Summary Get one node
// @Tags Nodes
// @Produce json
// @Param id path string true "Node ID"
// @Success 200 {object} Response{data=registry.Node}
// @Failure 404 {object} errors.ErrorResponse
// @Failure 503 {object} errors.ErrorResponse
// @Router /nodes/{id} [get]
func (h *NodeHandler) GetNode(c *gin.Context) {
	if h.store == nil {
		_ = c.Error(errRegistryDisabled())
		return
	}

	id := c.Param("id")
	node, err := h.store.Get(c.Request.Context(), id)
	switch {
	case stderrors.Is(err, registry.ErrNodeNotFound):
		_ = c.Error(errors.NewAppError(errors.ErrCodeNotFound, "Node not found", err).WithContext("node_id", id))
		return
	case err != nil:
		h.log.WithContext(c.Request.Context()).Warn("Failed to get node", "node_id", id, "error", err)
		_ = c.Error(errors.NewAppError(errors.ErrCodeRegistryUnavailable, "Failed to get node", err))
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    node,
	})
}

func errRegistryDisabled() *errors.AppError {
	return errors.NewAppErrorWithDetails(errors.ErrCodeRegistryUnavailable, "Node registry unavailable", "registry is disabled on this node", nil)
}
