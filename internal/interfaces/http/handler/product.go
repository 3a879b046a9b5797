package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	appinventory "github.com/beataims/backend/internal/application/inventory"
	"github.com/beataims/backend/internal/domain/inventory"
)

// ProductHandler serves the product catalog and stock maintenance endpoints.
type ProductHandler struct {
	BaseHandler
	stock *appinventory.StockService
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(stock *appinventory.StockService) *ProductHandler {
	return &ProductHandler{stock: stock}
}

// RegisterRoutes registers product routes on the API group.
func (h *ProductHandler) RegisterRoutes(rg *gin.RouterGroup) {
	products := rg.Group("/products")
	products.GET("", h.List)
	products.GET("/:id", h.Get)
	products.POST("", h.Create)
	products.POST("/:id/stockin", h.StockIn)
	products.POST("/:id/adjust", h.Adjust)
}

func productID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

// List returns all products, optionally filtered by process type.
func (h *ProductHandler) List(c *gin.Context) {
	var filter *inventory.ProcessType
	if raw := c.Query("process_type"); raw != "" {
		pt := inventory.ProcessType(raw)
		if !pt.IsValid() {
			h.BadRequest(c, "invalid process_type")
			return
		}
		filter = &pt
	}

	views, err := h.stock.ListProducts(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, views)
}

// Get returns one product with its derived availability status.
func (h *ProductHandler) Get(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		h.BadRequest(c, "invalid product id")
		return
	}

	view, err := h.stock.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// Create adds a product to the catalog.
func (h *ProductHandler) Create(c *gin.Context) {
	var req appinventory.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	view, err := h.stock.CreateProduct(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, view)
}

// StockIn records a replenishment for a product.
func (h *ProductHandler) StockIn(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		h.BadRequest(c, "invalid product id")
		return
	}

	var req appinventory.ReplenishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	view, err := h.stock.Replenish(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// Adjust sets a product's absolute quantity.
func (h *ProductHandler) Adjust(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		h.BadRequest(c, "invalid product id")
		return
	}

	var req appinventory.AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	view, err := h.stock.Adjust(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}
