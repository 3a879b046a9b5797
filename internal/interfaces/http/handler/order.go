package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	apporder "github.com/beataims/backend/internal/application/order"
)

// OrderHandler serves order submission.
type OrderHandler struct {
	BaseHandler
	fulfillment *apporder.FulfillmentService
	statuses    OrderStatusSink
}

// OrderStatusSink announces order lifecycle transitions to live subscribers.
type OrderStatusSink interface {
	PublishOrderStatus(orderNumber, status string)
}

// NewOrderHandler creates a new OrderHandler. The status sink may be nil.
func NewOrderHandler(fulfillment *apporder.FulfillmentService, statuses OrderStatusSink) *OrderHandler {
	return &OrderHandler{fulfillment: fulfillment, statuses: statuses}
}

// RegisterRoutes registers order routes on the API group.
func (h *OrderHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/orders", h.Create)
}

// Create places an order. The whole order commits or nothing does.
func (h *OrderHandler) Create(c *gin.Context) {
	var req apporder.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	receipt, err := h.fulfillment.PlaceOrder(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if h.statuses != nil {
		h.statuses.PublishOrderStatus(strconv.FormatUint(uint64(receipt.OrderID), 10), "completed")
	}
	h.Created(c, receipt)
}
