package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vend-service/vend_service/internal/domain/services/orders"
	"github.com/vend-service/vend_service/pkg/logger"
)

// OrderHandlers exposes the order table to the storefront front-end.
type OrderHandlers struct {
	orders *orders.Service
	logger *logger.Logger
}

// NewOrderHandlers creates a new order handlers instance
func NewOrderHandlers(orderService *orders.Service, log *logger.Logger) *OrderHandlers {
	return &OrderHandlers{
		orders: orderService,
		logger: log,
	}
}

type createOrderRequest struct {
	CustomerID string `json:"customer_id" binding:"required"`
	Quantity   int64  `json:"quantity" binding:"required"`
	ChatID     int64  `json:"chat_id" binding:"required"`
}

type orderResponse struct {
	ID             string `json:"id"`
	CustomerID     string `json:"customer_id"`
	Quantity       int64  `json:"quantity"`
	ExpectedAmount string `json:"expected_amount"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
}

// CreateOrder places a pending order, replacing the customer's prior one.
func (h *OrderHandlers) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "Invalid request body",
			"details":    err.Error(),
			"request_id": c.GetString("request_id"),
		})
		return
	}

	order, err := h.orders.CreateOrUpdate(req.CustomerID, req.Quantity, req.ChatID)
	if err != nil {
		if errors.Is(err, orders.ErrInvalidQuantity) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":      err.Error(),
				"request_id": c.GetString("request_id"),
			})
			return
		}
		h.logger.Error("Failed to create order", "customer_id", req.CustomerID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "Failed to create order",
			"request_id": c.GetString("request_id"),
		})
		return
	}

	c.JSON(http.StatusCreated, orderResponse{
		ID:             order.ID.String(),
		CustomerID:     order.CustomerID,
		Quantity:       order.Quantity,
		ExpectedAmount: order.ExpectedAmount.String(),
		Status:         string(order.Status),
		CreatedAt:      order.CreatedAt.Format(time.RFC3339),
	})
}

// GetOrder returns the customer's pending order.
func (h *OrderHandlers) GetOrder(c *gin.Context) {
	customerID := c.Param("customer_id")

	order, ok := h.orders.Get(customerID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error":      "No pending order for customer",
			"request_id": c.GetString("request_id"),
		})
		return
	}

	c.JSON(http.StatusOK, orderResponse{
		ID:             order.ID.String(),
		CustomerID:     order.CustomerID,
		Quantity:       order.Quantity,
		ExpectedAmount: order.ExpectedAmount.String(),
		Status:         string(order.Status),
		CreatedAt:      order.CreatedAt.Format(time.RFC3339),
	})
}
