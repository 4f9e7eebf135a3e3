package order

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"kitchen-sync/internal/httpx"
	"kitchen-sync/internal/logger"
	"kitchen-sync/internal/models"
	"kitchen-sync/internal/services/order/internal/validation"
)

// CallbackSecretHeader carries the shared secret on kitchen callbacks
const CallbackSecretHeader = "X-Callback-Secret"

// Handler handles HTTP requests for the ordering service
type Handler struct {
	coordinator    *Coordinator
	callbackSecret string
	logger         *logger.Logger
}

// NewHandler creates a new order handler. An empty secret accepts every callback.
func NewHandler(coordinator *Coordinator, callbackSecret string, log *logger.Logger) *Handler {
	return &Handler{
		coordinator:    coordinator,
		callbackSecret: callbackSecret,
		logger:         log,
	}
}

// Register mounts the public and internal routes on router
func (h *Handler) Register(router gin.IRouter) {
	orders := router.Group("/api/orders")
	{
		orders.POST("", h.PlaceOrder)
		orders.GET("/:id", h.GetOrder)
		orders.POST("/:id/cancel", h.CancelOrder)
	}

	internal := router.Group("/api/internal", h.requireCallbackSecret)
	{
		internal.POST("/orders/:orderId/kitchen-ready", h.KitchenReady)
		internal.POST("/kitchen-ready", h.KitchenReady)
		internal.PUT("/kitchen-orders/:kitchenOrderId/status", h.ForwardKitchenStatus)
	}
}

// PlaceOrder handles POST /api/orders
func (h *Handler) PlaceOrder(c *gin.Context) {
	requestID := httpx.RequestID(c)

	var req models.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("validation_failed", "Failed to parse request body", requestID, err, nil)
		httpx.WriteError(c, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	result, err := h.coordinator.PlaceOrder(c.Request.Context(), &req)
	if err != nil {
		h.writeServiceError(c, "order_place_failed", err)
		return
	}

	code := http.StatusCreated
	if result.Merged {
		code = http.StatusOK
	}
	c.JSON(code, result.Order)
}

// GetOrder handles GET /api/orders/:id
func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.coordinator.GetOrderDetails(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeServiceError(c, "order_get_failed", err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// CancelOrder handles POST /api/orders/:id/cancel
func (h *Handler) CancelOrder(c *gin.Context) {
	order, err := h.coordinator.CancelOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeServiceError(c, "order_cancel_failed", err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// KitchenReady receives the kitchen's ready callback. The order id comes from
// the path or, on the query-style route, from ?orderId=.
func (h *Handler) KitchenReady(c *gin.Context) {
	orderID := c.Param("orderId")
	if orderID == "" {
		orderID = c.Query("orderId")
	}
	if strings.TrimSpace(orderID) == "" {
		httpx.WriteError(c, http.StatusBadRequest, "orderId is required")
		return
	}

	order, err := h.coordinator.HandleKitchenCallback(c.Request.Context(), orderID, c.Query("kitchenOrderId"))
	if err != nil {
		h.writeServiceError(c, "kitchen_callback_failed", err)
		return
	}

	h.logger.Info("kitchen_callback_received", "Kitchen ready callback applied", httpx.RequestID(c), map[string]interface{}{
		"order_id":         order.ID,
		"kitchen_order_id": c.Query("kitchenOrderId"),
		"status":           string(order.Status),
	})
	c.JSON(http.StatusOK, order)
}

// ForwardKitchenStatus handles PUT /api/internal/kitchen-orders/:kitchenOrderId/status
func (h *Handler) ForwardKitchenStatus(c *gin.Context) {
	var req models.UpdateKitchenStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Status) == "" {
		httpx.WriteError(c, http.StatusBadRequest, "status is required")
		return
	}

	result, err := h.coordinator.ForwardKitchenStatus(c.Request.Context(), c.Param("kitchenOrderId"), req.Status)
	if err != nil {
		h.writeServiceError(c, "kitchen_status_forward_failed", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) requireCallbackSecret(c *gin.Context) {
	if h.callbackSecret == "" {
		c.Next()
		return
	}
	got := c.GetHeader(CallbackSecretHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.callbackSecret)) != 1 {
		h.logger.Warn("callback_unauthorized", "Rejected internal call with a bad secret", httpx.RequestID(c), map[string]interface{}{
			"path":        c.Request.URL.Path,
			"remote_addr": c.ClientIP(),
		})
		httpx.WriteError(c, http.StatusUnauthorized, "invalid callback secret")
		return
	}
	c.Next()
}

func (h *Handler) writeServiceError(c *gin.Context, action string, err error) {
	var vErr validation.ValidationError
	switch {
	case errors.As(err, &vErr):
		httpx.WriteError(c, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, ErrMenuItemNotFound):
		httpx.WriteError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrOrderNotFound), errors.Is(err, ErrKitchenOrderNotFound):
		httpx.WriteError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrOrderFinished), errors.Is(err, ErrKitchenRejected):
		httpx.WriteError(c, http.StatusConflict, err.Error())
	case errors.Is(err, ErrKitchenUnavailable):
		h.logger.Error(action, "Kitchen service call failed", httpx.RequestID(c), err, nil)
		httpx.WriteError(c, http.StatusBadGateway, "Kitchen service unavailable")
	default:
		h.logger.Error(action, "Order request failed", httpx.RequestID(c), err, map[string]interface{}{
			"path": c.Request.URL.Path,
		})
		httpx.WriteError(c, http.StatusInternalServerError, "Internal server error")
	}
}
