package kitchen

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"kitchen-sync/internal/httpx"
	"kitchen-sync/internal/logger"
	"kitchen-sync/internal/models"
)

// Handler exposes the kitchen service over HTTP
type Handler struct {
	service *Service
	logger  *logger.Logger
}

// NewHandler creates a new kitchen handler
func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

// Register mounts the kitchen routes on router
func (h *Handler) Register(router gin.IRouter) {
	orders := router.Group("/api/kitchen/orders")
	{
		orders.POST("", h.CreateOrder)
		orders.GET("/by-order/:orderId", h.ListByOrder)
		orders.GET("/:id", h.GetOrder)
		orders.GET("/:id/history", h.History)
		orders.PUT("/:id/status", h.UpdateStatus)
		orders.POST("/:id/cancel", h.Cancel)
	}
}

// CreateOrder handles POST /api/kitchen/orders
func (h *Handler) CreateOrder(c *gin.Context) {
	var req models.CreateKitchenOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.WriteError(c, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	order, err := h.service.CreateOrder(c.Request.Context(), req.OrderID, req.ItemsJSON)
	if err != nil {
		h.writeServiceError(c, "kitchen_order_create_failed", err)
		return
	}
	h.writeOrder(c, http.StatusCreated, order)
}

// GetOrder handles GET /api/kitchen/orders/:id
func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeServiceError(c, "kitchen_order_get_failed", err)
		return
	}
	h.writeOrder(c, http.StatusOK, order)
}

// ListByOrder handles GET /api/kitchen/orders/by-order/:orderId
func (h *Handler) ListByOrder(c *gin.Context) {
	orders, err := h.service.ListBySourceOrder(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		h.writeServiceError(c, "kitchen_order_list_failed", err)
		return
	}

	response := make([]*models.KitchenOrderResponse, 0, len(orders))
	for _, order := range orders {
		dto, err := models.NewKitchenOrderResponse(order)
		if err != nil {
			h.writeServiceError(c, "kitchen_order_list_failed", err)
			return
		}
		response = append(response, dto)
	}
	c.JSON(http.StatusOK, response)
}

// History handles GET /api/kitchen/orders/:id/history
func (h *Handler) History(c *gin.Context) {
	history, err := h.service.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeServiceError(c, "kitchen_history_failed", err)
		return
	}
	if history == nil {
		history = []models.KitchenStatusLogEntry{}
	}
	c.JSON(http.StatusOK, history)
}

// UpdateStatus handles PUT /api/kitchen/orders/:id/status
func (h *Handler) UpdateStatus(c *gin.Context) {
	var req models.UpdateKitchenStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.WriteError(c, http.StatusBadRequest, "Invalid JSON format")
		return
	}
	status, err := models.ParseKitchenStatus(req.Status)
	if err != nil {
		httpx.WriteError(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		h.writeServiceError(c, "kitchen_status_update_failed", err)
		return
	}

	code := http.StatusOK
	if result.Outcome == OutcomeNotFound {
		code = http.StatusNotFound
	}
	response := models.KitchenStatusUpdateResponse{Outcome: string(result.Outcome)}
	if result.Order != nil {
		dto, err := models.NewKitchenOrderResponse(result.Order)
		if err != nil {
			h.writeServiceError(c, "kitchen_status_update_failed", err)
			return
		}
		response.Order = dto
	}
	c.JSON(code, response)
}

// Cancel handles POST /api/kitchen/orders/:id/cancel
func (h *Handler) Cancel(c *gin.Context) {
	order, err := h.service.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeServiceError(c, "kitchen_cancel_failed", err)
		return
	}
	h.writeOrder(c, http.StatusOK, order)
}

func (h *Handler) writeOrder(c *gin.Context, code int, order *models.KitchenOrder) {
	dto, err := models.NewKitchenOrderResponse(order)
	if err != nil {
		h.writeServiceError(c, "response_encoding_failed", err)
		return
	}
	c.JSON(code, dto)
}

func (h *Handler) writeServiceError(c *gin.Context, action string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.WriteError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidRequest):
		httpx.WriteError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrAlreadyTerminal), errors.Is(err, ErrStatusConflict):
		httpx.WriteError(c, http.StatusConflict, err.Error())
	default:
		h.logger.Error(action, "Kitchen request failed", httpx.RequestID(c), err, map[string]interface{}{
			"path": c.Request.URL.Path,
		})
		httpx.WriteError(c, http.StatusInternalServerError, "Internal server error")
	}
}
