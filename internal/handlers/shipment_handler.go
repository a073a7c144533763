package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"shipments-service/internal/apperrors"
	"shipments-service/internal/models"
	"shipments-service/internal/services"
)

// ShipmentHandler handles HTTP requests for shipment operations
type ShipmentHandler struct {
	shipmentService services.ShipmentService
	syncService     services.SyncService
	syncBatchSize   int
}

// NewShipmentHandler creates a new shipment handler
func NewShipmentHandler(shipmentService services.ShipmentService, syncService services.SyncService, syncBatchSize int) *ShipmentHandler {
	return &ShipmentHandler{
		shipmentService: shipmentService,
		syncService:     syncService,
		syncBatchSize:   syncBatchSize,
	}
}

// RegisterRoutes wires all shipment routes onto the router group.
func (h *ShipmentHandler) RegisterRoutes(api *gin.RouterGroup, adminOnly gin.HandlerFunc) {
	orders := api.Group("/orders/:orderId/shipment")
	{
		orders.POST("", h.CreateShipment)
		orders.GET("", h.GetShipment)
		orders.POST("/awb", h.AssignAWB)
		orders.POST("/label", h.GenerateLabel)
		orders.POST("/cancel", h.CancelShipment)
		orders.POST("/track", h.TrackShipment)
		orders.POST("/sync", h.SyncShipment)
	}

	admin := api.Group("/shipments", adminOnly)
	{
		admin.GET("", h.ListShipments)
		admin.GET("/awb/:awb", h.GetByAWB)
		admin.POST("/sync", h.SyncBatch)
	}
}

// CreateShipment handles POST /api/v1/orders/:orderId/shipment
func (h *ShipmentHandler) CreateShipment(c *gin.Context) {
	orderID, ok := parseOrderID(c)
	if !ok {
		return
	}

	shipment, err := h.shipmentService.Create(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err, "Failed to create shipment")
		return
	}

	c.JSON(http.StatusCreated, models.SuccessResponse{
		Success: true,
		Data:    shipment,
		Message: stringPointer("Shipment created successfully"),
	})
}

// GetShipment handles GET /api/v1/orders/:orderId/shipment
func (h *ShipmentHandler) GetShipment(c *gin.Context) {
	orderID, ok := parseOrderID(c)
	if !ok {
		return
	}

	shipment, err := h.shipmentService.GetByOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err, "Failed to load shipment")
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    shipment,
	})
}

// AssignAWB handles POST /api/v1/orders/:orderId/shipment/awb
func (h *ShipmentHandler) AssignAWB(c *gin.Context) {
	orderID, ok := parseOrderID(c)
	if !ok {
		return
	}

	// Body is optional; an empty body means no courier preselection.
	var request models.AssignAWBRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "Invalid request body",
				Message: err.Error(),
			})
			return
		}
	}

	shipment, err := h.shipmentService.AssignAWB(c.Request.Context(), orderID, request.CourierID)
	if err != nil {
		respondError(c, err, "Failed to assign AWB")
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    shipment,
		Message: stringPointer("AWB assigned successfully"),
	})
}

// GenerateLabel handles POST /api/v1/orders/:orderId/shipment/label
func (h *ShipmentHandler) GenerateLabel(c *gin.Context) {
	orderID, ok := parseOrderID(c)
	if !ok {
		return
	}

	shipment, err := h.shipmentService.GenerateLabel(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err, "Failed to generate label")
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    shipment,
		Message: stringPointer("Label generated successfully"),
	})
}

// CancelShipment handles POST /api/v1/orders/:orderId/shipment/cancel
func (h *ShipmentHandler) CancelShipment(c *gin.Context) {
	orderID, ok := parseOrderID(c)
	if !ok {
		return
	}

	shipment, err := h.shipmentService.Cancel(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err, "Failed to cancel shipment")
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    shipment,
		Message: stringPointer("Shipment cancelled successfully"),
	})
}

// TrackShipment handles POST /api/v1/orders/:orderId/shipment/track
func (h *ShipmentHandler) TrackShipment(c *gin.Context) {
	orderID, ok := parseOrderID(c)
	if !ok {
		return
	}

	shipment, err := h.shipmentService.Track(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err, "Failed to refresh tracking")
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    shipment,
	})
}

// SyncShipment handles POST /api/v1/orders/:orderId/shipment/sync
func (h *ShipmentHandler) SyncShipment(c *gin.Context) {
	orderID, ok := parseOrderID(c)
	if !ok {
		return
	}

	shipment, err := h.syncService.SyncShipment(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err, "Failed to sync shipment")
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    shipment,
		Message: stringPointer("Shipment synced successfully"),
	})
}

// ListShipments handles GET /api/v1/shipments
func (h *ShipmentHandler) ListShipments(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	shipments, total, err := h.shipmentService.List(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err, "Failed to list shipments")
		return
	}

	c.JSON(http.StatusOK, models.ListShipmentsResponse{
		Success: true,
		Data:    shipments,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	})
}

// GetByAWB handles GET /api/v1/shipments/awb/:awb
func (h *ShipmentHandler) GetByAWB(c *gin.Context) {
	awb := c.Param("awb")

	shipment, err := h.shipmentService.GetByAWB(c.Request.Context(), awb)
	if err != nil {
		respondError(c, err, "Failed to load shipment")
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    shipment,
	})
}

// SyncBatch handles POST /api/v1/shipments/sync
func (h *ShipmentHandler) SyncBatch(c *gin.Context) {
	limit := h.syncBatchSize
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	result, err := h.syncService.SyncBatch(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err, "Failed to run batch sync")
		return
	}

	// Partial success is still a 200; per-item outcomes are in the body.
	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    result,
	})
}

// parseOrderID validates the :orderId path parameter. Writes the 400
// response itself so handlers can early-return.
func parseOrderID(c *gin.Context) (uuid.UUID, bool) {
	orderID, err := uuid.Parse(c.Param("orderId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid order ID",
			Message: "Order ID must be a valid UUID",
		})
		return uuid.Nil, false
	}
	return orderID, true
}

// respondError maps a classified service error onto its HTTP status. Carrier
// diagnostics are only exposed to admin callers; customers get the generic
// message.
func respondError(c *gin.Context, err error, generic string) {
	status := apperrors.HTTPStatus(err)

	message := generic
	if isAdmin(c) || apperrors.KindOf(err) != apperrors.KindCarrier {
		message = err.Error()
	}

	c.JSON(status, models.ErrorResponse{
		Error:   generic,
		Message: message,
	})
}

func isAdmin(c *gin.Context) bool {
	return c.GetString("user_role") == "admin"
}

func stringPointer(s string) *string {
	return &s
}
