package orders

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ksred/tradeshield-api/internal/auth"
	"github.com/ksred/tradeshield-api/internal/types"
	"github.com/ksred/tradeshield-api/pkg/response"
)

// GinHandlers contains HTTP handlers for the order endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// ownerFromContext pulls the authenticated owner address set by the JWT
// middleware
func ownerFromContext(c *gin.Context) (string, bool) {
	claims, exists := c.Get("claims")
	if !exists {
		response.Unauthorized(c, "Missing authentication claims")
		return "", false
	}
	owner := auth.GetOwnerAddress(claims)
	if owner == "" {
		response.Unauthorized(c, "Invalid owner address in token")
		return "", false
	}
	return owner, true
}

func orderIDParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("order_id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid order id")
		return 0, false
	}
	return id, true
}

// CreateSpotOrderHandler handles POST requests to create spot orders
func (h *GinHandlers) CreateSpotOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := ownerFromContext(c)
		if !ok {
			return
		}

		var req types.CreateSpotOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		order, err := h.service.CreateSpotOrder(owner, req)
		response.Handle(c, order, err)
	}
}

// CreatePerpetualOrderHandler handles POST requests to create perpetual
// orders
func (h *GinHandlers) CreatePerpetualOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := ownerFromContext(c)
		if !ok {
			return
		}

		var req types.CreatePerpetualOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		order, err := h.service.CreatePerpetualOrder(owner, req)
		response.Handle(c, order, err)
	}
}

// CancelSpotOrdersHandler handles POST requests to cancel pending spot
// orders by id and/or type
func (h *GinHandlers) CancelSpotOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := ownerFromContext(c)
		if !ok {
			return
		}

		var req types.CancelOrdersRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		canceled, err := h.service.CancelSpotOrders(owner, req)
		response.Handle(c, canceled, err)
	}
}

// CancelPerpetualOrdersHandler handles POST requests to cancel pending
// perpetual orders by id and/or type
func (h *GinHandlers) CancelPerpetualOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := ownerFromContext(c)
		if !ok {
			return
		}

		var req types.CancelOrdersRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		canceled, err := h.service.CancelPerpetualOrders(owner, req)
		response.Handle(c, canceled, err)
	}
}

// GetSpotOrderHandler handles GET requests for a single spot order
func (h *GinHandlers) GetSpotOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := ownerFromContext(c)
		if !ok {
			return
		}
		orderID, ok := orderIDParam(c)
		if !ok {
			return
		}

		order, err := h.service.GetSpotOrder(owner, orderID)
		response.Handle(c, order, err)
	}
}

// GetPerpetualOrderHandler handles GET requests for a single perpetual
// order
func (h *GinHandlers) GetPerpetualOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := ownerFromContext(c)
		if !ok {
			return
		}
		orderID, ok := orderIDParam(c)
		if !ok {
			return
		}

		order, err := h.service.GetPerpetualOrder(owner, orderID)
		response.Handle(c, order, err)
	}
}

// ListSpotOrdersHandler handles GET requests to list the caller's spot
// orders with status/type filters and pagination
func (h *GinHandlers) ListSpotOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := ownerFromContext(c)
		if !ok {
			return
		}

		var filter types.OrderFilter
		if err := c.ShouldBindQuery(&filter); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		list, err := h.service.ListSpotOrders(owner, filter)
		response.Handle(c, list, err)
	}
}

// ListPerpetualOrdersHandler handles GET requests to list the caller's
// perpetual orders
func (h *GinHandlers) ListPerpetualOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := ownerFromContext(c)
		if !ok {
			return
		}

		var filter types.OrderFilter
		if err := c.ShouldBindQuery(&filter); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		list, err := h.service.ListPerpetualOrders(owner, filter)
		response.Handle(c, list, err)
	}
}
