package handler

import (
	"net/http"
	"strconv"

	"slippers/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type OrderHandler struct {
	svc *service.OrderService
	log *zap.Logger
}

func NewOrderHandler(svc *service.OrderService, log *zap.Logger) *OrderHandler {
	return &OrderHandler{svc: svc, log: log}
}

type createOrderRequest struct {
	Items []service.OrderItemInput `json:"items" binding:"required"`
	Notes string                   `json:"notes"`
}

// Create places an order for the current user. POST /orders
func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	o, err := h.svc.Create(c.Request.Context(), callerFrom(c), req.Items, req.Notes)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

type fromCartRequest struct {
	Notes string `json:"notes"`
}

// CreateFromCart places an order from the current user's cart. Query:
// clear_cart=true empties the cart with the same commit. POST /orders/from-cart
func (h *OrderHandler) CreateFromCart(c *gin.Context) {
	var req fromCartRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}
	clearCart, _ := strconv.ParseBool(c.DefaultQuery("clear_cart", "false"))
	o, err := h.svc.CreateFromCart(c.Request.Context(), callerFrom(c), req.Notes, clearCart)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

// List returns orders. Query: status, finance=paid_refunded, user_id (admin), page, limit.
func (h *OrderHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	userID, _ := strconv.ParseUint(c.Query("user_id"), 10, 64)
	res, err := h.svc.List(c.Request.Context(), callerFrom(c), service.ListQuery{
		Status:  c.Query("status"),
		Finance: c.Query("finance"),
		UserID:  uint(userID),
		Page:    page,
		Limit:   limit,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	o, err := h.svc.Get(c.Request.Context(), callerFrom(c), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	o, err := h.svc.Cancel(c.Request.Context(), callerFrom(c), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// Payments lists the payment attempts of an order, newest first.
func (h *OrderHandler) Payments(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	list, err := h.svc.Payments(c.Request.Context(), callerFrom(c), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": list})
}
