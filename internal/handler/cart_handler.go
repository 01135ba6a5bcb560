package handler

import (
	"net/http"

	"slippers/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CartHandler struct {
	svc *service.CartService
	log *zap.Logger
}

func NewCartHandler(svc *service.CartService, log *zap.Logger) *CartHandler {
	return &CartHandler{svc: svc, log: log}
}

type addCartItemRequest struct {
	SlipperID uint `json:"slipper_id" binding:"required"`
	Quantity  *int `json:"quantity"`
}

type updateCartItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

// Get returns the current user's cart. GET /cart
func (h *CartHandler) Get(c *gin.Context) {
	cart, err := h.svc.Get(c.Request.Context(), callerFrom(c))
	h.respond(c, cart, err)
}

// Total returns only the cart totals. GET /cart/total
func (h *CartHandler) Total(c *gin.Context) {
	t, err := h.svc.Totals(c.Request.Context(), callerFrom(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// AddItem adds a slipper to the cart; quantity defaults to 1. POST /cart/items
func (h *CartHandler) AddItem(c *gin.Context) {
	var req addCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	cart, err := h.svc.AddItem(c.Request.Context(), callerFrom(c), req.SlipperID, qty)
	h.respond(c, cart, err)
}

// UpdateItem sets a line's quantity; 0 removes the line. PUT /cart/items/:id
func (h *CartHandler) UpdateItem(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req updateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	cart, err := h.svc.UpdateItem(c.Request.Context(), callerFrom(c), id, *req.Quantity)
	h.respond(c, cart, err)
}

func (h *CartHandler) RemoveItem(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	cart, err := h.svc.RemoveItem(c.Request.Context(), callerFrom(c), id)
	h.respond(c, cart, err)
}

func (h *CartHandler) Clear(c *gin.Context) {
	cart, err := h.svc.Clear(c.Request.Context(), callerFrom(c))
	h.respond(c, cart, err)
}

func (h *CartHandler) respond(c *gin.Context, cart *service.Cart, err error) {
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}
