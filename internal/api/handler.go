package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"cart-service/internal/currency"
	"cart-service/internal/models"
	"cart-service/internal/money"
	"cart-service/internal/redisclient"
	"cart-service/internal/service"
	"cart-service/internal/store"
	"cart-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	orderLockTTL     = 10 * time.Second
	guestViewLimit   = 30
	guestViewWindow  = time.Minute
	headerGuestToken = "X-Guest-Token"
	headerCustomerID = "X-Customer-ID"
	headerAdmin      = "X-Admin"
)

// Handler contains HTTP handlers
type Handler struct {
	cartService    *service.CartService
	accessControl  *service.GuestAccessControl
	paymentSummary *service.PaymentSummaryService
	products       *service.PurchasableClient
	checkoutOrch   *service.CheckoutOrchestrator
	redis          *redisclient.Client
	catalog        *currency.Catalog
}

// NewHandler creates a new HTTP handler
func NewHandler(
	cartService *service.CartService,
	accessControl *service.GuestAccessControl,
	paymentSummary *service.PaymentSummaryService,
	products *service.PurchasableClient,
	checkout *service.CheckoutOrchestrator,
	redis *redisclient.Client,
	catalog *currency.Catalog,
) *Handler {
	return &Handler{
		cartService:    cartService,
		accessControl:  accessControl,
		paymentSummary: paymentSummary,
		products:       products,
		checkoutOrch:   checkout,
		redis:          redis,
		catalog:        catalog,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/carts", h.createCart)
		v1.GET("/carts/:id", h.getCart)
		v1.PUT("/carts/:id/items", h.setItemQuantity)
		v1.POST("/carts/:id/items", h.addItemQuantity)
		v1.POST("/carts/:id/lock", h.lockCart)
		v1.POST("/carts/:id/unlock", h.unlockCart)
		v1.POST("/carts/:id/addons", h.attachAddOn)
		v1.PATCH("/carts/:id/addons/:addonID", h.updateAddOn)
		v1.DELETE("/carts/:id/addons/:addonID", h.detachAddOn)
		v1.POST("/carts/:id/checkout", h.checkout)
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.POST("/orders/:id/refund", h.refundOrder)
		v1.GET("/products/:sku", h.getProduct)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready only while Redis answers pings
func (h *Handler) readinessCheck(c *gin.Context) {
	if err := h.redis.GetClient().Ping(c.Request.Context()).Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func orderIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return 0, false
	}
	return id, true
}

// writeError maps domain errors onto HTTP statuses. Locked carts are a
// conflict the client can resolve by refreshing; availability failures are
// validation feedback; denied views are deliberately indistinguishable from
// missing orders.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrOrderLocked):
		c.JSON(http.StatusConflict, gin.H{"error": "Order is locked", "details": err.Error()})
	case errors.Is(err, service.ErrQuantityExceedsAvailable):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Quantity exceeds available stock", "details": err.Error()})
	case errors.Is(err, service.ErrEmptyCart):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Cart is empty"})
	case errors.Is(err, service.ErrNotRefundable):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Order is not refundable", "details": err.Error()})
	case errors.Is(err, currency.ErrUnsupportedCurrency):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported currency", "details": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error", "details": err.Error()})
	}
}

// withOrderLock serializes concurrent requests touching the same order. The
// cart's business lock is separate: this only guards against two requests
// interleaving their read-modify-write cycles.
func (h *Handler) withOrderLock(c *gin.Context, orderID int64, fn func()) {
	token := uuid.New().String()
	acquired, err := h.redis.AcquireOrderLock(c.Request.Context(), orderID, token, orderLockTTL)
	if err != nil {
		writeError(c, err)
		return
	}
	if !acquired {
		c.JSON(http.StatusConflict, gin.H{"error": "Order is being modified by another request"})
		return
	}
	defer func() {
		if err := h.redis.ReleaseOrderLock(c.Request.Context(), orderID, token); err != nil {
			util.GetLogger().Warn("Failed to release order lock")
		}
	}()

	fn()
}

type createCartRequest struct {
	CustomerID int64 `json:"customer_id"`
}

// createCart opens a new cart
func (h *Handler) createCart(c *gin.Context) {
	var req createCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	cart, err := h.cartService.CreateCart(c.Request.Context(), req.CustomerID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"order_id":    cart.ID,
		"guest_token": cart.GuestToken,
	})
}

// getCart returns the cart with computed totals
func (h *Handler) getCart(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	order, err := h.cartService.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		writeError(c, err)
		return
	}

	quote, err := h.cartService.QuoteOrder(c.Request.Context(), order)
	if err != nil {
		writeError(c, err)
		return
	}

	subTotal, err := h.catalog.FormatDecimal(quote.SubTotal)
	if err != nil {
		writeError(c, err)
		return
	}
	total, err := h.catalog.FormatDecimal(quote.Total)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order":     order,
		"sub_total": quote.SubTotal,
		"total":     quote.Total,
		"display": gin.H{
			"sub_total": subTotal,
			"total":     total,
			"currency":  quote.Total.Currency,
		},
	})
}

type itemRequest struct {
	PurchasableType string `json:"purchasable_type" binding:"required"`
	PurchasableID   int64  `json:"purchasable_id" binding:"required"`
	Quantity        int    `json:"quantity"`
}

// setItemQuantity sets the absolute quantity of a purchasable in the cart
func (h *Handler) setItemQuantity(c *gin.Context) {
	h.mutateItemQuantity(c, h.cartService.SetPurchasableQuantity)
}

// addItemQuantity adds to the existing quantity of a purchasable
func (h *Handler) addItemQuantity(c *gin.Context) {
	h.mutateItemQuantity(c, h.cartService.AddPurchasableQuantity)
}

func (h *Handler) mutateItemQuantity(c *gin.Context, mutate func(ctx context.Context, orderID int64, ref models.PurchasableRef, qty int) error) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	ref := models.PurchasableRef{Type: req.PurchasableType, ID: req.PurchasableID}

	h.withOrderLock(c, orderID, func() {
		if err := mutate(c.Request.Context(), orderID, ref, req.Quantity); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"order_id": orderID})
	})
}

// lockCart takes the business lock for a checkout attempt
func (h *Handler) lockCart(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	h.withOrderLock(c, orderID, func() {
		if err := h.cartService.Lock(c.Request.Context(), orderID); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"order_id": orderID, "locked": true})
	})
}

// unlockCart releases the business lock after an abandoned checkout
func (h *Handler) unlockCart(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	h.withOrderLock(c, orderID, func() {
		if err := h.cartService.Unlock(c.Request.Context(), orderID); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"order_id": orderID, "locked": false})
	})
}

type addOnRequest struct {
	OrderItemID int64  `json:"order_item_id"`
	Type        string `json:"type" binding:"required"`
	Title       string `json:"title" binding:"required"`
	Priority    int    `json:"priority"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Active      *bool  `json:"active"`
}

// attachAddOn attaches an add-on to the cart or one of its items
func (h *Handler) attachAddOn(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	var req addOnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	addOn := &models.AddOn{
		OrderItemID: req.OrderItemID,
		Type:        req.Type,
		Title:       req.Title,
		Priority:    req.Priority,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Active:      active,
	}

	h.withOrderLock(c, orderID, func() {
		if err := h.cartService.AttachAddOn(c.Request.Context(), orderID, addOn); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"addon_id": addOn.ID})
	})
}

type updateAddOnRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// updateAddOn toggles an add-on's active flag
func (h *Handler) updateAddOn(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}
	addOnID, err := strconv.ParseInt(c.Param("addonID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid add-on ID"})
		return
	}

	var req updateAddOnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	h.withOrderLock(c, orderID, func() {
		if err := h.cartService.SetAddOnActive(c.Request.Context(), orderID, addOnID, *req.Active); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"addon_id": addOnID, "active": *req.Active})
	})
}

// detachAddOn removes an add-on from the cart
func (h *Handler) detachAddOn(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}
	addOnID, err := strconv.ParseInt(c.Param("addonID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid add-on ID"})
		return
	}

	h.withOrderLock(c, orderID, func() {
		if err := h.cartService.DetachAddOn(c.Request.Context(), orderID, addOnID); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}

// checkout finalizes the cart into an order
func (h *Handler) checkout(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	h.withOrderLock(c, orderID, func() {
		order, err := h.cartService.Finalize(c.Request.Context(), orderID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"order_id": order.ID,
			"status":   order.Status,
		})
	})
}

// getOrder returns a finalized order, guarded by the access predicate.
// Denied viewers get the same 404 as a missing order so IDs cannot be
// enumerated.
func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	viewer := viewerFromHeaders(c)
	tokens := c.Request.Header.Values(headerGuestToken)

	// Slow down token guessing before touching the database.
	if len(tokens) > 0 {
		allowed, err := h.redis.AllowGuestView(c.Request.Context(), c.ClientIP(), guestViewLimit, guestViewWindow)
		if err != nil {
			util.GetLogger().Warn("Guest view rate limit check failed")
		} else if !allowed {
			util.GuestViewsDeniedTotal.WithLabelValues("rate_limited").Inc()
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
	}

	order, err := h.cartService.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		writeError(c, err)
		return
	}

	if !h.accessControl.CanView(order, viewer, tokens) {
		util.GuestViewsDeniedTotal.WithLabelValues("denied").Inc()
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	quote, err := h.cartService.QuoteOrder(c.Request.Context(), order)
	if err != nil {
		writeError(c, err)
		return
	}

	summary, err := h.paymentSummary.Summarize(c.Request.Context(), orderID, quote.Total.Currency)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order":     order,
		"sub_total": quote.SubTotal,
		"total":     quote.Total,
		"payments":  summary,
	})
}

// listOrders returns the authenticated customer's finalized orders.
func (h *Handler) listOrders(c *gin.Context) {
	viewer := viewerFromHeaders(c)
	if !viewer.Authenticated {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	orders, err := h.cartService.ListCustomerOrders(c.Request.Context(), viewer.CustomerID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// refundOrder reverses a paid order. Admin only.
func (h *Handler) refundOrder(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	viewer := viewerFromHeaders(c)
	if !viewer.Admin {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	h.withOrderLock(c, orderID, func() {
		if err := h.checkoutOrch.RefundOrder(c.Request.Context(), orderID); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"order_id": orderID, "status": models.OrderStatusRefunded})
	})
}

// getProduct looks a product up by SKU with a formatted display price
func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.products.GetProductBySKU(c.Request.Context(), c.Param("sku"))
	if err != nil {
		writeError(c, err)
		return
	}

	display, err := h.catalog.FormatDecimal(money.New(product.Price, product.Currency))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"product":       product,
		"display_price": display,
	})
}

// viewerFromHeaders trusts the upstream auth proxy's identity headers.
func viewerFromHeaders(c *gin.Context) service.Viewer {
	viewer := service.Viewer{}
	if idStr := c.GetHeader(headerCustomerID); idStr != "" {
		if id, err := strconv.ParseInt(idStr, 10, 64); err == nil && id > 0 {
			viewer.CustomerID = id
			viewer.Authenticated = true
		}
	}
	viewer.Admin = c.GetHeader(headerAdmin) == "true"
	return viewer
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
