package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/example/monarch/pkg/config"
	"github.com/example/monarch/pkg/forms"
	"github.com/example/monarch/pkg/ledger"
	"github.com/example/monarch/pkg/models"
	"github.com/example/monarch/pkg/store"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

var errIdentityUnresolved = errors.New("identity unresolved")

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// AuditReader lists recorded mutations, newest first.
type AuditReader interface {
	Recent(ctx context.Context, limit int) ([]models.AuditEntry, error)
}

type Gateway struct {
	config  *config.GatewayConfig
	service *ledger.Service
	audit   AuditReader
	logger  *zap.Logger
	router  *gin.Engine
	server  *http.Server
}

type Option func(*Gateway)

// WithAudit serves GET /api/v1/audit from r.
func WithAudit(r AuditReader) Option {
	return func(g *Gateway) { g.audit = r }
}

func NewGateway(cfg *config.GatewayConfig, svc *ledger.Service, logger *zap.Logger, opts ...Option) *Gateway {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(logger))

	g := &Gateway{
		config:  cfg,
		service: svc,
		logger:  logger,
		router:  router,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.SetupRoutes()
	return g
}

func (g *Gateway) SetupRoutes() {
	// Health check
	g.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"identity": g.service.Gateway().Ready(),
		})
	})

	// API v1 routes
	v1 := g.router.Group("/api/v1")
	{
		v1.GET("/state", g.getState)
		v1.GET("/stats", g.getStats)
		v1.GET("/share", g.getShare)
		v1.GET("/audit", g.listAudit)

		routes := v1.Group("/routes", g.requireIdentity)
		{
			routes.POST("", g.createRoute)
			routes.DELETE("/:id", g.deleteDoc(store.Routes))
		}

		shops := v1.Group("/shops")
		{
			shops.GET("", g.listShops)
			shops.POST("", g.requireIdentity, g.createShop)
			shops.DELETE("/:id", g.requireIdentity, g.deleteDoc(store.Shops))
		}

		products := v1.Group("/products", g.requireIdentity)
		{
			products.POST("", g.createProduct)
			products.DELETE("/:id", g.deleteDoc(store.Products))
		}

		expenses := v1.Group("/expenses", g.requireIdentity)
		{
			expenses.POST("", g.createExpense)
			expenses.DELETE("/:id", g.deleteDoc(store.Expenses))
		}

		orders := v1.Group("/orders")
		{
			orders.GET("", g.listOrders)
			orders.DELETE("/:id", g.requireIdentity, g.deleteDoc(store.Orders))
		}

		profile := v1.Group("/profile")
		{
			profile.GET("", g.getProfile)
			profile.PUT("", g.requireIdentity, g.putProfile)
		}

		cart := v1.Group("/cart")
		{
			cart.GET("", g.getCart)
			cart.DELETE("", g.clearCart)
			cart.POST("/:productId/increment", g.incrementCart)
			cart.POST("/:productId/decrement", g.decrementCart)
			cart.POST("/checkout", g.requireIdentity, g.checkout)
		}
	}

	// Swagger
	g.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// Handler exposes the router, mostly for tests.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

func (g *Gateway) Start() error {
	addr := fmt.Sprintf("%s:%d", g.config.Host, g.config.Port)
	g.server = &http.Server{Addr: addr, Handler: g.router}
	g.logger.Info("Gateway starting", zap.String("address", addr))
	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (g *Gateway) Shutdown(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	return g.server.Shutdown(ctx)
}

// requireIdentity reports with 503 what the mutation gateway would otherwise
// skip silently.
func (g *Gateway) requireIdentity(c *gin.Context) {
	if !g.service.Gateway().Ready() {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": errIdentityUnresolved.Error()})
		return
	}
	c.Next()
}

func (g *Gateway) getState(c *gin.Context) {
	st, err := g.service.State(c.Request.Context())
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (g *Gateway) getStats(c *gin.Context) {
	d, err := g.service.Dashboard(c.Request.Context())
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (g *Gateway) getShare(c *gin.Context) {
	c.JSON(http.StatusOK, g.service.Share())
}

func (g *Gateway) listAudit(c *gin.Context) {
	if g.audit == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "audit trail disabled"})
		return
	}
	limit, err := cast.ToIntE(c.DefaultQuery("limit", cast.ToString(defaultAuditLimit)))
	if err != nil || limit < 1 || limit > maxAuditLimit {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("limit must be between 1 and %d", maxAuditLimit)})
		return
	}

	entries, err := g.audit.Recent(c.Request.Context(), limit)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "total": len(entries)})
}

func (g *Gateway) listShops(c *gin.Context) {
	shops, err := g.service.Shops(c.Request.Context(), c.Query("routeId"), c.Query("q"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shops": shops, "total": len(shops)})
}

func (g *Gateway) listOrders(c *gin.Context) {
	orders, err := g.service.History(c.Request.Context())
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "total": len(orders)})
}

func (g *Gateway) getProfile(c *gin.Context) {
	st, err := g.service.State(c.Request.Context())
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st.Profile)
}

func (g *Gateway) createRoute(c *gin.Context) {
	var req forms.RouteForm
	if !g.bind(c, &req) {
		return
	}
	route, err := req.Route()
	if err != nil {
		g.fail(c, err)
		return
	}
	id, err := g.service.Gateway().AddRoute(c.Request.Context(), route)
	g.created(c, id, err)
}

func (g *Gateway) createShop(c *gin.Context) {
	var req forms.ShopForm
	if !g.bind(c, &req) {
		return
	}
	shop, err := req.Shop()
	if err != nil {
		g.fail(c, err)
		return
	}
	id, err := g.service.Gateway().AddShop(c.Request.Context(), shop)
	g.created(c, id, err)
}

func (g *Gateway) createProduct(c *gin.Context) {
	var req forms.ProductForm
	if !g.bind(c, &req) {
		return
	}
	product, err := req.Product()
	if err != nil {
		g.fail(c, err)
		return
	}
	id, err := g.service.Gateway().AddProduct(c.Request.Context(), product)
	g.created(c, id, err)
}

func (g *Gateway) createExpense(c *gin.Context) {
	var req forms.ExpenseForm
	if !g.bind(c, &req) {
		return
	}
	reason, amount, err := req.Expense()
	if err != nil {
		g.fail(c, err)
		return
	}
	id, err := g.service.Gateway().AddExpense(c.Request.Context(), reason, amount)
	g.created(c, id, err)
}

func (g *Gateway) putProfile(c *gin.Context) {
	var req forms.ProfileForm
	if !g.bind(c, &req) {
		return
	}
	profile, err := req.Profile()
	if err != nil {
		g.fail(c, err)
		return
	}
	if err := g.service.Gateway().SaveProfile(c.Request.Context(), profile); err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (g *Gateway) deleteDoc(collection string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := g.service.Gateway().Delete(c.Request.Context(), collection, c.Param("id")); err != nil {
			g.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func (g *Gateway) getCart(c *gin.Context) {
	view, err := g.service.CartView(c.Request.Context())
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (g *Gateway) clearCart(c *gin.Context) {
	g.service.Cart().Clear()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (g *Gateway) incrementCart(c *gin.Context) {
	id := c.Param("productId")
	c.JSON(http.StatusOK, gin.H{"productId": id, "qty": g.service.Cart().Increment(id)})
}

func (g *Gateway) decrementCart(c *gin.Context) {
	id := c.Param("productId")
	c.JSON(http.StatusOK, gin.H{"productId": id, "qty": g.service.Cart().Decrement(id)})
}

func (g *Gateway) checkout(c *gin.Context) {
	var req forms.CheckoutForm
	if !g.bind(c, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		g.fail(c, err)
		return
	}

	id, placed, err := g.service.SubmitOrder(c.Request.Context(), req.ShopID)
	if err != nil {
		g.fail(c, err)
		return
	}
	if !placed {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "cart has no orderable items"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":      id,
		"message": "Order placed successfully",
	})
}

func (g *Gateway) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func (g *Gateway) created(c *gin.Context, id string, err error) {
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (g *Gateway) fail(c *gin.Context, err error) {
	var verr *forms.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "fields": verr.Fields})
	case errors.Is(err, ledger.ErrUnknownShop), errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		g.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
