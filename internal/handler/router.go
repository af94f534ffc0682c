package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"courtmaster/internal/auth"
	"courtmaster/internal/config"
	"courtmaster/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type HealthChecker interface {
	Health(ctx context.Context) map[string]string
}

type Deps struct {
	Payments    service.PaymentService
	Reconciler  service.Reconciler
	Bookings    service.BookingService
	Catalog     service.CatalogService
	Reports     service.ReportService
	Proofs      service.ProofService
	Users       service.UserService
	Health      HealthChecker
	Tokens      *auth.Tokens
	FrontendURL string
	Logger      *zap.Logger
}

type Handler struct {
	payments    service.PaymentService
	reconciler  service.Reconciler
	bookings    service.BookingService
	catalog     service.CatalogService
	reports     service.ReportService
	proofs      service.ProofService
	users       service.UserService
	health      HealthChecker
	frontendURL string
	logger      *zap.Logger
}

func New(d Deps) *Handler {
	return &Handler{
		payments:    d.Payments,
		reconciler:  d.Reconciler,
		bookings:    d.Bookings,
		catalog:     d.Catalog,
		reports:     d.Reports,
		proofs:      d.Proofs,
		users:       d.Users,
		health:      d.Health,
		frontendURL: d.FrontendURL,
		logger:      d.Logger,
	}
}

func NewRouter(d Deps, cfg config.HTTPConfig) (*gin.Engine, error) {
	h := New(d)

	r := gin.New()
	// ClientIP feeds the limiter and the audited vnp_IpAddr, so forwarded
	// headers count only from configured proxies.
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	r.Use(gin.Recovery(), RequestID(), RequestLogger(d.Logger))
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
			ExposeHeaders:    []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/health", h.Health)

	// Gateway entry points carry no bearer token; they are authenticated by signature.
	ipnLimiter := NewIPLimiter(rate.Limit(cfg.IPNRate), cfg.IPNBurst, 10*time.Minute)
	r.GET("/payment/vnpay-return", h.VNPayReturn)
	r.GET("/payment/vnpay-ipn", IPNRateLimit(ipnLimiter, d.Logger), h.VNPayIPN)
	r.POST("/payment/vnpay-ipn", IPNRateLimit(ipnLimiter, d.Logger), h.VNPayIPN)

	api := r.Group("/api")
	api.GET("/courts", h.ListCourts)
	api.GET("/courts/:id/availability", h.Availability)
	api.GET("/services", h.ListServices)

	authed := api.Group("")
	authed.Use(Auth(d.Tokens))
	{
		authed.POST("/bookings", h.CreateBooking)
		authed.GET("/bookings", h.ListBookings)
		authed.GET("/bookings/:id", h.GetBooking)
		authed.POST("/bookings/:id/cancel", h.CancelBooking)
		authed.POST("/bookings/:id/payments", h.CreatePayment)
		authed.POST("/bookings/:id/payment-proof", h.UploadPaymentProof)

		authed.GET("/payments", h.ListPayments)
		authed.GET("/payments/:id", h.GetPayment)
		authed.GET("/payments/:id/status", h.PaymentStatus)
		authed.POST("/payments/:id/redirect", h.CreateRedirect)
		authed.POST("/payments/:id/cancel", h.CancelPayment)
		authed.POST("/payments/:id/retry", h.RetryPayment)

		authed.POST("/service-orders", h.CreateServiceOrder)
		authed.GET("/service-orders", h.ListServiceOrders)
		authed.GET("/service-orders/:id", h.GetServiceOrder)
		authed.POST("/service-orders/:id/items", h.AddServiceOrderItem)
		authed.DELETE("/service-orders/:id/items/:itemId", h.RemoveServiceOrderItem)
	}

	admin := api.Group("/admin")
	admin.Use(Auth(d.Tokens), StaffOnly())
	{
		admin.PUT("/bookings/:id/status", h.SetBookingStatus)
		admin.GET("/dashboard", h.Dashboard)
		admin.GET("/reports/revenue", h.RevenueReport)
		admin.GET("/users", h.ListUsers)
		admin.POST("/payments/:id/review", h.ReviewPaymentProof)
	}

	return r, nil
}

func (h *Handler) Health(c *gin.Context) {
	if h.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "up"})
		return
	}
	stats := h.health.Health(c.Request.Context())
	if stats["status"] != "up" {
		c.JSON(http.StatusServiceUnavailable, stats)
		return
	}
	c.JSON(http.StatusOK, stats)
}
