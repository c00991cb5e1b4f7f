package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/BarkinBalci/capi-relay-service/internal/dto"
	"github.com/BarkinBalci/capi-relay-service/internal/middleware"
	"github.com/BarkinBalci/capi-relay-service/internal/service"
)

const (
	maxTrackBodyBytes   = 64 << 10
	maxWebhookBodyBytes = 1 << 20
	retryAfterSeconds   = "5"
)

// Config holds the transport settings of the handler
type Config struct {
	// Environment decides whether internal error details reach clients
	Environment string
	// ShopifySecret verifies webhook and app proxy signatures
	ShopifySecret string
}

type Handler struct {
	ingestService service.IngestServicer
	router        *gin.Engine
	config        Config
	log           *zap.Logger
}

func NewHandler(ingestService service.IngestServicer, config Config, log *zap.Logger) *Handler {
	h := &Handler{
		ingestService: ingestService,
		router:        gin.New(),
		config:        config,
		log:           log,
	}

	h.router.Use(middleware.Logger(log), middleware.Recovery(log, !h.isProduction()))
	h.registerRoutes()

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.GET("/health", h.healthCheck)
	h.router.GET("/metrics", h.getMetrics)

	track := h.router.Group("", middleware.CORS())
	track.OPTIONS("/track", h.preflight)
	track.POST("/track", h.track)
	track.GET("/track", h.trackPixel)
	track.OPTIONS("/proxy/track", h.preflight)
	track.POST("/proxy/track", h.proxyTrack)

	webhooks := h.router.Group("/webhooks", h.verifyWebhook)
	webhooks.POST("/orders-create", h.orderCreated)
	webhooks.POST("/checkouts-create", h.checkoutCreated)
}

func (h *Handler) isProduction() bool {
	return h.config.Environment == "production"
}

// healthCheck handles health check requests
// @Summary Health check
// @Description Probe the event store
// @Tags health
// @Produce json
// @Success 200 {object} dto.HealthResponse
// @Failure 503 {object} dto.HealthResponse
// @Router /health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	if err := h.ingestService.CheckHealth(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, dto.HealthResponse{Status: "unavailable"})
		return
	}
	c.JSON(http.StatusOK, dto.HealthResponse{Status: "ok"})
}

// preflight answers CORS preflight requests
func (h *Handler) preflight(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// writeError maps service errors onto HTTP responses
func (h *Handler) writeError(c *gin.Context, err error) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: validationErr.Error(),
		})
	case errors.Is(err, service.ErrTenantNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error:   "not_found",
			Message: "unknown appId",
		})
	case errors.Is(err, service.ErrStoreUnavailable):
		c.Header("Retry-After", retryAfterSeconds)
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{
			Error:   "service_unavailable",
			Message: "event store is unavailable, retry later",
		})
	case errors.Is(err, service.ErrArchiveDisabled):
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{
			Error:   "service_unavailable",
			Message: err.Error(),
		})
	default:
		message := "internal server error"
		if !h.isProduction() {
			message = err.Error()
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "internal_error",
			Message: message,
		})
	}
}

func requestMeta(c *gin.Context) dto.RequestMeta {
	return dto.RequestMeta{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}
