package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/BarkinBalci/capi-relay-service/internal/dto"
	"github.com/BarkinBalci/capi-relay-service/internal/shopify"
)

const rawBodyKey = "raw_body"

// verifyWebhook rejects deliveries whose HMAC header does not match the body
func (h *Handler) verifyWebhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: "unreadable body",
		})
		return
	}

	if !shopify.VerifyWebhook(h.config.ShopifySecret, body, c.GetHeader(shopify.HeaderHmac)) {
		h.log.Warn("Invalid webhook signature",
			zap.String("shop", c.GetHeader(shopify.HeaderShopDomain)),
			zap.String("topic", c.GetHeader(shopify.HeaderTopic)))
		c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error:   "unauthorized",
			Message: "invalid webhook signature",
		})
		return
	}

	c.Set(rawBodyKey, body)
	c.Next()
}

// shopPayload is implemented by the webhook payloads the service understands
type shopPayload interface {
	TrackRequest() *dto.TrackRequest
	Meta() dto.RequestMeta
}

// orderCreated handles POST /webhooks/orders-create
// @Summary Shopify orders/create webhook
// @Tags webhooks
// @Accept json
// @Produce json
// @Success 200 {object} dto.WebhookResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /webhooks/orders-create [post]
func (h *Handler) orderCreated(c *gin.Context) {
	h.handleShopEvent(c, &shopify.Order{})
}

// checkoutCreated handles POST /webhooks/checkouts-create
// @Summary Shopify checkouts/create webhook
// @Tags webhooks
// @Accept json
// @Produce json
// @Success 200 {object} dto.WebhookResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /webhooks/checkouts-create [post]
func (h *Handler) checkoutCreated(c *gin.Context) {
	h.handleShopEvent(c, &shopify.Checkout{})
}

// handleShopEvent acknowledges with 200 once the tenant lookup was attempted,
// whatever its outcome, so Shopify does not redeliver
func (h *Handler) handleShopEvent(c *gin.Context, payload shopPayload) {
	shop := c.GetHeader(shopify.HeaderShopDomain)

	if err := json.Unmarshal(c.MustGet(rawBodyKey).([]byte), payload); err != nil {
		h.log.Warn("Invalid webhook payload",
			zap.String("shop", shop),
			zap.Error(err))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: "invalid payload",
		})
		return
	}

	req := payload.TrackRequest()
	recorded, err := h.ingestService.TrackShopEvent(c.Request.Context(), shop, req, payload.Meta())
	if err != nil {
		h.log.Error("Failed to record webhook event",
			zap.String("shop", shop),
			zap.String("event_name", req.EventName),
			zap.Error(err))
	}

	c.JSON(http.StatusOK, dto.WebhookResponse{
		Success:  true,
		Recorded: recorded,
	})
}
