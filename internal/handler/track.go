package handler

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/BarkinBalci/capi-relay-service/internal/dto"
	"github.com/BarkinBalci/capi-relay-service/internal/shopify"
)

// transparentGIF is a 1x1 transparent GIF89a
var transparentGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00,
	0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// track handles POST /track
// @Summary Track an event
// @Description Ingest one storefront event, either as plain JSON or wrapped in a GraphQL envelope
// @Tags tracking
// @Accept json
// @Produce json
// @Param event body dto.TrackRequest true "Event data"
// @Success 200 {object} dto.TrackResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /track [post]
func (h *Handler) track(c *gin.Context) {
	req, err := h.decodeTrackBody(c)
	if err != nil {
		h.log.Warn("Invalid track request", zap.Error(err))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	eventID, err := h.ingestService.Track(c.Request.Context(), req, requestMeta(c))
	if err != nil {
		h.log.Warn("Failed to track event",
			zap.Error(err),
			zap.String("app_id", req.AppID),
			zap.String("event_name", req.EventName))
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.TrackResponse{
		Success: true,
		EventID: eventID,
	})
}

// proxyTrack handles POST /proxy/track
// @Summary Track an event through the Shopify app proxy
// @Description Same as POST /track once the app proxy signature is verified
// @Tags tracking
// @Accept json
// @Produce json
// @Param signature query string true "App proxy signature"
// @Param event body dto.TrackRequest true "Event data"
// @Success 200 {object} dto.TrackResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /proxy/track [post]
func (h *Handler) proxyTrack(c *gin.Context) {
	if !shopify.VerifyProxySignature(h.config.ShopifySecret, c.Request.URL.Query()) {
		h.log.Warn("Invalid app proxy signature", zap.String("shop", c.Query("shop")))
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error:   "unauthorized",
			Message: "invalid signature",
		})
		return
	}
	h.track(c)
}

// trackPixel handles GET /track
// @Summary Track an event through an image pixel
// @Description Event data arrives base64-encoded in the d query parameter; the response is always a 1x1 GIF
// @Tags tracking
// @Produce image/gif
// @Param d query string true "Base64 encoded JSON event"
// @Success 200 {file} binary
// @Router /track [get]
func (h *Handler) trackPixel(c *gin.Context) {
	defer func() {
		c.Header("Cache-Control", "no-store, no-cache, must-revalidate")
		c.Data(http.StatusOK, "image/gif", transparentGIF)
	}()

	raw, err := decodeBase64(c.Query("d"))
	if err != nil {
		h.log.Debug("Undecodable pixel payload", zap.Error(err))
		return
	}
	req, err := dto.DecodeTrackRequest(raw)
	if err != nil {
		h.log.Debug("Invalid pixel payload", zap.Error(err))
		return
	}

	if _, err := h.ingestService.Track(c.Request.Context(), req, requestMeta(c)); err != nil {
		h.log.Warn("Failed to track pixel event",
			zap.Error(err),
			zap.String("app_id", req.AppID),
			zap.String("event_name", req.EventName))
	}
}

func (h *Handler) decodeTrackBody(c *gin.Context) (*dto.TrackRequest, error) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxTrackBodyBytes))
	if err != nil {
		return nil, err
	}
	return dto.DecodeTrackRequest(body)
}

// decodeBase64 accepts standard and URL-safe alphabets, padded or not
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("missing d parameter")
	}
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	} {
		if out, err := enc.DecodeString(s); err == nil {
			return out, nil
		}
	}
	return nil, errors.New("d parameter is not valid base64")
}
