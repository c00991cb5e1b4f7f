package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/BarkinBalci/capi-relay-service/internal/dto"
)

// getMetrics handles GET /metrics
// @Summary Get aggregated metrics
// @Description Retrieve archived event metrics of one tenant, optionally grouped
// @Tags metrics
// @Produce json
// @Param app_id query string true "Public app identifier" example:"pixel_1"
// @Param event_name query string true "Event name to filter by" example:"pageview"
// @Param from query int true "Start timestamp (Unix epoch)" example:"1723475612"
// @Param to query int true "End timestamp (Unix epoch)" example:"1723562012"
// @Param group_by query string false "Field to group by" Enums(device_type, country, utm_source, hour, day)
// @Success 200 {object} dto.GetMetricsResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /metrics [get]
func (h *Handler) getMetrics(c *gin.Context) {
	var req dto.GetMetricsRequest

	if err := c.ShouldBindQuery(&req); err != nil {
		h.log.Warn("Invalid metrics request", zap.Error(err))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	response, err := h.ingestService.GetMetrics(c.Request.Context(), &req)
	if err != nil {
		h.log.Warn("Failed to get metrics",
			zap.Error(err),
			zap.String("app_id", req.AppID),
			zap.String("event_name", req.EventName))
		h.writeError(c, err)
		return
	}

	h.log.Info("Metrics retrieved",
		zap.String("app_id", req.AppID),
		zap.String("event_name", req.EventName),
		zap.Uint64("total_count", response.TotalCount),
		zap.Uint64("unique_count", response.UniqueCount))

	c.JSON(http.StatusOK, response)
}
