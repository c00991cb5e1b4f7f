package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BarkinBalci/capi-relay-service/internal/dto"
	"github.com/BarkinBalci/capi-relay-service/internal/repository"
)

const maxHourlyRangeSeconds = 90 * 24 * 3600

var validGroupBy = map[string]bool{
	"device_type": true,
	"country":     true,
	"utm_source":  true,
	"hour":        true,
	"day":         true,
}

// GetMetrics retrieves aggregated metrics of one tenant from the archive
func (s *IngestService) GetMetrics(ctx context.Context, req *dto.GetMetricsRequest) (*dto.GetMetricsResponse, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}

	if req.From > req.To {
		s.log.Warn("Invalid time range for metrics",
			zap.Int64("from", req.From),
			zap.Int64("to", req.To),
			zap.String("event_name", req.EventName))
		return nil, &ValidationError{Message: "from timestamp must be less than or equal to to timestamp"}
	}

	if req.GroupBy != "" {
		if !validGroupBy[req.GroupBy] {
			s.log.Warn("Invalid group_by value", zap.String("group_by", req.GroupBy))
			return nil, &ValidationError{
				Field:   "group_by",
				Message: fmt.Sprintf("has unsupported value %q (supported: device_type, country, utm_source, hour, day)", req.GroupBy),
			}
		}
		if req.GroupBy == "hour" && req.To-req.From > maxHourlyRangeSeconds {
			return nil, &ValidationError{
				Message: fmt.Sprintf("time range too large for hourly grouping (max 90 days, got %d days)", (req.To-req.From)/(24*3600)),
			}
		}
	}

	tenant, err := s.tenants.GetTenantByPublicID(ctx, req.AppID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up tenant: %w", err)
	}
	if tenant == nil {
		return nil, ErrTenantNotFound
	}

	s.log.Info("Querying metrics",
		zap.String("app_id", req.AppID),
		zap.String("event_name", req.EventName),
		zap.Int64("from", req.From),
		zap.Int64("to", req.To),
		zap.String("group_by", req.GroupBy))

	result, err := s.archive.GetMetrics(ctx, repository.MetricsQuery{
		AppID:     tenant.ID,
		EventName: req.EventName,
		From:      req.From,
		To:        req.To,
		GroupBy:   req.GroupBy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics from repository: %w", err)
	}

	response := &dto.GetMetricsResponse{
		AppID:       req.AppID,
		EventName:   req.EventName,
		From:        req.From,
		To:          req.To,
		TotalCount:  result.TotalCount,
		UniqueCount: result.UniqueCount,
		Revenue:     result.Revenue,
		GroupBy:     req.GroupBy,
		Groups:      make([]dto.MetricsGroupData, 0, len(result.Groups)),
	}
	for _, group := range result.Groups {
		response.Groups = append(response.Groups, dto.MetricsGroupData{
			GroupValue: group.GroupValue,
			TotalCount: group.TotalCount,
		})
	}

	return response, nil
}
