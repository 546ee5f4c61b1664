package client

import (
	"context"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/ankurauti1234/Events-Dashboard/pkg/models"
)

// Metrics fetches fleet-wide event counts for the given type codes.
func (c *APMClient) Metrics(ctx context.Context, types []int) (models.MetricsResponse, error) {
	var respData models.MetricsResponse

	req := c.HTTP.R().SetContext(ctx)
	if len(types) > 0 {
		req.SetQueryParam("types", strings.Join(lo.Map(types, func(t int, _ int) string {
			return strconv.Itoa(t)
		}), ","))
	}

	resp, err := req.
		SetResult(&respData).
		SetError(&models.ErrorResponse{}).
		Get("/events/metrics")

	if err != nil {
		return models.MetricsResponse{}, err
	}

	if resp.IsError() {
		return models.MetricsResponse{}, apiError("get event metrics", resp)
	}

	return respData, nil
}

// LogoDetectionStats fetches the fleet logo detection breakdown.
func (c *APMClient) LogoDetectionStats(ctx context.Context) (models.LogoDetectionStats, error) {
	var respData models.LogoDetectionStats

	resp, err := c.HTTP.R().
		SetContext(ctx).
		SetResult(&respData).
		SetError(&models.ErrorResponse{}).
		Get("/events/logo-detection")

	if err != nil {
		return models.LogoDetectionStats{}, err
	}

	if resp.IsError() {
		return models.LogoDetectionStats{}, apiError("get logo detection stats", resp)
	}

	return respData, nil
}
