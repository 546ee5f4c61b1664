package client

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
	"github.com/samber/lo"

	"github.com/ankurauti1234/Events-Dashboard/pkg/models"
)

const noEventsMessage = "No events found"

var validate = validator.New()

// EventQuery filters GET /events. StartDate and EndDate are already in the
// API's UTC ISO form (see timezone.DayRange).
type EventQuery struct {
	DeviceID  string `validate:"omitempty,max=64"`
	Page      int    `validate:"min=1"`
	Limit     int    `validate:"min=0,max=1000"` // 0 means "all"
	Type      int    `validate:"omitempty,oneof=3 28 29 68 69"`
	StartDate string `validate:"omitempty,datetime=2006-01-02T15:04:05.000Z"`
	EndDate   string `validate:"omitempty,datetime=2006-01-02T15:04:05.000Z"`
}

// Validate checks the query before it goes on the wire.
func (q EventQuery) Validate() error {
	return validate.Struct(q)
}

// EventPage is one page of events. Total is the count across all pages.
type EventPage struct {
	Events []models.Event `json:"events"`
	Total  int            `json:"total"`
}

// SearchEvents lists events across devices, or for one device when
// DeviceID is set. "No events found" answers are an empty page, not an error.
func (c *APMClient) SearchEvents(ctx context.Context, q EventQuery) (EventPage, error) {
	if q.Page == 0 {
		q.Page = 1
	}
	if err := q.Validate(); err != nil {
		return EventPage{}, err
	}

	var respData models.EventListResponse

	req := c.HTTP.R().
		SetContext(ctx).
		SetQueryParam("deviceId", strings.TrimSpace(q.DeviceID)).
		SetQueryParam("page", strconv.Itoa(q.Page))

	if q.StartDate != "" {
		req.SetQueryParam("startDate", q.StartDate)
	}
	if q.EndDate != "" {
		req.SetQueryParam("endDate", q.EndDate)
	}
	if q.Limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(q.Limit))
	}
	if q.Type != 0 {
		req.SetQueryParam("type", strconv.Itoa(q.Type))
	}

	resp, err := req.
		SetResult(&respData).
		SetError(&models.ErrorResponse{}).
		Get("/events")

	if err != nil {
		return EventPage{}, err
	}

	if resp.IsError() {
		e := apiError("search events", resp)
		if strings.Contains(e.Message, noEventsMessage) {
			return EventPage{Events: []models.Event{}}, nil
		}
		return EventPage{}, e
	}

	if strings.Contains(respData.Message, noEventsMessage) {
		return EventPage{Events: []models.Event{}}, nil
	}

	return EventPage{Events: nonNil(respData.Events), Total: respData.Total}, nil
}

// DeviceEvents pages through one event type for a device.
func (c *APMClient) DeviceEvents(ctx context.Context, deviceID string, eventType, page, limit int) (EventPage, error) {
	var respData models.EventListResponse

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	resp, err := c.HTTP.R().
		SetContext(ctx).
		SetPathParam("deviceId", strings.TrimSpace(deviceID)).
		SetQueryParam("type", strconv.Itoa(eventType)).
		SetQueryParam("page", strconv.Itoa(page)).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&respData).
		SetError(&models.ErrorResponse{}).
		Get("/events/{deviceId}")

	if err != nil {
		return EventPage{}, err
	}

	if resp.IsError() {
		e := apiError("get device events", resp)
		if resp.StatusCode() == http.StatusNotFound || strings.Contains(e.Message, noEventsMessage) {
			return EventPage{Events: []models.Event{}}, nil
		}
		return EventPage{}, e
	}

	return EventPage{Events: nonNil(respData.Events), Total: respData.Total}, nil
}

// LatestEvent returns the most recent event of a type for a device, or nil
// when the device never reported one.
func (c *APMClient) LatestEvent(ctx context.Context, deviceID string, eventType int) (*models.Event, error) {
	var respData models.LatestEventResponse

	resp, err := c.HTTP.R().
		SetContext(ctx).
		SetQueryParam("deviceId", strings.TrimSpace(deviceID)).
		SetQueryParam("type", strconv.Itoa(eventType)).
		SetResult(&respData).
		SetError(&models.ErrorResponse{}).
		Get("/events/latest")

	return latest("get latest event", resp, err, respData)
}

// MemberGuest returns the latest member/guest declaration of a device.
func (c *APMClient) MemberGuest(ctx context.Context, deviceID string) (*models.Event, error) {
	var respData models.LatestEventResponse

	resp, err := c.HTTP.R().
		SetContext(ctx).
		SetPathParam("deviceId", strings.TrimSpace(deviceID)).
		SetResult(&respData).
		SetError(&models.ErrorResponse{}).
		Get("/events/member-guest/{deviceId}")

	return latest("get member-guest state", resp, err, respData)
}

// LogoDetections uses the legacy flat endpoint GET /events/logo.
func (c *APMClient) LogoDetections(ctx context.Context, deviceID string) ([]models.Detection, error) {
	return c.detections(ctx, "/events/logo", "get logo detections", deviceID)
}

// AudioDetections uses the legacy flat endpoint GET /events/afp.
func (c *APMClient) AudioDetections(ctx context.Context, deviceID string) ([]models.Detection, error) {
	return c.detections(ctx, "/events/afp", "get audio detections", deviceID)
}

func (c *APMClient) detections(ctx context.Context, path, op, deviceID string) ([]models.Detection, error) {
	var respData models.DetectionListResponse

	resp, err := c.HTTP.R().
		SetContext(ctx).
		SetQueryParam("deviceId", strings.TrimSpace(deviceID)).
		SetResult(&respData).
		SetError(&models.ErrorResponse{}).
		Get(path)

	if err != nil {
		return nil, err
	}

	if resp.IsError() {
		if resp.StatusCode() == http.StatusNotFound {
			return []models.Detection{}, nil
		}
		return nil, apiError(op, resp)
	}

	if respData.Data == nil {
		return []models.Detection{}, nil
	}
	return respData.Data, nil
}

func latest(op string, resp *resty.Response, err error, respData models.LatestEventResponse) (*models.Event, error) {
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		if resp.StatusCode() == http.StatusNotFound {
			return nil, nil
		}
		return nil, apiError(op, resp)
	}
	return respData.Event, nil
}

func nonNil(events []models.Event) []models.Event {
	return lo.Ternary(events == nil, []models.Event{}, events)
}
